package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// stubEncoder returns a fixed two-token encoding per call and can be told
// to fail on specific inputs.
type stubEncoder struct {
	dim     int
	failOn  map[string]bool
	encoded []string
}

func (s *stubEncoder) Encode(_ context.Context, text string) (Encoding, error) {
	if s.failOn[text] {
		return Encoding{}, errors.New("stub encode failure")
	}
	s.encoded = append(s.encoded, text)
	states := make([][]float32, 2)
	for i := range states {
		row := make([]float32, s.dim)
		for j := range row {
			row[j] = float32(len(text))
		}
		states[i] = row
	}
	mask := []float32{1, 1}
	return Encoding{States: states, Mask: mask}, nil
}

func (s *stubEncoder) Dimension() int  { return s.dim }
func (s *stubEncoder) ModelID() string { return "stub-model" }

// TestEmbedText_PoolsEncoderOutput verifies the pooled vector comes back
// with the encoder's dimension and averaged values.
func TestEmbedText_PoolsEncoderOutput(t *testing.T) {
	enc := &stubEncoder{dim: 4}
	g := NewGenerator(enc, 512, nil)

	vec, err := g.EmbedText(context.Background(), "health")
	if err != nil {
		t.Fatalf("EmbedText failed: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("Expected dimension 4, got %d", len(vec))
	}
	// Both stub rows hold len("health") = 6, so the mean is 6.
	for i, v := range vec {
		if v != 6 {
			t.Errorf("Component %d: expected 6, got %v", i, v)
		}
	}
}

// TestEmbedText_EmptyInput verifies preprocessing an empty string fails
// with ErrEmptyText instead of hitting the encoder.
func TestEmbedText_EmptyInput(t *testing.T) {
	enc := &stubEncoder{dim: 2}
	g := NewGenerator(enc, 512, nil)

	_, err := g.EmbedText(context.Background(), "   \n\t ")
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("Expected ErrEmptyText, got %v", err)
	}
	if len(enc.encoded) != 0 {
		t.Errorf("Encoder was called for empty input: %v", enc.encoded)
	}
}

// TestPreprocess_CollapsesWhitespace verifies word joining.
func TestPreprocess_CollapsesWhitespace(t *testing.T) {
	g := NewGenerator(&stubEncoder{dim: 2}, 512, nil)
	got := g.Preprocess("  urban \t health\n outcomes ")
	want := "urban health outcomes"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

// TestPreprocess_ClipsLongInput verifies the token-derived character bound
// and that the cut lands on a rune boundary.
func TestPreprocess_ClipsLongInput(t *testing.T) {
	g := NewGenerator(&stubEncoder{dim: 2}, 2, nil) // 2 tokens -> 8 chars
	got := g.Preprocess("abcdefghijkl")
	if got != "abcdefgh" {
		t.Errorf("Expected 8-char clip, got %q", got)
	}

	// Multi-byte runes must not be split down the middle.
	got = g.Preprocess(strings.Repeat("é", 10)) // 2 bytes each
	if len(got) != 8 && len(got) != 7 {
		t.Fatalf("Clip exceeded bound: %d bytes", len(got))
	}
	for _, r := range got {
		if r != 'é' {
			t.Errorf("Clip split a rune, got %q", got)
		}
	}
}

// TestEmbedBatch_PerItemIsolation verifies one failing item keeps its slot
// while the rest succeed, preserving positional correspondence.
func TestEmbedBatch_PerItemIsolation(t *testing.T) {
	enc := &stubEncoder{dim: 3, failOn: map[string]bool{"bad": true}}
	g := NewGenerator(enc, 512, nil)

	results := g.EmbedBatch(context.Background(), []string{"first", "bad", "third"})
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("Result %d carries index %d", i, r.Index)
		}
	}
	if results[0].Err != nil || results[0].Vector == nil {
		t.Errorf("Result 0 should have succeeded: %v", results[0].Err)
	}
	if results[1].Err == nil || results[1].Vector != nil {
		t.Error("Result 1 should have failed with no vector")
	}
	if results[2].Err != nil || results[2].Vector == nil {
		t.Errorf("Result 2 should have succeeded: %v", results[2].Err)
	}
}

// TestEmbedBatch_CanceledContext verifies cancellation is recorded per
// item rather than panicking or aborting silently.
func TestEmbedBatch_CanceledContext(t *testing.T) {
	g := NewGenerator(&stubEncoder{dim: 2}, 512, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := g.EmbedBatch(ctx, []string{"one", "two"})
	for i, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("Result %d: expected context.Canceled, got %v", i, r.Err)
		}
	}
}

// TestModelInfo_ReflectsEncoder verifies reported identity and dimension.
func TestModelInfo_ReflectsEncoder(t *testing.T) {
	g := NewGenerator(&stubEncoder{dim: 8}, 128, nil)
	info := g.ModelInfo()
	if info.ModelID != "stub-model" {
		t.Errorf("ModelID: expected stub-model, got %q", info.ModelID)
	}
	if info.Dimension != 8 {
		t.Errorf("Dimension: expected 8, got %d", info.Dimension)
	}
	if info.MaxTokens != 128 {
		t.Errorf("MaxTokens: expected 128, got %d", info.MaxTokens)
	}
}
