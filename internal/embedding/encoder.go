// Package embedding turns text into fixed-length vectors by running a
// transformer encoder and mean-pooling its per-token hidden states. The
// encoder itself sits behind the Encoder interface so the pooling math and
// the batch logic stay testable without model weights.
package embedding

import "context"

// Encoding is the raw output of one forward pass: one hidden-state row per
// token plus the matching attention mask.
type Encoding struct {
	States [][]float32
	Mask   []float32
}

// Encoder is the model binding behind the Generator. Implementations are
// constructed once at startup and are safe for concurrent use afterwards.
type Encoder interface {
	// Encode tokenizes text with truncation to the model's token budget and
	// returns the per-token hidden states.
	Encode(ctx context.Context, text string) (Encoding, error)

	// Dimension reports the width of each hidden-state row.
	Dimension() int

	// ModelID reports the identifier of the loaded model.
	ModelID() string
}
