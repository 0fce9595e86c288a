package typeahead

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kimu90/saved-ai/internal/search"
)

const testDebounce = 20 * time.Millisecond

// fakeBackend records calls and serves canned predictions and results.
// Per-key delays simulate slow requests; delayed calls honor context
// cancellation.
type fakeBackend struct {
	mu            sync.Mutex
	predictions   map[string][]string
	predictDelays map[string]time.Duration
	predictCalls  []string
	results       []search.SearchResult
	searchDelays  map[string]time.Duration
	searchCalls   []string
	searchErr     error
}

func (f *fakeBackend) Predict(ctx context.Context, partial string, limit int) ([]string, error) {
	f.mu.Lock()
	f.predictCalls = append(f.predictCalls, partial)
	delay := f.predictDelays[partial]
	preds := f.predictions[partial]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return preds, nil
}

func (f *fakeBackend) Search(ctx context.Context, query string, limit int) ([]search.SearchResult, error) {
	f.mu.Lock()
	f.searchCalls = append(f.searchCalls, query)
	delay := f.searchDelays[query]
	err := f.searchErr
	results := f.results
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (f *fakeBackend) predictCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.predictCalls)
}

func (f *fakeBackend) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searchCalls)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitPrediction(t *testing.T, ch chan Prediction) Prediction {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a prediction")
		return Prediction{}
	}
}

func assertNoPrediction(t *testing.T, ch chan Prediction) {
	t.Helper()
	select {
	case p := <-ch:
		t.Fatalf("Expected no prediction, got %+v", p)
	case <-time.After(5 * testDebounce):
	}
}

func TestInput_DebounceCollapsesBurst(t *testing.T) {
	backend := &fakeBackend{
		predictions: map[string][]string{
			"neur": {"neural networks"},
		},
	}
	got := make(chan Prediction, 8)
	s := NewSession(backend, Callbacks{Prediction: func(p Prediction) { got <- p }}, testDebounce, quietLogger())

	// Three keystrokes inside one debounce window.
	s.Input("ne")
	s.Input("neu")
	s.Input("neur")

	p := waitPrediction(t, got)
	if p.Input != "neur" {
		t.Errorf("Expected prediction for %q, got %q", "neur", p.Input)
	}
	if p.Completion != "neural networks" {
		t.Errorf("Expected completion %q, got %q", "neural networks", p.Completion)
	}

	assertNoPrediction(t, got)
	if n := backend.predictCount(); n != 1 {
		t.Errorf("Expected 1 prediction request, got %d: %v", n, backend.predictCalls)
	}
}

func TestInput_ShortInputNeverRequests(t *testing.T) {
	backend := &fakeBackend{}
	got := make(chan Prediction, 8)
	s := NewSession(backend, Callbacks{Prediction: func(p Prediction) { got <- p }}, testDebounce, quietLogger())

	s.Input("n")
	s.Input(" x ")

	assertNoPrediction(t, got)
	if n := backend.predictCount(); n != 0 {
		t.Errorf("Expected no requests for short input, got %d", n)
	}
}

func TestInput_UnchangedTextIsNoOp(t *testing.T) {
	backend := &fakeBackend{
		predictions: map[string][]string{
			"neural": {"neural networks"},
		},
	}
	got := make(chan Prediction, 8)
	s := NewSession(backend, Callbacks{Prediction: func(p Prediction) { got <- p }}, testDebounce, quietLogger())

	s.Input("neural")
	waitPrediction(t, got)

	s.Input("neural")
	assertNoPrediction(t, got)
	if n := backend.predictCount(); n != 1 {
		t.Errorf("Expected 1 prediction request, got %d", n)
	}
}

func TestInput_TypedCasePreservedInCompletion(t *testing.T) {
	backend := &fakeBackend{
		predictions: map[string][]string{
			"Neu": {"neural networks", "neuroscience"},
		},
	}
	got := make(chan Prediction, 8)
	s := NewSession(backend, Callbacks{Prediction: func(p Prediction) { got <- p }}, testDebounce, quietLogger())

	s.Input("Neu")

	p := waitPrediction(t, got)
	if p.Completion != "Neural networks" {
		t.Errorf("Expected completion %q, got %q", "Neural networks", p.Completion)
	}
}

func TestInput_NonExtendingPredictionsIgnored(t *testing.T) {
	backend := &fakeBackend{
		predictions: map[string][]string{
			"neu": {"brain maps", "ne"},
		},
	}
	got := make(chan Prediction, 8)
	s := NewSession(backend, Callbacks{Prediction: func(p Prediction) { got <- p }}, testDebounce, quietLogger())

	s.Input("neu")
	assertNoPrediction(t, got)
}

func TestInput_NewerInputSupersedesInFlight(t *testing.T) {
	backend := &fakeBackend{
		predictions: map[string][]string{
			"sl":   {"slow queries"},
			"slow": {"slow queries"},
		},
		predictDelays: map[string]time.Duration{
			"sl": 300 * time.Millisecond,
		},
	}
	got := make(chan Prediction, 8)
	s := NewSession(backend, Callbacks{Prediction: func(p Prediction) { got <- p }}, testDebounce, quietLogger())

	s.Input("sl")
	time.Sleep(3 * testDebounce) // let the slow request take off
	s.Input("slow")

	p := waitPrediction(t, got)
	if p.Input != "slow" {
		t.Errorf("Expected delivery for %q, got %q", "slow", p.Input)
	}

	// The superseded request must never deliver, even after its delay.
	select {
	case stale := <-got:
		t.Fatalf("Expected superseded request to stay silent, got %+v", stale)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestInput_StopCancelsPending(t *testing.T) {
	backend := &fakeBackend{
		predictions: map[string][]string{
			"neural": {"neural networks"},
		},
	}
	got := make(chan Prediction, 8)
	s := NewSession(backend, Callbacks{Prediction: func(p Prediction) { got <- p }}, testDebounce, quietLogger())

	s.Input("neural")
	s.Stop()

	assertNoPrediction(t, got)
	if n := backend.predictCount(); n != 0 {
		t.Errorf("Expected no requests after Stop, got %d", n)
	}
}

type searchDelivery struct {
	query string
	count int
}

func TestSubmit_DeliversResults(t *testing.T) {
	backend := &fakeBackend{
		results: []search.SearchResult{
			{Title: "Attention Is All You Need", Score: 0.91},
			{Title: "Deep Residual Learning", Score: 0.84},
		},
	}
	got := make(chan searchDelivery, 8)
	s := NewSession(backend, Callbacks{
		Results: func(query string, results []search.SearchResult) {
			got <- searchDelivery{query: query, count: len(results)}
		},
	}, testDebounce, quietLogger())

	if !s.Submit("transformers") {
		t.Fatal("Expected Submit to issue a search")
	}

	select {
	case d := <-got:
		if d.query != "transformers" || d.count != 2 {
			t.Errorf("Expected 2 results for %q, got %d for %q", "transformers", d.count, d.query)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for results")
	}
}

func TestSubmit_UnchangedQueryIsNoOp(t *testing.T) {
	backend := &fakeBackend{}
	got := make(chan searchDelivery, 8)
	s := NewSession(backend, Callbacks{
		Results: func(query string, results []search.SearchResult) {
			got <- searchDelivery{query: query, count: len(results)}
		},
	}, testDebounce, quietLogger())

	if !s.Submit("transformers") {
		t.Fatal("Expected first Submit to issue a search")
	}
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for results")
	}

	if s.Submit("transformers") {
		t.Error("Expected resubmitting the same query to be a no-op")
	}
	if s.Submit("  transformers  ") {
		t.Error("Expected whitespace-padded resubmission to be a no-op")
	}
	if s.Submit("") {
		t.Error("Expected empty query to be a no-op")
	}
	if n := backend.searchCount(); n != 1 {
		t.Errorf("Expected 1 search request, got %d", n)
	}
}

func TestSubmit_ReplacesInFlightSearch(t *testing.T) {
	backend := &fakeBackend{
		results: []search.SearchResult{{Title: "Result", Score: 0.5}},
		searchDelays: map[string]time.Duration{
			"first": 300 * time.Millisecond,
		},
	}
	got := make(chan searchDelivery, 8)
	s := NewSession(backend, Callbacks{
		Results: func(query string, results []search.SearchResult) {
			got <- searchDelivery{query: query, count: len(results)}
		},
	}, testDebounce, quietLogger())

	s.Submit("first")
	time.Sleep(30 * time.Millisecond)
	s.Submit("second")

	select {
	case d := <-got:
		if d.query != "second" {
			t.Errorf("Expected delivery for %q, got %q", "second", d.query)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for results")
	}

	select {
	case stale := <-got:
		t.Fatalf("Expected replaced search to stay silent, got %+v", stale)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestSubmit_FailedSearchCanBeRetried(t *testing.T) {
	backend := &fakeBackend{searchErr: errors.New("backend down")}
	errs := make(chan error, 8)
	s := NewSession(backend, Callbacks{
		Error: func(err error) { errs <- err },
	}, testDebounce, quietLogger())

	if !s.Submit("transformers") {
		t.Fatal("Expected Submit to issue a search")
	}
	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the error")
	}

	// A failed query is not remembered as submitted, so retrying works.
	if !s.Submit("transformers") {
		t.Error("Expected retry after failure to issue a search")
	}
}

func TestFirstExtension(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		predictions []string
		want        string
	}{
		{"picks first extension", "neu", []string{"neural networks", "neuroscience"}, "neural networks"},
		{"case insensitive match", "Neu", []string{"neural networks"}, "Neural networks"},
		{"skips non extensions", "neu", []string{"brain maps", "neurons firing"}, "neurons firing"},
		{"skips exact match", "neural", []string{"neural"}, ""},
		{"no match", "neu", []string{"brain maps"}, ""},
		{"empty predictions", "neu", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := firstExtension(tt.input, tt.predictions)
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
