// Package typeahead implements the predictive search session and its
// terminal UI: debounced completion lookups with in-flight cancellation
// against a running search service.
package typeahead

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kimu90/saved-ai/internal/search"
)

const (
	// DefaultDebounce is the pause after the last keystroke before a
	// prediction request is issued.
	DefaultDebounce = 150 * time.Millisecond

	// MinChars is the minimum input length for predictions.
	MinChars = 2

	predictLimit = 10
	searchLimit  = 10
)

// Backend is the search service API the session talks to.
type Backend interface {
	Predict(ctx context.Context, partial string, limit int) ([]string, error)
	Search(ctx context.Context, query string, limit int) ([]search.SearchResult, error)
}

// Prediction is one completion delivered to the UI. Completion always
// extends Input, preserving the user's typed characters.
type Prediction struct {
	Input      string
	Completion string
}

// Callbacks deliver session outcomes. All calls come from background
// goroutines; nil fields are skipped.
type Callbacks struct {
	Prediction func(Prediction)
	Results    func(query string, results []search.SearchResult)
	Error      func(err error)
}

// Session implements the predictive search contract: a keystroke
// (re)starts the debounce timer, at most one prediction and one search
// are in flight at a time (newer requests cancel and replace older
// ones), and only the latest issued request may deliver. Canceled or
// failed predictions never surface.
type Session struct {
	backend  Backend
	cb       Callbacks
	debounce time.Duration
	logger   *slog.Logger

	mu            sync.Mutex
	current       string
	generation    int
	timer         *time.Timer
	cancel        context.CancelFunc
	searchGen     int
	searchCancel  context.CancelFunc
	lastSubmitted string
}

// NewSession creates a predictive session. A non-positive debounce uses
// DefaultDebounce.
func NewSession(backend Backend, cb Callbacks, debounce time.Duration, logger *slog.Logger) *Session {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		backend:  backend,
		cb:       cb,
		debounce: debounce,
		logger:   logger,
	}
}

// Input reports the current text after a keystroke. Unchanged text is a
// no-op. Text under MinChars cancels any pending or in-flight
// prediction. Otherwise the debounce timer restarts; only after a full
// quiet period does a prediction go out.
func (s *Session) Input(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if text == s.current {
		return
	}
	s.current = text
	s.generation++ // anything pending or in flight is now stale
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinChars {
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		return
	}

	gen := s.generation
	s.timer = time.AfterFunc(s.debounce, func() {
		s.issue(gen)
	})
}

// issue fires when the debounce expires. It cancels any in-flight
// prediction, issues a new one, and delivers the completion only if no
// newer input arrived in the meantime.
func (s *Session) issue(gen int) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.cancel = cancel
	input := s.current
	s.mu.Unlock()

	predictions, err := s.backend.Predict(ctx, input, predictLimit)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return // superseded while in flight, drop silently
	}
	s.cancel = nil
	s.mu.Unlock()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Debug("Prediction request failed", "error", err)
		}
		return
	}

	completion := firstExtension(input, predictions)
	if completion == "" {
		return
	}
	if s.cb.Prediction != nil {
		s.cb.Prediction(Prediction{Input: input, Completion: completion})
	}
}

// Submit runs a search for the query. Resubmitting the last successful
// query is a no-op; a new submission cancels and replaces an in-flight
// search. Reports whether a search was issued.
func (s *Session) Submit(query string) bool {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	if query == "" || query == s.lastSubmitted {
		s.mu.Unlock()
		return false
	}
	if s.searchCancel != nil {
		s.searchCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.searchCancel = cancel
	s.searchGen++
	gen := s.searchGen
	s.mu.Unlock()

	go func() {
		defer cancel()
		results, err := s.backend.Search(ctx, query, searchLimit)

		s.mu.Lock()
		if gen != s.searchGen {
			s.mu.Unlock()
			return // replaced by a newer search
		}
		s.searchCancel = nil
		if err == nil {
			s.lastSubmitted = query
		}
		s.mu.Unlock()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if s.cb.Error != nil {
				s.cb.Error(err)
			}
			return
		}
		if s.cb.Results != nil {
			s.cb.Results(query, results)
		}
	}()
	return true
}

// Stop cancels everything pending or in flight.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.searchGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.searchCancel != nil {
		s.searchCancel()
		s.searchCancel = nil
	}
}

// firstExtension returns the first prediction that extends input as a
// case-insensitive prefix, keeping the user's typed characters intact.
func firstExtension(input string, predictions []string) string {
	inputRunes := []rune(input)
	for _, p := range predictions {
		pRunes := []rune(p)
		if len(pRunes) <= len(inputRunes) {
			continue
		}
		if strings.EqualFold(string(pRunes[:len(inputRunes)]), input) {
			return input + string(pRunes[len(inputRunes):])
		}
	}
	return ""
}
