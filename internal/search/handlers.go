package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kimu90/saved-ai/internal/storage"
)

const (
	defaultSearchLimit  = 10
	maxSearchLimit      = 50
	defaultPredictLimit = 10

	// chunkOverfetch is how many chunks are fetched per requested result,
	// so deduplication by parent still fills the limit.
	chunkOverfetch = 3

	defaultUserID = "anonymous"
)

// QueryEmbedder produces the vector for a search query.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher serves nearest-neighbor chunk search and parent lookups.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, embedding []float32, limit int) ([]*storage.ScoredChunk, error)
	GetPublication(ctx context.Context, id string) (*storage.Publication, error)
}

// Suggester records queries and serves completions.
type Suggester interface {
	Suggest(ctx context.Context, partial, userID string, limit int) ([]string, error)
	Record(ctx context.Context, query, userID string) error
}

// Handlers holds the dependencies behind the search endpoints. A nil
// suggester disables predictions and query recording without affecting
// search itself.
type Handlers struct {
	embedder  QueryEmbedder
	store     ChunkSearcher
	suggester Suggester
	logger    *slog.Logger
}

// NewHandlers wires the search endpoints. Pass a nil suggester to run
// without a suggestion backend.
func NewHandlers(embedder QueryEmbedder, store ChunkSearcher, suggester Suggester, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		embedder:  embedder,
		store:     store,
		suggester: suggester,
		logger:    logger,
	}
}

// Search handles GET /search/search?query=&limit=.
// Search flow:
// 1. Embed the query text
// 2. Search chunks by vector similarity (overfetched for dedup headroom)
// 3. Group chunks by parent publication, keeping the best score per parent
// 4. Resolve each parent's metadata
// 5. Record the query in the suggestion history (best-effort)
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), defaultSearchLimit, maxSearchLimit)

	vector, err := h.embedder.EmbedText(ctx, query)
	if err != nil {
		h.logger.Error("Failed to embed query", "error", err)
		respondError(w, http.StatusInternalServerError, "search is temporarily unavailable")
		return
	}

	chunks, err := h.store.SearchChunks(ctx, vector, limit*chunkOverfetch)
	if err != nil {
		h.logger.Error("Chunk search failed", "error", err)
		respondError(w, http.StatusInternalServerError, "search is temporarily unavailable")
		return
	}

	results := h.collectResults(ctx, chunks, limit)
	h.recordQuery(r, query)

	respondJSON(w, http.StatusOK, SearchResponse{
		Query:   query,
		Total:   len(results),
		Results: results,
	})
}

// collectResults deduplicates scored chunks by parent publication (first
// occurrence carries the best score since chunks arrive score-descending)
// and resolves each parent's metadata. Parents that fail to load are
// skipped, not fatal.
func (h *Handlers) collectResults(ctx context.Context, chunks []*storage.ScoredChunk, limit int) []SearchResult {
	bestScores := make(map[string]float64)
	order := make([]string, 0) // preserve score order
	for _, scored := range chunks {
		id := scored.Chunk.ParentID
		if id == "" {
			continue
		}
		if existing, seen := bestScores[id]; !seen || scored.Score > existing {
			if !seen {
				order = append(order, id)
			}
			bestScores[id] = scored.Score
		}
	}
	if len(order) > limit {
		order = order[:limit]
	}

	results := make([]SearchResult, 0, len(order))
	for _, id := range order {
		pub, err := h.store.GetPublication(ctx, id)
		if err != nil {
			h.logger.Warn("Failed to load publication for search result", "id", id, "error", err)
			continue
		}
		authors := pub.Metadata.Authors
		if authors == nil {
			authors = []string{} // Ensure non-nil for JSON marshaling
		}
		results = append(results, SearchResult{
			Title:   pub.Metadata.Title,
			DOI:     pub.Metadata.DOI,
			Authors: authors,
			Summary: pub.Metadata.Summary,
			URL:     pub.Metadata.URL,
			Score:   bestScores[id],
		})
	}
	return results
}

// recordQuery stores a served search in the suggestion history. Failures
// are logged, never surfaced to the client.
func (h *Handlers) recordQuery(r *http.Request, query string) {
	if h.suggester == nil {
		return
	}
	if err := h.suggester.Record(r.Context(), query, userIDFrom(r)); err != nil {
		h.logger.Warn("Failed to record query for suggestions", "error", err)
	}
}

// Predict handles GET /search/search/predict?partial_query=&limit=.
// Always responds 200: a missing suggestion backend or a backend error
// yields empty predictions, never a request failure.
func (h *Handlers) Predict(w http.ResponseWriter, r *http.Request) {
	partial := r.URL.Query().Get("partial_query")
	limit := parseLimit(r.URL.Query().Get("limit"), defaultPredictLimit, defaultPredictLimit)

	response := PredictResponse{
		PartialQuery:     partial,
		Predictions:      []string{},
		ConfidenceScores: []float64{},
	}

	if h.suggester != nil {
		predictions, err := h.suggester.Suggest(r.Context(), partial, userIDFrom(r), limit)
		if err != nil {
			h.logger.Warn("Suggestion lookup failed", "error", err)
		} else {
			for i, p := range predictions {
				response.Predictions = append(response.Predictions, p)
				response.ConfidenceScores = append(response.ConfidenceScores, confidence(i))
			}
		}
	}

	respondJSON(w, http.StatusOK, response)
}

// confidence assigns a display score by rank: 1.0, 0.9, 0.8, ... floored
// at 0.1.
func confidence(rank int) float64 {
	score := 1.0 - 0.1*float64(rank)
	if score < 0.1 {
		return 0.1
	}
	return score
}

// userIDFrom resolves the suggestion identity for a request.
func userIDFrom(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return defaultUserID
}

// parseLimit parses a limit query parameter with a default and a cap.
func parseLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
