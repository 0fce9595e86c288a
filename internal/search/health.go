package search

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	Qdrant      string `json:"qdrant"`
	Encoder     string `json:"encoder"`
	Suggestions string `json:"suggestions"`
	Timestamp   string `json:"timestamp"`
}

// HealthChecker is implemented by each backend's Health() method.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// The store and encoder are required for the service to work, so either
// being down makes the whole check unhealthy (503). The suggestion
// backend only degrades service: down means "degraded" but still 200.
// A nil suggester reports "disabled".
func NewHealthHandler(store, encoder, suggester HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		status := http.StatusOK

		response.Qdrant = "connected"
		if err := store.Health(ctx); err != nil {
			response.Qdrant = "disconnected"
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		response.Encoder = "connected"
		if err := encoder.Health(ctx); err != nil {
			response.Encoder = "disconnected"
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		switch {
		case suggester == nil:
			response.Suggestions = "disabled"
		case suggester.Health(ctx) != nil:
			response.Suggestions = "disconnected"
			if response.Status == "healthy" {
				response.Status = "degraded"
			}
		default:
			response.Suggestions = "connected"
		}

		respondJSON(w, status, response)
	}
}
