package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kimu90/saved-ai/internal/search"
	"github.com/kimu90/saved-ai/internal/typeahead"
)

var (
	serverURL string
	userID    string
)

var rootCmd = &cobra.Command{
	Use:   "saved-typeahead",
	Short: "Interactive terminal search with predictive completions",
	Long: `Interactive search against a running saved-ai search service.

Completions appear inline as you type: Tab or the right arrow accepts
one, Escape dismisses it, Enter searches. Predictions come from the
query history of the given user plus the global history.

Environment variables:
  SEARCH_URL       Search service base URL (default: http://localhost:8095)
  TYPEAHEAD_USER   User ID for personalized predictions (default: anonymous)`,
	RunE: runTypeahead,
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "server", "", "search service base URL (overrides SEARCH_URL)")
	rootCmd.Flags().StringVar(&userID, "user", "", "user ID sent with predictions (overrides TYPEAHEAD_USER)")
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runTypeahead(cmd *cobra.Command, args []string) error {
	if serverURL == "" {
		serverURL = getEnv("SEARCH_URL", "http://localhost:8095")
	}
	if userID == "" {
		userID = getEnv("TYPEAHEAD_USER", "anonymous")
	}

	// The terminal belongs to the UI, so session logs are discarded.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := typeahead.NewClient(serverURL, userID)

	// Callbacks post into the program's message loop. The program
	// variable is assigned before the UI starts, so it is set before
	// any callback can fire.
	var program *tea.Program
	session := typeahead.NewSession(client, typeahead.Callbacks{
		Prediction: func(p typeahead.Prediction) {
			program.Send(typeahead.PredictionMsg(p))
		},
		Results: func(query string, results []search.SearchResult) {
			program.Send(typeahead.ResultsMsg{Query: query, Results: results})
		},
		Error: func(err error) {
			program.Send(typeahead.ErrorMsg{Err: err})
		},
	}, typeahead.DefaultDebounce, logger)
	defer session.Stop()

	program = tea.NewProgram(typeahead.NewModel(session))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
