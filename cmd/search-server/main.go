// Package main provides the publication search service entry point.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kimu90/saved-ai/internal/embedding"
	"github.com/kimu90/saved-ai/internal/search"
	"github.com/kimu90/saved-ai/internal/storage"
	"github.com/kimu90/saved-ai/internal/suggest"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Configuration from environment
	embeddingsURL := getEnv("EMBEDDINGS_URL", embedding.DefaultBaseURL)
	modelName := getEnv("MODEL_NAME", embedding.DefaultModelName)
	maxTokens := getEnvInt("MAX_TOKENS", embedding.DefaultMaxTokens)
	qdrantHost := getEnv("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnv("QDRANT_COLLECTION", storage.DefaultCollectionName)
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	redisDB := getEnvInt("REDIS_DB", 0)
	port := getEnv("PORT", "8095")

	logger := slog.Default()

	// Encoder first: its dimension sizes the storage client
	encoder, err := embedding.NewHTTPClient(ctx, embedding.ClientConfig{
		BaseURL:   embeddingsURL,
		ModelName: modelName,
		MaxTokens: maxTokens,
	}, logger)
	if err != nil {
		log.Fatalf("failed to connect to encoder: %v", err)
	}
	generator := embedding.NewGenerator(encoder, encoder.MaxTokens(), logger)

	// Initialize storage
	store, err := storage.NewQdrantStorage(qdrantHost, qdrantPort, collection, encoder.Dimension())
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer store.Close()

	// Ensure collection exists
	if err := store.EnsureCollection(ctx); err != nil {
		log.Fatalf("failed to ensure collection: %v", err)
	}

	// The suggestion store is optional: the service runs without
	// predictions when Redis is unavailable
	var (
		handlerSuggester search.Suggester
		healthSuggester  search.HealthChecker
	)
	if suggester, err := suggest.NewStore(redisAddr, redisDB, logger); err != nil {
		logger.Warn("Suggestions disabled", "error", err)
	} else {
		defer suggester.Close()
		handlerSuggester = suggester
		healthSuggester = suggester
	}

	handlers := search.NewHandlers(generator, store, handlerSuggester, logger)
	health := search.NewHealthHandler(store, encoder, healthSuggester)
	server := search.NewServer("0.0.0.0:"+port, search.NewRouter(handlers, health), logger)

	// Serve until the context is canceled, then drain in-flight requests
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
