// Package main provides the sync CLI for indexing publications into Qdrant.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kimu90/saved-ai/internal/document"
	"github.com/kimu90/saved-ai/internal/embedding"
	"github.com/kimu90/saved-ai/internal/indexer"
	"github.com/kimu90/saved-ai/internal/storage"
	"github.com/kimu90/saved-ai/internal/suggest"
	"github.com/kimu90/saved-ai/internal/summary"
)

var rootCmd = &cobra.Command{
	Use:   "saved-sync",
	Short: "Publication indexing tool",
	Long:  "CLI tool for ingesting PDF publications into the Qdrant search index",
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index all publications from a manifest file",
	Long: `Downloads every listed PDF, extracts and chunks its text, generates
embeddings and summaries, and stores everything in Qdrant. Publications
whose content is unchanged since the last sync are skipped.

The manifest lists one document per line as

  URL|Title|DOI|Authors

with authors separated by ";". Everything after the URL is optional.
Blank lines and lines starting with "#" are ignored.

Environment variables:
  EMBEDDINGS_URL    encoder server address (default: http://localhost:8080)
  MODEL_NAME        expected encoder model (default: sentence-transformers/all-MiniLM-L6-v2)
  MAX_TOKENS        encoder truncation budget (default: 512)
  QDRANT_HOST       Qdrant hostname (default: localhost)
  QDRANT_PORT       Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION collection name (default: publications)
  PDF_FOLDER        download directory (default: data/pdf_files)
  PDF_CHUNK_SIZE    chunk character budget (default: 1000)
  REDIS_ADDR        suggestion store address (default: localhost:6379)
  REDIS_DB          suggestion store database (default: 0)
  OPENAI_API_KEY    OpenAI API key for summaries (optional)`,
	RunE: runSync,
}

var (
	urlsFile      string
	collection    string
	skipSummaries bool
	recreate      bool
)

func init() {
	syncCmd.Flags().StringVar(&urlsFile, "urls", "urls.txt", "path to the document manifest")
	syncCmd.Flags().StringVar(&collection, "collection", "", "Qdrant collection name (default from QDRANT_COLLECTION)")
	syncCmd.Flags().BoolVar(&skipSummaries, "skip-summaries", false, "index without LLM summaries")
	syncCmd.Flags().BoolVar(&recreate, "recreate", false, "drop and recreate the collection before indexing")
	rootCmd.AddCommand(syncCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	color.Cyan("Starting publication sync")
	fmt.Println()

	refs, err := parseManifest(urlsFile)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return fmt.Errorf("no documents listed in %s", urlsFile)
	}
	fmt.Printf("Found %d documents in %s\n", len(refs), urlsFile)

	// Get environment configuration
	embeddingsURL := getEnv("EMBEDDINGS_URL", embedding.DefaultBaseURL)
	modelName := getEnv("MODEL_NAME", embedding.DefaultModelName)
	maxTokens := getEnvInt("MAX_TOKENS", embedding.DefaultMaxTokens)
	qdrantHost := getEnv("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	pdfFolder := getEnv("PDF_FOLDER", document.DefaultPDFFolder)
	chunkSize := getEnvInt("PDF_CHUNK_SIZE", document.DefaultChunkSize)
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	redisDB := getEnvInt("REDIS_DB", 0)
	if collection == "" {
		collection = getEnv("QDRANT_COLLECTION", storage.DefaultCollectionName)
	}

	// Warnings only, so the progress bar stays readable
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// 1. Connect to the encoder (its dimension sizes the collection)
	fmt.Printf("Connecting to encoder at %s...\n", embeddingsURL)
	encoder, err := embedding.NewHTTPClient(ctx, embedding.ClientConfig{
		BaseURL:   embeddingsURL,
		ModelName: modelName,
		MaxTokens: maxTokens,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to encoder: %w", err)
	}
	color.Green("Encoder ready: %s (%d dimensions)", encoder.ModelID(), encoder.Dimension())
	generator := embedding.NewGenerator(encoder, encoder.MaxTokens(), logger)

	// 2. Connect to Qdrant
	fmt.Printf("Connecting to Qdrant at %s:%d...\n", qdrantHost, qdrantPort)
	store, err := storage.NewQdrantStorage(qdrantHost, qdrantPort, collection, encoder.Dimension())
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer store.Close()

	if recreate {
		fmt.Println("Dropping existing collection...")
		if err := store.ClearCollection(ctx); err != nil {
			return fmt.Errorf("failed to clear collection: %w", err)
		}
	}
	if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}
	color.Green("Qdrant ready: collection %s", collection)

	// 3. Summarizer is optional: no API key just means no summaries
	var summarizer indexer.Summarizer
	if skipSummaries {
		fmt.Println("Summaries disabled (--skip-summaries)")
	} else if gen, err := summary.NewGenerator(); err != nil {
		color.Yellow("Summaries disabled: %v", err)
	} else {
		summarizer = gen
	}

	// 4. Document processor
	processor, err := document.NewProcessor(document.Config{
		PDFFolder: pdfFolder,
		ChunkSize: chunkSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create document processor: %w", err)
	}

	// 5. Run the pipeline with a progress bar
	fmt.Println()
	pipeline := indexer.NewPipeline(processor, generator, summarizer, store, logger)
	bar := progressbar.NewOptions(len(refs),
		progressbar.OptionSetDescription(color.BlueString("Indexing publications")),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
	)
	pipeline.OnProgress = func(completed, total int) {
		bar.Set(completed)
	}

	result, err := pipeline.Run(ctx, refs)
	bar.Finish()
	fmt.Println()
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	// 6. Seed the suggestion store with indexed titles and summary topics
	if queries := append(seedQueries(refs), result.Topics...); len(queries) > 0 {
		suggestStore, err := suggest.NewStore(redisAddr, redisDB, logger)
		if err != nil {
			color.Yellow("Suggestion seeding skipped: %v", err)
		} else {
			defer suggestStore.Close()
			if err := suggestStore.Seed(ctx, queries, "anonymous"); err != nil {
				color.Yellow("Suggestion seeding failed: %v", err)
			} else {
				fmt.Printf("Seeded %d suggestions\n", len(queries))
			}
		}
	}

	// 7. Print results
	fmt.Println()
	color.Green("Sync complete!")
	fmt.Printf("  Indexed: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Printf("  Skipped (unchanged): %d\n", result.SkippedDocs)
	fmt.Printf("  Chunks: %d\n", result.TotalChunks)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Second))
	if info, err := store.GetCollectionInfo(ctx); err == nil {
		fmt.Printf("  Collection points: %d\n", info.PointsCount)
	}

	if len(result.FailedDocs) > 0 {
		fmt.Println()
		color.Red("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.URL, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))

	return nil
}

// parseManifest reads the document list file. One document per line:
// URL|Title|DOI|Authors, authors separated by ";", later fields optional.
func parseManifest(path string) ([]indexer.DocumentRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	var refs []indexer.DocumentRef
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "|")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if fields[0] == "" {
			return nil, fmt.Errorf("manifest line %d: missing URL", lineNo)
		}

		ref := indexer.DocumentRef{URL: fields[0]}
		if len(fields) > 1 {
			ref.Title = fields[1]
		}
		if len(fields) > 2 {
			ref.DOI = fields[2]
		}
		if len(fields) > 3 && fields[3] != "" {
			for _, author := range strings.Split(fields[3], ";") {
				if author = strings.TrimSpace(author); author != "" {
					ref.Authors = append(ref.Authors, author)
				}
			}
		}
		refs = append(refs, ref)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return refs, nil
}

// seedQueries collects the manifest titles worth warming the suggestion
// store with.
func seedQueries(refs []indexer.DocumentRef) []string {
	var titles []string
	for _, ref := range refs {
		if ref.Title != "" {
			titles = append(titles, ref.Title)
		}
	}
	return titles
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
