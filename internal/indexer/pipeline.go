// Package indexer composes the document processor, embedding generator,
// summarizer, and vector storage into the publication ingestion pipeline.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kimu90/saved-ai/internal/document"
	"github.com/kimu90/saved-ai/internal/embedding"
	"github.com/kimu90/saved-ai/internal/storage"
	"github.com/kimu90/saved-ai/internal/summary"
)

// DocumentRef identifies one publication to ingest: its PDF URL plus any
// citation metadata known up front. Only URL is required.
type DocumentRef struct {
	URL     string
	Title   string
	DOI     string
	Authors []string
}

// IndexResult contains statistics about an indexing run. Topics collects
// the topical keywords of every generated summary, deduplicated in order
// of first appearance, so callers can seed them as search suggestions.
type IndexResult struct {
	TotalDocs      int
	TotalChunks    int
	SuccessfulDocs int
	SkippedDocs    int
	FailedDocs     []FailedDoc
	Topics         []string
	Duration       time.Duration
}

// FailedDoc represents a document that failed to index.
type FailedDoc struct {
	URL    string
	Reason string
}

// Processor turns a PDF URL into cleaned, chunked text.
type Processor interface {
	Process(ctx context.Context, url string) (*document.ProcessingResult, error)
}

// Embedder produces one vector per chunk, reporting failures per item.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) []embedding.ItemResult
}

// Summarizer produces descriptive metadata for a publication.
type Summarizer interface {
	Generate(ctx context.Context, title, content string) (*summary.Metadata, error)
}

// Store persists publications and serves the change-detection lookup.
type Store interface {
	GetPublicationByURL(ctx context.Context, url string) (*storage.Publication, error)
	DeletePublication(ctx context.Context, url string) error
	UpsertPublication(ctx context.Context, pub *storage.Publication, chunks []*storage.Chunk) error
}

// Pipeline orchestrates the full ingestion process from download to storage.
type Pipeline struct {
	processor  Processor
	embedder   Embedder
	summarizer Summarizer // nil disables summary generation
	store      Store
	logger     *slog.Logger

	// OnProgress, when set, is called after each document with the number
	// of documents completed so far and the total.
	OnProgress func(completed, total int)
}

// NewPipeline creates an ingestion pipeline with the given components.
// A nil summarizer indexes publications without summaries.
func NewPipeline(processor Processor, embedder Embedder, summarizer Summarizer, store Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		processor:  processor,
		embedder:   embedder,
		summarizer: summarizer,
		store:      store,
		logger:     logger,
	}
}

// Run ingests every referenced document. One document's failure never aborts
// the run; each outcome lands in exactly one IndexResult bucket: successful,
// skipped (content hash unchanged since the last sync), or failed.
func (p *Pipeline) Run(ctx context.Context, refs []DocumentRef) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{TotalDocs: len(refs)}
	p.logger.Info("Starting indexing", "documents", len(refs))

	seenTopics := make(map[string]bool)
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			result.FailedDocs = append(result.FailedDocs, FailedDoc{URL: ref.URL, Reason: err.Error()})
			continue
		}

		chunks, topics, skipped, err := p.indexDocument(ctx, ref)
		switch {
		case err != nil:
			p.logger.Warn("Failed to index document", "url", ref.URL, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{URL: ref.URL, Reason: err.Error()})
		case skipped:
			result.SkippedDocs++
		default:
			result.SuccessfulDocs++
			result.TotalChunks += chunks
			for _, topic := range topics {
				if !seenTopics[topic] {
					seenTopics[topic] = true
					result.Topics = append(result.Topics, topic)
				}
			}
		}

		if p.OnProgress != nil {
			p.OnProgress(i+1, len(refs))
		}
	}

	result.Duration = time.Since(start)
	p.logger.Info("Indexing complete",
		"successful", result.SuccessfulDocs,
		"skipped", result.SkippedDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)

	return result, nil
}

// indexDocument handles the full pipeline for a single document. Returns the
// number of chunks stored and the summary topics, or skipped=true when the
// stored content hash already matches.
func (p *Pipeline) indexDocument(ctx context.Context, ref DocumentRef) (int, []string, bool, error) {
	processed, err := p.processor.Process(ctx, ref.URL)
	if err != nil {
		return 0, nil, false, fmt.Errorf("process: %w", err)
	}

	existing, err := p.store.GetPublicationByURL(ctx, ref.URL)
	switch {
	case err == nil && existing.Metadata.Hash == processed.Hash:
		p.logger.Debug("Content unchanged, skipping", "url", ref.URL, "hash", processed.Hash)
		return 0, nil, true, nil
	case err == nil:
		// Content changed: drop the old points so no stale chunks survive
		if err := p.store.DeletePublication(ctx, ref.URL); err != nil {
			return 0, nil, false, fmt.Errorf("delete stale publication: %w", err)
		}
	case errors.Is(err, storage.ErrPublicationNotFound):
		// First time seeing this URL
	default:
		return 0, nil, false, fmt.Errorf("lookup existing publication: %w", err)
	}

	// Embed every chunk, tolerating partial failure
	items := p.embedder.EmbedBatch(ctx, processed.Chunks)

	pubID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(ref.URL)).String()
	storageChunks := make([]*storage.Chunk, 0, len(items))
	embedFailures := 0
	for _, item := range items {
		if item.Err != nil {
			embedFailures++
			continue
		}
		storageChunks = append(storageChunks, &storage.Chunk{
			ID:         uuid.New().String(),
			ParentID:   pubID,
			ChunkIndex: item.Index,
			Text:       processed.Chunks[item.Index],
			URL:        ref.URL,
			Embedding:  item.Vector,
		})
	}
	if len(storageChunks) == 0 {
		return 0, nil, false, fmt.Errorf("embeddings: all %d chunks failed", len(items))
	}
	if embedFailures > 0 {
		p.logger.Warn("Some chunks failed to embed",
			"url", ref.URL, "failed", embedFailures, "embedded", len(storageChunks))
	}

	title := ref.Title
	if title == "" {
		title = titleFromURL(ref.URL)
	}

	// Summary generation is best-effort and never blocks indexing
	meta := &summary.Metadata{}
	if p.summarizer != nil {
		generated, err := p.summarizer.Generate(ctx, title, processed.Text)
		if err != nil {
			p.logger.Warn("Summary generation failed, indexing without one", "url", ref.URL, "error", err)
		} else {
			meta = generated
		}
	}

	pub := &storage.Publication{
		ID:      pubID,
		Content: processed.Text,
		Metadata: storage.PublicationMetadata{
			URL:         ref.URL,
			Title:       title,
			DOI:         ref.DOI,
			Authors:     ref.Authors,
			Summary:     meta.Summary,
			ContentType: meta.ContentType,
			Topics:      meta.Topics,
			Hash:        processed.Hash,
			TotalLength: processed.TotalLength,
			IndexedAt:   processed.Timestamp,
		},
	}

	if err := p.store.UpsertPublication(ctx, pub, storageChunks); err != nil {
		return 0, nil, false, fmt.Errorf("store publication: %w", err)
	}

	p.logger.Info("Indexed publication", "url", ref.URL, "title", title, "chunks", len(storageChunks))
	return len(storageChunks), meta.Topics, false, nil
}

// titleFromURL derives a readable fallback title from the PDF filename.
func titleFromURL(rawURL string) string {
	base := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		base = path.Base(u.Path)
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" || base == "/" || base == "." {
		return rawURL
	}
	return base
}
