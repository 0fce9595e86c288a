// Package document downloads PDFs, extracts and cleans their text, and
// splits the result into bounded-size chunks ready for embedding.
package document

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/kimu90/saved-ai/internal/cleaner"
)

const (
	// DefaultChunkSize is the character budget for one chunk, counting the
	// single spaces that join its words.
	DefaultChunkSize = 1000

	// DefaultPDFFolder is where downloaded PDFs are persisted.
	DefaultPDFFolder = "data/pdf_files"

	// DownloadTimeout bounds a single PDF fetch.
	DownloadTimeout = 30 * time.Second
)

// Config controls where PDFs are stored and how text is chunked.
type Config struct {
	PDFFolder string
	ChunkSize int
}

// Processor fetches PDF documents and turns them into chunked, cleaned
// text with a content fingerprint. Batch processing isolates failures per
// document.
type Processor struct {
	folder    string
	chunkSize int
	client    *http.Client
	logger    *slog.Logger

	// extract is the page-text extraction step, replaceable in tests.
	extract func(path string) (string, error)
}

// NewProcessor creates a Processor, creating the PDF storage folder if it
// does not exist yet.
func NewProcessor(cfg Config, logger *slog.Logger) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PDFFolder == "" {
		cfg.PDFFolder = DefaultPDFFolder
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if err := os.MkdirAll(cfg.PDFFolder, 0o755); err != nil {
		return nil, fmt.Errorf("creating PDF folder %s: %w", cfg.PDFFolder, err)
	}
	p := &Processor{
		folder:    cfg.PDFFolder,
		chunkSize: cfg.ChunkSize,
		client:    &http.Client{Timeout: DownloadTimeout},
		logger:    logger,
	}
	p.extract = p.extractFile
	return p, nil
}

// LocalPath returns the deterministic storage path for a URL, so that
// downloading the same URL twice overwrites rather than duplicates.
func (p *Processor) LocalPath(url string) string {
	sum := md5.Sum([]byte(url))
	return filepath.Join(p.folder, hex.EncodeToString(sum[:])+".pdf")
}

// Download fetches a PDF over HTTP and persists it under LocalPath(url).
// Only status 200 with a PDF content type counts as success; everything
// else is an error the batch caller treats as "skip this document".
func (p *Processor) Download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", url, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: unexpected status %d", url, resp.StatusCode)
	}
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "pdf") {
		return "", fmt.Errorf("%w: %s served %q", ErrNotPDF, url, contentType)
	}

	path := p.LocalPath(url)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}

	p.logger.Info("Downloaded PDF", "url", url, "path", path)
	return path, nil
}

// ExtractText parses the PDF at path, cleans each page, and joins pages
// with a newline. Returns ErrNoText when nothing usable comes out.
func (p *Processor) ExtractText(path string) (string, error) {
	text, err := p.extract(path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", ErrNoText, path)
	}
	return text, nil
}

func (p *Processor) extractFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stating %s: %w", path, err)
	}
	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		raw, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Warn("Skipping unreadable page", "path", path, "page", i, "error", err)
			continue
		}
		if cleaned := cleaner.CleanPDF(raw); cleaned != "" {
			pages = append(pages, cleaned)
		}
	}
	return strings.Join(pages, "\n"), nil
}

// ChunkText splits cleaned text into chunks using the configured budget.
func (p *Processor) ChunkText(text string) []string {
	return ChunkWords(text, p.chunkSize)
}

// ChunkWords packs whole words greedily into chunks of at most budget
// characters, counting the single spaces that join them. Words are never
// split: a single word longer than the budget is emitted as its own chunk.
// Paragraph breaks (blank lines) always start a new chunk. The function is
// deterministic and preserves word order.
func ChunkWords(text string, budget int) []string {
	if budget <= 0 {
		return nil
	}

	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		var current []string
		length := 0
		for _, word := range strings.Fields(para) {
			need := len(word)
			if len(current) > 0 {
				need++ // joining space
			}
			if length+need > budget && len(current) > 0 {
				chunks = append(chunks, strings.Join(current, " "))
				current = []string{word}
				length = len(word)
				continue
			}
			current = append(current, word)
			length += need
		}
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
		}
	}
	return chunks
}

// Process runs download, extraction, and chunking for one URL and
// assembles the complete result, including the sha256 fingerprint of the
// cleaned text. Any failing step returns a nil result with a wrapped
// error; nothing partial is produced.
func (p *Processor) Process(ctx context.Context, url string) (*ProcessingResult, error) {
	path, err := p.Download(ctx, url)
	if err != nil {
		return nil, err
	}

	text, err := p.ExtractText(path)
	if err != nil {
		return nil, err
	}

	chunks := p.ChunkText(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChunks, url)
	}

	sum := sha256.Sum256([]byte(text))
	return &ProcessingResult{
		URL:         url,
		FilePath:    path,
		Text:        text,
		Chunks:      chunks,
		NumChunks:   len(chunks),
		TotalLength: len(text),
		Timestamp:   time.Now().UTC(),
		Hash:        hex.EncodeToString(sum[:]),
	}, nil
}

// ProcessAll processes each URL independently and sequentially. One
// document's failure never aborts the batch; every outcome is reported in
// the returned BatchResult.
func (p *Processor) ProcessAll(ctx context.Context, urls []string) *BatchResult {
	batch := &BatchResult{Total: len(urls)}
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			batch.Failed = append(batch.Failed, FailedDocument{URL: url, Reason: err.Error()})
			continue
		}
		result, err := p.Process(ctx, url)
		if err != nil {
			p.logger.Warn("Failed to process document", "url", url, "error", err)
			batch.Failed = append(batch.Failed, FailedDocument{URL: url, Reason: err.Error()})
			continue
		}
		batch.Results = append(batch.Results, result)
	}
	return batch
}
