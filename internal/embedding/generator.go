package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// charsPerToken is the rough character-per-token ratio used to pre-clip
// input before the server-side tokenizer truncates precisely.
const charsPerToken = 4

// Generator turns text into fixed-length embedding vectors by encoding and
// mean-pooling. It holds no mutable state after construction and is safe
// for concurrent use.
type Generator struct {
	encoder   Encoder
	maxTokens int
	logger    *slog.Logger
}

// NewGenerator wraps an already constructed Encoder. If maxTokens is 0,
// DefaultMaxTokens (512) is used.
func NewGenerator(encoder Encoder, maxTokens int, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Generator{
		encoder:   encoder,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Preprocess trims and collapses whitespace and clips the text to the
// character bound implied by the token budget, cutting on a rune boundary.
func (g *Generator) Preprocess(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	limit := g.maxTokens * charsPerToken
	if len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

// EmbedText embeds one text: preprocess, encode, mean-pool. The returned
// vector is plain data owned by the caller; nothing is cached.
func (g *Generator) EmbedText(ctx context.Context, text string) ([]float32, error) {
	text = g.Preprocess(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	enc, err := g.encoder.Encode(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("encoding text: %w", err)
	}
	if len(enc.States) == 0 {
		return nil, fmt.Errorf("encoder returned no token states")
	}
	return MeanPool(enc.States, enc.Mask), nil
}

// ItemResult is the outcome of embedding one batch item. Index is the
// position in the input slice, so callers can reconcile inputs with
// outputs directly instead of guessing from a compacted list.
type ItemResult struct {
	Index  int
	Vector []float32
	Err    error
}

// EmbedBatch embeds each text sequentially with per-item isolation: a
// failure lands in that item's slot and never aborts the rest. The
// returned slice always has one entry per input, in input order.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) []ItemResult {
	results := make([]ItemResult, len(texts))
	for i, text := range texts {
		results[i].Index = i
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		vector, err := g.EmbedText(ctx, text)
		if err != nil {
			g.logger.Warn("Failed to embed text", "index", i, "error", err)
			results[i].Err = err
			continue
		}
		results[i].Vector = vector
	}
	return results
}

// ModelInfo describes the encoder behind this generator.
type ModelInfo struct {
	ModelID   string `json:"model_id"`
	Dimension int    `json:"dimension"`
	MaxTokens int    `json:"max_tokens"`
}

// ModelInfo reports the loaded model's identity, vector dimension, and
// truncation budget.
func (g *Generator) ModelInfo() ModelInfo {
	return ModelInfo{
		ModelID:   g.encoder.ModelID(),
		Dimension: g.encoder.Dimension(),
		MaxTokens: g.maxTokens,
	}
}

// Dimension reports the width of vectors this generator produces.
func (g *Generator) Dimension() int { return g.encoder.Dimension() }
