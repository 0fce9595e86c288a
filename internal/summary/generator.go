package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/openai/openai-go"
)

// DefaultMaxTokens is the maximum content length before truncation (in tokens).
const DefaultMaxTokens = 16000

// maxTopics bounds the keyword list a single publication carries.
const maxTopics = 5

// defaultContentType is used when the model labels outside the known set.
const defaultContentType = "publications"

var validContentTypes = map[string]bool{
	"articles":     true,
	"publications": true,
	"blogs":        true,
	"multimedia":   true,
}

// Metadata contains LLM-generated descriptive metadata for a publication.
type Metadata struct {
	Summary     string   `json:"summary"`
	ContentType string   `json:"content_type"`
	Topics      []string `json:"topics"`
}

// Generator produces publication summaries using GPT-4o.
type Generator struct {
	client    *openai.Client
	maxTokens int
}

// NewGenerator creates a summarizer backed by the OpenAI chat API.
// It returns ErrNoAPIKey when OPENAI_API_KEY is unset so callers can run
// with summaries disabled instead of failing the whole sync.
// Optional maxTokens parameter sets the truncation limit (defaults to DefaultMaxTokens).
func NewGenerator(maxTokens ...int) (*Generator, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, ErrNoAPIKey
	}

	// openai-go reads OPENAI_API_KEY from the environment
	client := openai.NewClient()

	max := DefaultMaxTokens
	if len(maxTokens) > 0 && maxTokens[0] > 0 {
		max = maxTokens[0]
	}

	return &Generator{
		client:    &client,
		maxTokens: max,
	}, nil
}

// Generate analyzes a publication and produces a short summary, a content
// type label, and topical keywords.
func (g *Generator) Generate(ctx context.Context, title, content string) (*Metadata, error) {
	truncated := g.truncateContent(content)

	prompt := fmt.Sprintf(`You are indexing a research publication library. Analyze this publication and provide:
1. A concise summary (2-3 sentences) of the subject, methods, and findings
2. A content type label: exactly one of "articles", "publications", "blogs", "multimedia"
3. Up to 5 topical keywords a researcher might search for

Title: %s

Content:
%s

Respond in JSON format:
{"summary": "What this publication covers and finds", "content_type": "publications", "topics": ["topic1", "topic2"]}`, title, truncated)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModelGPT4o,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	var metadata Metadata
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	normalize(&metadata)

	return &metadata, nil
}

// normalize clamps model output to the values the index stores: a known
// content type label and at most maxTopics keywords.
func normalize(m *Metadata) {
	m.ContentType = strings.ToLower(strings.TrimSpace(m.ContentType))
	if !validContentTypes[m.ContentType] {
		m.ContentType = defaultContentType
	}

	if len(m.Topics) > maxTopics {
		m.Topics = m.Topics[:maxTopics]
	}
}

// truncateContent truncates content to fit within token limits.
// Uses rough estimate of 4 characters per token.
func (g *Generator) truncateContent(content string) string {
	maxChars := g.maxTokens * 4

	if len(content) <= maxChars {
		return content
	}

	log.Printf("Warning: Truncating content from %d to %d characters (estimated %d tokens)",
		len(content), maxChars, g.maxTokens)

	return content[:maxChars]
}
