package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultModelName is the encoder expected behind the inference server.
	DefaultModelName = "sentence-transformers/all-MiniLM-L6-v2"

	// DefaultMaxTokens is the truncation budget for one input text.
	DefaultMaxTokens = 512

	// DefaultBaseURL is the local inference server address.
	DefaultBaseURL = "http://localhost:8080"

	defaultTimeout = 30 * time.Second
)

// ClientConfig configures the HTTP encoder binding.
type ClientConfig struct {
	// BaseURL of the inference server. Defaults to DefaultBaseURL.
	BaseURL string
	// ModelName the server is expected to serve; a mismatch is logged,
	// not fatal. Defaults to DefaultModelName.
	ModelName string
	// MaxTokens is the truncation budget. Defaults to DefaultMaxTokens,
	// capped by the server's own limit when it reports one.
	MaxTokens int
	// Timeout for a single HTTP call.
	Timeout time.Duration
}

// HTTPClient binds Encoder to a text-embeddings-inference style server:
// GET /info for the served model, POST /embed_all for per-token hidden
// states. Tokenization, truncation, and device placement happen server
// side; the client treats the endpoint as the device boundary.
type HTTPClient struct {
	baseURL   string
	modelID   string
	maxTokens int
	dimension int
	client    *http.Client
	logger    *slog.Logger
}

var _ Encoder = (*HTTPClient)(nil)

// NewHTTPClient connects to the inference server, verifies the served
// model, and probes the hidden-state dimension with one encode call.
// Construction fails loudly when the server cannot be reached: nothing can
// be embedded without it, so the error is surfaced rather than deferred.
func NewHTTPClient(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModelName
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &HTTPClient{
		baseURL:   cfg.BaseURL,
		modelID:   cfg.ModelName,
		maxTokens: cfg.MaxTokens,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}

	info, err := c.fetchInfoWithRetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if info.ModelID != "" {
		if info.ModelID != cfg.ModelName {
			logger.Warn("Inference server serves a different model",
				"configured", cfg.ModelName,
				"served", info.ModelID)
		}
		c.modelID = info.ModelID
	}
	if info.MaxInputLength > 0 && info.MaxInputLength < c.maxTokens {
		c.maxTokens = info.MaxInputLength
	}

	probe, err := c.Encode(ctx, "ping")
	if err != nil {
		return nil, fmt.Errorf("%w: probe encode: %v", ErrModelUnavailable, err)
	}
	if len(probe.States) == 0 {
		return nil, fmt.Errorf("%w: probe encode returned no token states", ErrModelUnavailable)
	}
	c.dimension = len(probe.States[0])

	logger.Info("Encoder ready",
		"model", c.modelID,
		"dimension", c.dimension,
		"max_tokens", c.maxTokens)
	return c, nil
}

// serverInfo is the subset of the /info response the client needs.
type serverInfo struct {
	ModelID        string `json:"model_id"`
	MaxInputLength int    `json:"max_input_length"`
}

// fetchInfoWithRetry polls /info with exponential backoff so a server that
// is still loading weights gets a grace period. Client-side errors (4xx)
// fail immediately.
func (c *HTTPClient) fetchInfoWithRetry(ctx context.Context) (*serverInfo, error) {
	var info serverInfo

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/info", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return err // Will retry with backoff
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("info endpoint returned status %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding info response: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return &info, nil
}

// embedAllRequest asks the server for all token states without pooling.
type embedAllRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

// Encode requests the per-token hidden states for one text. The server
// truncates to the token budget and returns only real tokens, so the mask
// is all ones. Rate-limit and server errors retry with backoff; other
// failures are permanent.
func (c *HTTPClient) Encode(ctx context.Context, text string) (Encoding, error) {
	payload, err := json.Marshal(embedAllRequest{Inputs: []string{text}, Truncate: true})
	if err != nil {
		return Encoding{}, fmt.Errorf("encoding request: %w", err)
	}

	var states [][]float32

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed_all", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err // Will retry with backoff
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			statusErr := fmt.Errorf("embed_all returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr // Will retry with backoff
			}
			return backoff.Permanent(statusErr)
		}

		var out [][][]float32
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding embed_all response: %w", err))
		}
		if len(out) == 0 || len(out[0]) == 0 {
			return backoff.Permanent(fmt.Errorf("embed_all returned no token states"))
		}
		states = out[0]
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return Encoding{}, err
	}

	mask := make([]float32, len(states))
	for i := range mask {
		mask[i] = 1
	}
	return Encoding{States: states, Mask: mask}, nil
}

// Health checks that the inference server still answers /info. A single
// round trip, no retry; callers poll this on their own schedule.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/info", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: info endpoint returned status %d", ErrModelUnavailable, resp.StatusCode)
	}
	return nil
}

// Dimension reports the hidden-state width probed at construction.
func (c *HTTPClient) Dimension() int { return c.dimension }

// ModelID reports the identifier of the model the server serves.
func (c *HTTPClient) ModelID() string { return c.modelID }

// MaxTokens reports the effective truncation budget.
func (c *HTTPClient) MaxTokens() int { return c.maxTokens }
