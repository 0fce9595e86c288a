package typeahead

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kimu90/saved-ai/internal/search"
)

const clientTimeout = 15 * time.Second

// Client calls the search service HTTP API. It satisfies Backend.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// NewClient creates a client for the search service at baseURL. The
// userID is sent as the X-User-ID header so predictions reflect the
// user's own history first.
func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
		httpClient: &http.Client{Timeout: clientTimeout},
	}
}

// Predict fetches query completions for a partial input.
func (c *Client) Predict(ctx context.Context, partial string, limit int) ([]string, error) {
	endpoint := c.baseURL + "/search/search/predict?" + url.Values{
		"partial_query": {partial},
		"limit":         {strconv.Itoa(limit)},
	}.Encode()

	var resp search.PredictResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Predictions, nil
}

// Search runs a full search for a query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]search.SearchResult, error) {
	endpoint := c.baseURL + "/search/search?" + url.Values{
		"query": {query},
		"limit": {strconv.Itoa(limit)},
	}.Encode()

	var resp search.SearchResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("search server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
