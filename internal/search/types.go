// Package search implements the HTTP search and prediction service over
// the publication index.
package search

// SearchResponse is the JSON body returned by the search endpoint.
type SearchResponse struct {
	// Query echoes the search query.
	Query string `json:"query"`
	// Total is the number of matching publications returned.
	Total int `json:"total"`
	// Results lists matching publications, best match first.
	Results []SearchResult `json:"results"`
}

// SearchResult represents a single publication match from semantic search.
type SearchResult struct {
	// Title of the publication.
	Title string `json:"title"`
	// DOI is the digital object identifier, when known.
	DOI string `json:"doi"`
	// Authors lists the publication's authors.
	Authors []string `json:"authors"`
	// Summary is the LLM-generated publication summary.
	Summary string `json:"summary"`
	// URL is the source PDF location.
	URL string `json:"url"`
	// Score is the best chunk similarity score for this publication (0-1).
	Score float64 `json:"score"`
}

// PredictResponse is the JSON body returned by the predict endpoint.
type PredictResponse struct {
	// PartialQuery echoes the partial input.
	PartialQuery string `json:"partial_query"`
	// Predictions lists completions, most likely first.
	Predictions []string `json:"predictions"`
	// ConfidenceScores carries one display score per prediction,
	// decreasing by rank.
	ConfidenceScores []float64 `json:"confidence_scores"`
}
