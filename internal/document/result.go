package document

import "time"

// ProcessingResult is produced once per successfully processed URL.
type ProcessingResult struct {
	URL         string    `json:"url"`
	FilePath    string    `json:"file_path"`
	Text        string    `json:"-"`
	Chunks      []string  `json:"chunks"`
	NumChunks   int       `json:"num_chunks"`
	TotalLength int       `json:"total_length"`
	Timestamp   time.Time `json:"timestamp"`
	Hash        string    `json:"hash"`
}

// FailedDocument records why one URL in a batch produced no result.
type FailedDocument struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// BatchResult reports every outcome of a ProcessAll run. Results preserves
// the input order of the successful URLs; failures are listed with their
// reasons rather than silently dropped.
type BatchResult struct {
	Total   int                 `json:"total"`
	Results []*ProcessingResult `json:"results"`
	Failed  []FailedDocument    `json:"failed,omitempty"`
}
