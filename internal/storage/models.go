package storage

import "time"

// Publication represents a fully processed publication stored in Qdrant.
// Publications have no embedding vector - they exist for citation metadata
// and full-text retrieval after a chunk-level search.
type Publication struct {
	ID       string // UUID, derived from the source URL
	Content  string // Full cleaned text
	Metadata PublicationMetadata
}

// PublicationMetadata contains citation and indexing metadata.
type PublicationMetadata struct {
	URL         string    // Source PDF URL
	Title       string    // Publication title
	DOI         string    // Digital object identifier, may be empty
	Authors     []string  // Author names in citation order
	Summary     string    // Generated abstract-style summary
	ContentType string    // One of: articles, publications, blogs, multimedia
	Topics      []string  // Generated topical keywords, at most a handful
	Hash        string    // SHA-256 of the cleaned text, for change detection
	TotalLength int       // Cleaned text length in characters
	IndexedAt   time.Time // When this version was indexed
}

// Chunk represents a publication span with an embedding vector.
// Similarity search runs against chunks; the parent publication is
// retrieved afterwards for its citation fields.
type Chunk struct {
	ID         string    // UUID
	ParentID   string    // Links to parent Publication.ID
	ChunkIndex int       // Position in publication (0, 1, 2...)
	Text       string    // Chunk text content
	URL        string    // Same as parent URL (for filtering)
	Embedding  []float32 // Mean-pooled embedding vector
}

// ScoredChunk pairs a search hit with its cosine similarity score.
type ScoredChunk struct {
	Chunk *Chunk
	Score float64
}

// DefaultCollectionName is the Qdrant collection used when none is configured.
const DefaultCollectionName = "publications"
