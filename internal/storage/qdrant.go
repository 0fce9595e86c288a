package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStorage wraps the Qdrant client with connection management and health
// checks. The collection name and vector dimension are fixed at construction;
// the dimension comes from the active encoder so the collection always matches
// the model that produced the vectors.
type QdrantStorage struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs a health check with retry on startup and fails fast if Qdrant
// is unreachable. An empty collection name falls back to DefaultCollectionName.
func NewQdrantStorage(host string, port int, collection string, dimension int) (*QdrantStorage, error) {
	if collection == "" {
		collection = DefaultCollectionName
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}

	// Qdrant client speaks gRPC
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}

	ctx := context.Background()
	err = storage.healthCheckWithRetry(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return storage, nil
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		return s.Health(ctx)
	}

	return backoff.Retry(operation, exponentialBackoff)
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

// EnsureCollection ensures the publications collection exists with proper
// configuration: a named "content" vector with cosine distance, plus payload
// indexes for the filterable fields. Idempotent - safe to call multiple times.
func (s *QdrantStorage) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == s.collection {
			// Collection already exists, nothing to do
			return nil
		}
	}

	// Named vectors let publication points (no vector) and chunk points
	// (with a "content" vector) share the same collection.
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			"content": {
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	err = s.createPayloadIndexes(ctx)
	if err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}

	return nil
}

// createPayloadIndexes creates keyword indexes for the filterable fields.
// Without them, filtered queries fall back to full scans.
func (s *QdrantStorage) createPayloadIndexes(ctx context.Context) error {
	fields := []string{
		"url",       // Lookup publications and chunks by source URL
		"hash",      // Change detection between syncs
		"type",      // Distinguish "publication" vs "chunk"
		"parent_id", // Lookup chunks by parent publication
	}

	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// ClearCollection deletes all points in the collection by dropping and
// recreating it. Used for full re-index runs.
func (s *QdrantStorage) ClearCollection(ctx context.Context) error {
	err := s.client.DeleteCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	return s.EnsureCollection(ctx)
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// upsertWithRetry performs an upsert operation with exponential backoff retry.
func (s *QdrantStorage) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, exponentialBackoff)
}

// UpsertPublication stores a publication point and its chunk points.
// The publication carries the payload fields used by search results; chunks
// carry the "content" vector and are batched in groups of 100. Every chunk
// embedding is dimension-checked before anything is written.
func (s *QdrantStorage) UpsertPublication(ctx context.Context, pub *Publication, chunks []*Chunk) error {
	for i, chunk := range chunks {
		if len(chunk.Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(chunk.Embedding), s.dimension)
		}
	}

	payload := map[string]any{
		"type":         "publication",
		"url":          pub.Metadata.URL,
		"title":        pub.Metadata.Title,
		"doi":          pub.Metadata.DOI,
		"summary":      pub.Metadata.Summary,
		"content_type": pub.Metadata.ContentType,
		"content":      pub.Content,
		"hash":         pub.Metadata.Hash,
		"total_length": pub.Metadata.TotalLength,
		"indexed_at":   pub.Metadata.IndexedAt.Format(time.RFC3339),
	}

	// NewValueMap needs []interface{} for list values
	authors := make([]interface{}, len(pub.Metadata.Authors))
	for i, author := range pub.Metadata.Authors {
		authors[i] = author
	}
	payload["authors"] = authors

	topics := make([]interface{}, len(pub.Metadata.Topics))
	for i, topic := range pub.Metadata.Topics {
		topics[i] = topic
	}
	payload["topics"] = topics

	// Publication points have no vector - use an empty vector map
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(pub.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
		Payload: qdrant.NewValueMap(payload),
	}

	err := s.upsertWithRetry(ctx, []*qdrant.PointStruct{point})
	if err != nil {
		return fmt.Errorf("failed to upsert publication: %w", err)
	}

	batchSize := 100
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := chunks[i:end]
		points := make([]*qdrant.PointStruct, len(batch))

		for j, chunk := range batch {
			points[j] = &qdrant.PointStruct{
				Id: qdrant.NewIDUUID(chunk.ID),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					"content": qdrant.NewVector(chunk.Embedding...),
				}),
				Payload: qdrant.NewValueMap(map[string]any{
					"type":        "chunk",
					"parent_id":   chunk.ParentID,
					"chunk_index": chunk.ChunkIndex,
					"text":        chunk.Text,
					"url":         chunk.URL,
				}),
			}
		}

		err := s.upsertWithRetry(ctx, points)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// publicationFromPayload rebuilds a Publication from a stored point payload.
func publicationFromPayload(id string, payload map[string]*qdrant.Value) *Publication {
	indexedAt, err := time.Parse(time.RFC3339, payload["indexed_at"].GetStringValue())
	if err != nil {
		indexedAt = time.Time{}
	}

	var authors []string
	if authorsVal, ok := payload["authors"]; ok && authorsVal.GetListValue() != nil {
		for _, val := range authorsVal.GetListValue().Values {
			authors = append(authors, val.GetStringValue())
		}
	}

	var topics []string
	if topicsVal, ok := payload["topics"]; ok && topicsVal.GetListValue() != nil {
		for _, val := range topicsVal.GetListValue().Values {
			topics = append(topics, val.GetStringValue())
		}
	}

	return &Publication{
		ID:      id,
		Content: payload["content"].GetStringValue(),
		Metadata: PublicationMetadata{
			URL:         payload["url"].GetStringValue(),
			Title:       payload["title"].GetStringValue(),
			DOI:         payload["doi"].GetStringValue(),
			Authors:     authors,
			Summary:     payload["summary"].GetStringValue(),
			ContentType: payload["content_type"].GetStringValue(),
			Topics:      topics,
			Hash:        payload["hash"].GetStringValue(),
			TotalLength: int(payload["total_length"].GetIntegerValue()),
			IndexedAt:   indexedAt,
		},
	}
}

// GetPublication retrieves a publication point by ID.
// Returns ErrPublicationNotFound if it doesn't exist or is a chunk point.
func (s *QdrantStorage) GetPublication(ctx context.Context, id string) (*Publication, error) {
	result, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get publication: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrPublicationNotFound
	}

	point := result[0]

	typeVal, ok := point.Payload["type"]
	if !ok || typeVal.GetStringValue() != "publication" {
		return nil, ErrPublicationNotFound
	}

	return publicationFromPayload(id, point.Payload), nil
}

// GetPublicationByURL retrieves a publication point by its source URL.
// The sync pipeline uses the returned Hash to skip unchanged documents.
// Returns ErrPublicationNotFound if the URL has never been indexed.
func (s *QdrantStorage) GetPublicationByURL(ctx context.Context, url string) (*Publication, error) {
	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("type", "publication"),
				qdrant.NewMatch("url", url),
			},
		},
		Limit:       qdrant.PtrOf(uint32(1)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query publication by url: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrPublicationNotFound
	}

	point := results[0]
	return publicationFromPayload(point.Id.GetUuid(), point.Payload), nil
}

// SearchChunks performs vector similarity search over chunk points.
// Returns the top N chunks with similarity scores, ordered by score descending.
func (s *QdrantStorage) SearchChunks(ctx context.Context, embedding []float32, limit int) ([]*ScoredChunk, error) {
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), s.dimension)
	}

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("type", "chunk"),
		},
	}

	// Search against the named "content" vector
	vectorName := "content"
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Using:          &vectorName,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	scoredChunks := make([]*ScoredChunk, 0, len(results))
	for _, result := range results {
		payload := result.Payload

		chunk := &Chunk{
			ID:         result.Id.GetUuid(),
			ParentID:   payload["parent_id"].GetStringValue(),
			ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
			Text:       payload["text"].GetStringValue(),
			URL:        payload["url"].GetStringValue(),
		}

		scoredChunks = append(scoredChunks, &ScoredChunk{
			Chunk: chunk,
			Score: float64(result.Score),
		})
	}

	return scoredChunks, nil
}

// ListPublicationURLs returns the source URLs of all indexed publications,
// sorted alphabetically. Uses the Scroll API to page through the collection.
func (s *QdrantStorage) ListPublicationURLs(ctx context.Context) ([]string, error) {
	var urls []string
	var offset *qdrant.PointId

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("type", "publication"),
		},
	}

	batchSize := uint32(100)

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         filter,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude("url"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll publications: %w", err)
		}

		for _, result := range results {
			if url := result.Payload["url"].GetStringValue(); url != "" {
				urls = append(urls, url)
			}
		}

		if uint32(len(results)) < batchSize {
			break
		}

		// Next page starts after the last point of this one
		offset = results[len(results)-1].Id
	}

	sort.Strings(urls)
	return urls, nil
}

// DeletePublication removes a publication point and all of its chunk points.
// Both carry the source URL in their payload, so a single filtered delete
// covers them. Re-indexing changed content deletes first to avoid stale chunks.
func (s *QdrantStorage) DeletePublication(ctx context.Context, url string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("url", url),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete publication: %w", err)
	}

	return nil
}

// CollectionInfo contains collection statistics
type CollectionInfo struct {
	PointsCount uint64
}

// GetCollectionInfo retrieves collection statistics including total points count.
func (s *QdrantStorage) GetCollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	collection, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	return &CollectionInfo{
		PointsCount: collection.GetPointsCount(),
	}, nil
}
