//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDimension keeps integration fixtures small; the collection dimension is
// whatever the storage was constructed with, not a property of the server.
const testDimension = 8

// setupTestStorage creates a storage instance on a unique throwaway collection.
// Skips the test if Qdrant is not running; drops the collection on cleanup.
func setupTestStorage(t *testing.T) *QdrantStorage {
	collection := fmt.Sprintf("publications_test_%d", time.Now().UnixNano())

	storage, err := NewQdrantStorage("localhost", 6334, collection, testDimension)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	err = storage.EnsureCollection(context.Background())
	require.NoError(t, err, "Failed to ensure collection")

	t.Cleanup(func() {
		_ = storage.client.DeleteCollection(context.Background(), collection)
		_ = storage.Close()
	})

	return storage
}

// testEmbedding returns a testDimension-sized vector filled with value.
func testEmbedding(value float32) []float32 {
	embedding := make([]float32, testDimension)
	for i := range embedding {
		embedding[i] = value
	}
	return embedding
}

func TestPublicationRoundTrip(t *testing.T) {
	storage := setupTestStorage(t)

	ctx := context.Background()

	pubID := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Second) // Truncate to avoid microsecond precision issues

	pub := &Publication{
		ID:      pubID,
		Content: "Malaria transmission dynamics in western Kenya. Full cleaned text here.",
		Metadata: PublicationMetadata{
			URL:         "https://example.org/papers/malaria-dynamics.pdf",
			Title:       "Malaria Transmission Dynamics in Western Kenya",
			DOI:         "10.1000/malaria.2024.001",
			Authors:     []string{"A. Otieno", "B. Wanjiru"},
			Summary:     "A modeling study of seasonal malaria transmission.",
			ContentType: "publications",
			Topics:      []string{"malaria", "transmission modeling"},
			Hash:        "deadbeef00112233",
			TotalLength: 71,
			IndexedAt:   now,
		},
	}

	err := storage.UpsertPublication(ctx, pub, nil)
	require.NoError(t, err, "Failed to upsert publication")

	retrieved, err := storage.GetPublication(ctx, pubID)
	require.NoError(t, err, "Failed to get publication")

	assert.Equal(t, pub.ID, retrieved.ID)
	assert.Equal(t, pub.Content, retrieved.Content)
	assert.Equal(t, pub.Metadata.URL, retrieved.Metadata.URL)
	assert.Equal(t, pub.Metadata.Title, retrieved.Metadata.Title)
	assert.Equal(t, pub.Metadata.DOI, retrieved.Metadata.DOI)
	assert.ElementsMatch(t, pub.Metadata.Authors, retrieved.Metadata.Authors)
	assert.Equal(t, pub.Metadata.Summary, retrieved.Metadata.Summary)
	assert.Equal(t, pub.Metadata.ContentType, retrieved.Metadata.ContentType)
	assert.Equal(t, pub.Metadata.Topics, retrieved.Metadata.Topics)
	assert.Equal(t, pub.Metadata.Hash, retrieved.Metadata.Hash)
	assert.Equal(t, pub.Metadata.TotalLength, retrieved.Metadata.TotalLength)

	// Time comparison with tolerance for serialization
	assert.WithinDuration(t, pub.Metadata.IndexedAt, retrieved.Metadata.IndexedAt, time.Second)
}

func TestGetPublicationByURL(t *testing.T) {
	storage := setupTestStorage(t)

	ctx := context.Background()

	url := "https://example.org/papers/by-url-" + uuid.New().String() + ".pdf"
	pub := &Publication{
		ID:      uuid.New().String(),
		Content: "Content for URL lookup.",
		Metadata: PublicationMetadata{
			URL:       url,
			Title:     "URL Lookup Test",
			Hash:      "hash-v1",
			IndexedAt: time.Now().UTC(),
		},
	}

	err := storage.UpsertPublication(ctx, pub, nil)
	require.NoError(t, err)

	// Qdrant indexing is eventually consistent
	time.Sleep(100 * time.Millisecond)

	retrieved, err := storage.GetPublicationByURL(ctx, url)
	require.NoError(t, err, "Failed to get publication by URL")
	assert.Equal(t, pub.ID, retrieved.ID)
	assert.Equal(t, "hash-v1", retrieved.Metadata.Hash, "Stored hash drives change detection")

	_, err = storage.GetPublicationByURL(ctx, "https://example.org/never-indexed.pdf")
	assert.ErrorIs(t, err, ErrPublicationNotFound)
}

func TestChunkSearchRoundTrip(t *testing.T) {
	storage := setupTestStorage(t)

	ctx := context.Background()

	pubID := uuid.New().String()
	url := "https://example.org/papers/chunk-search.pdf"

	pub := &Publication{
		ID:      pubID,
		Content: "Parent publication full text.",
		Metadata: PublicationMetadata{
			URL:       url,
			Title:     "Chunk Search Test",
			IndexedAt: time.Now().UTC(),
		},
	}

	chunk := &Chunk{
		ID:         uuid.New().String(),
		ParentID:   pubID,
		ChunkIndex: 0,
		Text:       "vector borne disease surveillance methods",
		URL:        url,
		Embedding:  testEmbedding(0.1),
	}

	err := storage.UpsertPublication(ctx, pub, []*Chunk{chunk})
	require.NoError(t, err, "Failed to upsert publication with chunk")

	results, err := storage.SearchChunks(ctx, testEmbedding(0.1), 10)
	require.NoError(t, err, "Failed to search chunks")

	require.Len(t, results, 1, "Expected 1 search result")

	result := results[0]
	assert.Equal(t, chunk.ParentID, result.Chunk.ParentID)
	assert.Equal(t, chunk.ChunkIndex, result.Chunk.ChunkIndex)
	assert.Equal(t, chunk.Text, result.Chunk.Text)
	assert.Equal(t, chunk.URL, result.Chunk.URL)
	assert.Greater(t, result.Score, 0.0, "Score should be greater than 0")
	assert.LessOrEqual(t, result.Score, 1.0001, "Cosine score should be at most 1")
}

func TestDimensionValidation(t *testing.T) {
	storage := setupTestStorage(t)

	ctx := context.Background()

	pub := &Publication{
		ID:       uuid.New().String(),
		Content:  "Dimension validation test.",
		Metadata: PublicationMetadata{URL: "https://example.org/dim.pdf", IndexedAt: time.Now().UTC()},
	}

	wrongChunk := &Chunk{
		ID:         uuid.New().String(),
		ParentID:   pub.ID,
		ChunkIndex: 0,
		Text:       "wrong dimension",
		URL:        pub.Metadata.URL,
		Embedding:  make([]float32, testDimension*2),
	}

	err := storage.UpsertPublication(ctx, pub, []*Chunk{wrongChunk})
	assert.ErrorIs(t, err, ErrDimensionMismatch, "Should reject wrong embedding dimension")

	_, err = storage.SearchChunks(ctx, make([]float32, testDimension*2), 10)
	assert.ErrorIs(t, err, ErrDimensionMismatch, "Should reject wrong query dimension")
}

func TestPublicationNotFound(t *testing.T) {
	storage := setupTestStorage(t)

	ctx := context.Background()

	_, err := storage.GetPublication(ctx, uuid.New().String())
	assert.ErrorIs(t, err, ErrPublicationNotFound)
}

func TestBatchChunkUpsert(t *testing.T) {
	storage := setupTestStorage(t)

	ctx := context.Background()

	pubID := uuid.New().String()
	url := "https://example.org/papers/batch.pdf"

	pub := &Publication{
		ID:       pubID,
		Content:  "Batch upsert test.",
		Metadata: PublicationMetadata{URL: url, Title: "Batch Test", IndexedAt: time.Now().UTC()},
	}

	// 250 chunks crosses the batch boundary of 100 twice
	chunks := make([]*Chunk, 250)
	for i := range chunks {
		chunks[i] = &Chunk{
			ID:         uuid.New().String(),
			ParentID:   pubID,
			ChunkIndex: i,
			Text:       "chunk content",
			URL:        url,
			Embedding:  testEmbedding(0.5),
		}
	}

	err := storage.UpsertPublication(ctx, pub, chunks)
	require.NoError(t, err, "Failed to upsert batch of chunks")

	results, err := storage.SearchChunks(ctx, testEmbedding(0.5), 300)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(results), 250, "Expected at least 250 chunks in search results")

	info, err := storage.GetCollectionInfo(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, info.PointsCount, uint64(251), "Publication point plus 250 chunk points")
}

func TestListPublicationURLs(t *testing.T) {
	storage := setupTestStorage(t)

	ctx := context.Background()

	urls := []string{
		"https://example.org/papers/a.pdf",
		"https://example.org/papers/b.pdf",
		"https://example.org/papers/c.pdf",
	}

	for _, url := range urls {
		pub := &Publication{
			ID:       uuid.New().String(),
			Content:  "Publication at " + url,
			Metadata: PublicationMetadata{URL: url, IndexedAt: time.Now().UTC()},
		}
		err := storage.UpsertPublication(ctx, pub, nil)
		require.NoError(t, err, "Failed to upsert publication at %s", url)
	}

	// Wait for Qdrant to index points (eventual consistency)
	time.Sleep(100 * time.Millisecond)

	result, err := storage.ListPublicationURLs(ctx)
	require.NoError(t, err, "Failed to list publication URLs")

	assert.Len(t, result, 3, "Expected 3 publication URLs")
	assert.Equal(t, urls, result, "URLs should be returned in sorted order")
}

func TestDeletePublication(t *testing.T) {
	storage := setupTestStorage(t)

	ctx := context.Background()

	pubID := uuid.New().String()
	url := "https://example.org/papers/delete-me.pdf"

	pub := &Publication{
		ID:       pubID,
		Content:  "Publication scheduled for deletion.",
		Metadata: PublicationMetadata{URL: url, Hash: "old-hash", IndexedAt: time.Now().UTC()},
	}

	chunks := []*Chunk{
		{ID: uuid.New().String(), ParentID: pubID, ChunkIndex: 0, Text: "first", URL: url, Embedding: testEmbedding(0.2)},
		{ID: uuid.New().String(), ParentID: pubID, ChunkIndex: 1, Text: "second", URL: url, Embedding: testEmbedding(0.3)},
	}

	err := storage.UpsertPublication(ctx, pub, chunks)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	err = storage.DeletePublication(ctx, url)
	require.NoError(t, err, "Failed to delete publication")

	time.Sleep(100 * time.Millisecond)

	_, err = storage.GetPublicationByURL(ctx, url)
	assert.ErrorIs(t, err, ErrPublicationNotFound, "Publication point should be gone")

	results, err := storage.SearchChunks(ctx, testEmbedding(0.2), 10)
	require.NoError(t, err)
	assert.Empty(t, results, "Chunk points should be deleted with their parent")
}

func TestPersistence(t *testing.T) {
	storage := setupTestStorage(t)

	ctx := context.Background()

	pubID := uuid.New().String()
	originalContent := "This content must survive reconnection."

	pub := &Publication{
		ID:      pubID,
		Content: originalContent,
		Metadata: PublicationMetadata{
			URL:       "https://example.org/papers/persistence.pdf",
			Title:     "Persistence Test",
			Hash:      "persist123",
			IndexedAt: time.Now().UTC(),
		},
	}

	err := storage.UpsertPublication(ctx, pub, nil)
	require.NoError(t, err, "Failed to upsert publication")

	retrieved1, err := storage.GetPublication(ctx, pubID)
	require.NoError(t, err, "Failed to get publication before close")
	assert.Equal(t, originalContent, retrieved1.Content)

	// Reconnect on the same collection (simulates application restart)
	storage2, err := NewQdrantStorage("localhost", 6334, storage.collection, testDimension)
	require.NoError(t, err, "Failed to reconnect to Qdrant")
	defer storage2.Close()

	retrieved2, err := storage2.GetPublication(ctx, pubID)
	require.NoError(t, err, "Failed to get publication after reconnection")

	assert.Equal(t, pubID, retrieved2.ID)
	assert.Equal(t, originalContent, retrieved2.Content)
	assert.Equal(t, pub.Metadata.Title, retrieved2.Metadata.Title)
	assert.Equal(t, pub.Metadata.Hash, retrieved2.Metadata.Hash)
}
