package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/subsearch/internal/models"
	"github.com/xhad/subsearch/pkg/store"
)

func getTestConfig(t *testing.T) store.VectorStoreConfig {
	url := os.Getenv("SUBSEARCH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SUBSEARCH_TEST_DATABASE_URL not set")
	}
	return store.VectorStoreConfig{
		ConnString: url,
		TableName:  "test_subtitles",
		VectorDim:  3,
		IndexType:  "hnsw",
	}
}

func chunk(id, name string, v ...float32) models.IndexedChunk {
	return models.IndexedChunk{
		ID:        id,
		Document:  "text of " + id,
		Metadata:  map[string]string{"name": name},
		Embedding: v,
	}
}

func TestVectorStore(t *testing.T) {
	config := getTestConfig(t)
	ctx := context.Background()

	s, err := store.NewWithConfig(ctx, config)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Reset(ctx))

	require.NoError(t, s.Add(ctx, []models.IndexedChunk{
		chunk("1", "The.Matrix.1999.srt", 1, 0, 0),
		chunk("5", "Heat.1995.srt", 0, 1, 0),
	}))
	// Re-adding an id overwrites it.
	require.NoError(t, s.Add(ctx, []models.IndexedChunk{
		chunk("5", "Heat.1995.eng.srt", 0, 1, 0),
		chunk("9", "Alien.1979.srt", 0, 0, 1),
	}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	hits, err := s.Query(ctx, []float32{0, 1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "5", hits[0].ID)
	assert.Equal(t, "Heat.1995.eng.srt", hits[0].Name)
	assert.Less(t, hits[0].Distance, hits[1].Distance)

	err = s.Add(ctx, []models.IndexedChunk{chunk("x", "bad", 1, 2)})
	assert.Error(t, err)
}

func TestNewWithConfigRejectsBadTable(t *testing.T) {
	_, err := store.NewWithConfig(context.Background(), store.VectorStoreConfig{TableName: "x; drop"})
	assert.ErrorIs(t, err, store.ErrInvalidTable)
}
