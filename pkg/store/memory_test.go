package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/subsearch/internal/models"
	"github.com/xhad/subsearch/pkg/store"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	defer m.Close()

	require.NoError(t, m.Add(ctx, []models.IndexedChunk{
		chunk("1", "a", 1, 0),
		chunk("5", "b", 0, 1),
	}))
	require.NoError(t, m.Add(ctx, []models.IndexedChunk{chunk("5", "b2", 0, 1)}))

	n, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 3, m.Upserts())

	hits, err := m.Query(ctx, []float32{0.1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "5", hits[0].ID)
	assert.Equal(t, "b2", hits[0].Name)

	require.NoError(t, m.Reset(ctx))
	n, _ = m.Count(ctx)
	assert.Zero(t, n)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, store.CosineDistance([]float32{1, 1}, []float32{2, 2}), 1e-9)
	assert.InDelta(t, 1, store.CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, store.CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 1.0, store.CosineDistance([]float32{0, 0}, []float32{1, 0}))
}
