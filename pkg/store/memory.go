package store

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/xhad/subsearch/internal/models"
)

// Memory is an in-process vector store with exact cosine search. It backs
// the "memory" store backend and tests.
type Memory struct {
	mu    sync.RWMutex
	items map[string]models.IndexedChunk
	adds  int
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]models.IndexedChunk)}
}

func (m *Memory) Add(_ context.Context, chunks []models.IndexedChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		emb := make([]float32, len(c.Embedding))
		copy(emb, c.Embedding)
		c.Embedding = emb
		m.items[c.ID] = c
		m.adds++
	}
	return nil
}

func (m *Memory) Query(_ context.Context, embedding []float32, topK int) ([]models.SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]models.SearchHit, 0, len(m.items))
	for _, c := range m.items {
		hits = append(hits, models.SearchHit{
			ID:       c.ID,
			Document: c.Document,
			Name:     c.Name(),
			Distance: CosineDistance(embedding, c.Embedding),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance == hits[j].Distance {
			return hits[i].ID < hits[j].ID
		}
		return hits[i].Distance < hits[j].Distance
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Get returns the stored chunk for id.
func (m *Memory) Get(id string) (models.IndexedChunk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.items[id]
	return c, ok
}

func (m *Memory) Count(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.items)), nil
}

// Upserts returns how many chunk writes were received, overwrites included.
func (m *Memory) Upserts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adds
}

func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]models.IndexedChunk)
	return nil
}

func (m *Memory) Close() {}

// CosineDistance is 1 - cosine similarity, matching pgvector's <=> operator.
// Zero vectors are at distance 1.
func CosineDistance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
