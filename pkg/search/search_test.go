package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/subsearch/internal/models"
	"github.com/xhad/subsearch/pkg/search"
	"github.com/xhad/subsearch/pkg/store"
)

func TestMovieLabel(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"The.Matrix.1999.eng.srt", "The Matrix"},
		{"Heat (1995).srt", "Heat"},
		{"friends.s01e02.eng.srt", "Friends"},
		{"blade_runner.srt", "Blade Runner"},
		{"movie.part.001.srt", "Movie Part"},
		{"2001.A.Space.Odyssey.1968.srt", "2001 A Space Odyssey"},
		{"THE_GODFATHER.ENG.srt", "The Godfather"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, search.MovieLabel(tt.filename))
		})
	}
}

type axisEmbedder struct{ vectors map[string][]float32 }

func (e axisEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.EmbedQuery(ctx, t)
	}
	return out, nil
}

func (e axisEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 1, 1}, nil
}

func TestSearcherRanksByDistance(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Add(ctx, []models.IndexedChunk{
		{ID: "1", Metadata: map[string]string{"name": "The.Matrix.1999.eng.srt"}, Embedding: []float32{1, 0, 0}},
		{ID: "5", Metadata: map[string]string{"name": "Heat (1995).srt"}, Embedding: []float32{0, 1, 0}},
		{ID: "9", Metadata: map[string]string{"name": "Alien.1979.srt"}, Embedding: []float32{0, 0, 1}},
	}))

	emb := axisEmbedder{vectors: map[string][]float32{"red pill": {0.9, 0.1, 0}}}
	s := search.New(emb, mem, 2)

	matches, err := s.Search(ctx, "  red pill ", 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "The Matrix", matches[0].Label)
	assert.Equal(t, "1", matches[0].ID)
	assert.Equal(t, "Heat", matches[1].Label)
	assert.Less(t, matches[0].Score, matches[1].Score)

	_, err = s.Search(ctx, "   ", 3)
	assert.ErrorIs(t, err, search.ErrEmptyQuery)
}
