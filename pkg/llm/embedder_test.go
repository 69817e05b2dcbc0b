package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/subsearch/pkg/llm"
)

type recordingBackend struct {
	requests [][]string
	queries  int
	fail     error
}

func (b *recordingBackend) Embed(_ context.Context, texts []string, query bool) ([][]float32, error) {
	if b.fail != nil {
		return nil, b.fail
	}
	b.requests = append(b.requests, texts)
	if query {
		b.queries++
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(context.Background(), llm.EmbedderConfig{
		BaseURL: "http://localhost:1234",
	})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text:latest", emb.Config.Model)
	assert.Equal(t, llm.ProviderOllama, emb.Config.Provider)

	_, err = llm.NewEmbedderWithConfig(context.Background(), llm.EmbedderConfig{Provider: "word2vec"})
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)

	_, err = llm.NewEmbedderWithConfig(context.Background(), llm.EmbedderConfig{Provider: llm.ProviderGemini})
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
}

func TestEmbedDocumentsBatches(t *testing.T) {
	backend := &recordingBackend{}
	emb := llm.NewEmbedder(backend, llm.EmbedderConfig{BatchSize: 2, RequestsPerSecond: 1000})

	vectors, err := emb.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc", "dddd", "e"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}, {3}, {4}, {1}}, vectors)
	assert.Len(t, backend.requests, 3)

	v, err := emb.EmbedQuery(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, []float32{5}, v)
	assert.Equal(t, 1, backend.queries)
}

func TestEmbedDocumentsError(t *testing.T) {
	boom := errors.New("offline")
	emb := llm.NewEmbedder(&recordingBackend{fail: boom}, llm.EmbedderConfig{})
	_, err := emb.EmbedDocuments(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, boom)
}

func TestCachedQueryEmbedder(t *testing.T) {
	backend := &recordingBackend{}
	inner := llm.NewEmbedder(backend, llm.EmbedderConfig{})
	cached := llm.NewCachedQueryEmbedder(inner, "test-model", 8, time.Minute)
	ctx := context.Background()

	first, err := cached.EmbedQuery(ctx, "matrix")
	require.NoError(t, err)
	first[0] = 99

	second, err := cached.EmbedQuery(ctx, "matrix")
	require.NoError(t, err)
	assert.Equal(t, []float32{6}, second)
	assert.Equal(t, 1, backend.queries)
	assert.Equal(t, 1, cached.Len())

	_, err = cached.EmbedDocuments(ctx, []string{"x", "y"})
	require.NoError(t, err)
	_, err = cached.EmbedDocuments(ctx, []string{"x", "y"})
	require.NoError(t, err)
	assert.Len(t, backend.requests, 3)
}
