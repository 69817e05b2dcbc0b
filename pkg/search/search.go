// Package search turns a free-text question into ranked movie matches.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xhad/subsearch/internal/logging"
	"github.com/xhad/subsearch/internal/models"
	"github.com/xhad/subsearch/internal/types"
)

var ErrEmptyQuery = errors.New("query is empty")

type Searcher struct {
	embedder    types.Embedder
	store       types.VectorStore
	defaultTopK int
}

func New(embedder types.Embedder, store types.VectorStore, defaultTopK int) *Searcher {
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	return &Searcher{embedder: embedder, store: store, defaultTopK: defaultTopK}
}

// Search returns matches ordered by ascending cosine distance. A topK of
// zero uses the default.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]models.MovieMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := s.store.Query(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}

	matches := make([]models.MovieMatch, len(hits))
	for i, h := range hits {
		matches[i] = models.MovieMatch{
			Label: MovieLabel(h.Name),
			Score: h.Distance,
			ID:    h.ID,
			Name:  h.Name,
		}
	}
	logging.FromContext(ctx).Debug("search finished", zap.Int("top_k", topK), zap.Int("hits", len(matches)))
	return matches, nil
}
