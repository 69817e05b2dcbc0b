package types

import (
	"context"

	"github.com/xhad/subsearch/internal/models"
)

// Core interfaces
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Add(ctx context.Context, chunks []models.IndexedChunk) error
	Query(ctx context.Context, embedding []float32, topK int) ([]models.SearchHit, error)
	Close()
}

// Resetter is implemented by stores that can drop their contents before a reindex.
type Resetter interface {
	Reset(ctx context.Context) error
}

type Generator interface {
	Generate(ctx context.Context, messages []models.ChatMessage) (string, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]models.MovieMatch, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

type HistoryStore interface {
	Save(ctx context.Context, turn models.ChatTurn) error
	Load(ctx context.Context, sessionID string, limit int) ([]models.ChatTurn, error)
}
