package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xhad/subsearch/internal/logging"
	"github.com/xhad/subsearch/internal/types"
)

const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrMissingAPIKey   = errors.New("api key is required")
	ErrEmptyEmbedding  = errors.New("no embedding values returned")
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Provider  string
	Model     string
	BaseURL   string // Ollama server URL
	APIKey    string // Gemini
	BatchSize int
	// RequestsPerSecond limits embedding calls; zero disables the limit.
	RequestsPerSecond float64
}

// EmbeddingBackend computes one vector per text in a single request.
type EmbeddingBackend interface {
	Embed(ctx context.Context, texts []string, query bool) ([][]float32, error)
}

// Embedder splits texts into provider-sized requests.
type Embedder struct {
	Config  EmbedderConfig
	backend EmbeddingBackend
	limiter *rate.Limiter
}

func NewEmbedderWithConfig(ctx context.Context, config EmbedderConfig) (*Embedder, error) {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}

	var backend EmbeddingBackend
	switch config.Provider {
	case ProviderOllama:
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		b, err := newOllamaEmbedding(config)
		if err != nil {
			return nil, err
		}
		backend = b
	case ProviderGemini:
		if config.Model == "" {
			config.Model = "text-embedding-004"
		}
		b, err := newGeminiEmbedding(ctx, config)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, config.Provider)
	}

	return NewEmbedder(backend, config), nil
}

// NewEmbedder wraps an already constructed backend.
func NewEmbedder(backend EmbeddingBackend, config EmbedderConfig) *Embedder {
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	e := &Embedder{Config: config, backend: backend}
	if config.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return e
}

func (e *Embedder) embed(ctx context.Context, texts []string, query bool) ([][]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	vectors, err := e.backend.Embed(ctx, texts, query)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}
	return vectors, nil
}

// EmbedDocuments returns one vector per text, in order.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.Config.BatchSize {
		end := min(len(texts), start+e.Config.BatchSize)
		vectors, err := e.embed(ctx, texts[start:end], false)
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings: %w", err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	return vectors[0], nil
}

type ollamaEmbedding struct {
	impl *embeddings.EmbedderImpl
}

func newOllamaEmbedding(config EmbedderConfig) (*ollamaEmbedding, error) {
	client, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama: %w", err)
	}
	impl, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(config.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return &ollamaEmbedding{impl: impl}, nil
}

// nonBlank returns a copy of texts with blank entries replaced by a single
// space. Neither backend returns a vector for an empty input.
func nonBlank(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			t = " "
		}
		out[i] = t
	}
	return out
}

func (o *ollamaEmbedding) Embed(ctx context.Context, texts []string, _ bool) ([][]float32, error) {
	return o.impl.EmbedDocuments(ctx, nonBlank(texts))
}

type geminiEmbedding struct {
	client *genai.Client
	model  string
}

func newGeminiEmbedding(ctx context.Context, config EmbedderConfig) (*geminiEmbedding, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini: %w", err)
	}
	return &geminiEmbedding{client: client, model: config.Model}, nil
}

func (g *geminiEmbedding) Embed(ctx context.Context, texts []string, query bool) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range nonBlank(texts) {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: t}}}
	}
	taskType := "RETRIEVAL_DOCUMENT"
	if query {
		taskType = "RETRIEVAL_QUERY"
	}
	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{TaskType: taskType})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) == 0 {
		return nil, ErrEmptyEmbedding
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// CachedQueryEmbedder memoizes query embeddings. Document embeddings pass
// straight through.
type CachedQueryEmbedder struct {
	next  types.Embedder
	model string
	cache *expirable.LRU[string, []float32]
}

func NewCachedQueryEmbedder(next types.Embedder, model string, size int, ttl time.Duration) *CachedQueryEmbedder {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedQueryEmbedder{
		next:  next,
		model: model,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (c *CachedQueryEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedDocuments(ctx, texts)
}

func (c *CachedQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.model + "\x00" + text
	if cached, ok := c.cache.Get(key); ok {
		logging.FromContext(ctx).Debug("query embedding cache hit", zap.String("model", c.model))
		return cloneVector(cached), nil
	}
	v, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cloneVector(v))
	return v, nil
}

func (c *CachedQueryEmbedder) Len() int { return c.cache.Len() }

func cloneVector(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
