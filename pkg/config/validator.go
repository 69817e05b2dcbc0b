package config

import (
	"fmt"
	"net/url"
	"regexp"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	add := func(field, msg string) {
		errors = append(errors, ValidationError{Field: field, Message: msg})
	}

	// Source
	if c.Source.Driver != "sqlite" && c.Source.Driver != "pgx" {
		add("source.driver", fmt.Sprintf("unsupported driver %q (want sqlite or pgx)", c.Source.Driver))
	}

	// Extractor
	if c.Extractor.ChunkSize < 1 {
		add("extractor.chunk_size", "chunk_size must be positive")
	}
	// A negative extractor overlap disables the extra page rows.
	if c.Extractor.StartAfter < 0 {
		add("extractor.start_after", "start_after must be non-negative")
	}
	if c.Extractor.SampleBytes < 1 {
		add("extractor.sample_bytes", "sample_bytes must be positive")
	}
	if c.Extractor.MaxEntryBytes < 1 {
		add("extractor.max_entry_bytes", "max_entry_bytes must be positive")
	}

	// Cleaner
	if c.Cleaner.BatchSize < 1 {
		add("cleaner.batch_size", "batch_size must be positive")
	}
	for i, p := range c.Cleaner.ExtraPatterns {
		if _, err := regexp.Compile(p); err != nil {
			add(fmt.Sprintf("cleaner.extra_patterns[%d]", i), fmt.Sprintf("invalid pattern: %v", err))
		}
	}

	// Indexer
	if c.Indexer.BatchSize < 1 {
		add("indexer.batch_size", "batch_size must be positive")
	}
	if c.Indexer.Overlap < 0 || c.Indexer.Overlap >= c.Indexer.BatchSize {
		add("indexer.overlap", "overlap must be non-negative and less than batch_size")
	}

	// Embedder
	if !validProvider(c.Embedder.Provider) {
		add("embedder.provider", fmt.Sprintf("unsupported provider %q", c.Embedder.Provider))
	}
	if c.Embedder.Provider == "ollama" && !validURL(c.Embedder.BaseURL) {
		add("embedder.base_url", "invalid Ollama base URL")
	}
	if c.Embedder.Provider == "gemini" && c.Embedder.APIKey == "" {
		add("embedder.api_key", "api_key is required for gemini")
	}
	if c.Embedder.BatchSize < 1 {
		add("embedder.batch_size", "batch_size must be positive")
	}
	if c.Embedder.RateLimit < 0 {
		add("embedder.rate_limit", "rate_limit must be non-negative")
	}

	// Store
	switch c.Store.Backend {
	case "pgvector":
		if c.Store.URL != "" && !validURL(c.Store.URL) {
			add("store.url", "invalid database URL")
		}
	case "memory":
	default:
		add("store.backend", fmt.Sprintf("unsupported backend %q (want pgvector or memory)", c.Store.Backend))
	}
	if c.Store.VectorDim < 1 {
		add("store.vector_dim", "vector_dim must be positive")
	}
	if c.Store.IndexType != "ivfflat" && c.Store.IndexType != "hnsw" {
		add("store.index_type", "index_type must be ivfflat or hnsw")
	}
	if c.Store.TopK < 1 {
		add("store.top_k", "top_k must be positive")
	}

	// LLM
	if !validProvider(c.LLM.Provider) {
		add("llm.provider", fmt.Sprintf("unsupported provider %q", c.LLM.Provider))
	}
	if c.LLM.Provider == "ollama" && !validURL(c.LLM.BaseURL) {
		add("llm.base_url", "invalid Ollama base URL")
	}
	if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
		add("llm.api_key", "api_key is required for gemini")
	}
	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		add("llm.max_tokens", "max_tokens must be between 1 and 8192")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		add("llm.temperature", "temperature must be between 0 and 2")
	}

	if c.History.Path == "" {
		add("history.path", "path is required")
	}

	return errors
}

func validProvider(p string) bool {
	return p == "ollama" || p == "gemini"
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
