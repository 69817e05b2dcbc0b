package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
log:
  level: debug

source:
  dsn: "/data/eng_subtitles_database.db"

extractor:
  output: "/data/full.parquet"
  chunk_size: 200
  start_after: 42

cleaner:
  extra_patterns:
    - "subscene\\.com"

indexer:
  batch_size: 100
  overlap: 10

embedder:
  model: "all-minilm"
  cache_ttl: 10m

store:
  url: "postgres://localhost:5432/subs"
  vector_dim: 384

llm:
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 1000
  temperature: 0.5
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "sqlite", config.Source.Driver)
	assert.Equal(t, "zipfiles", config.Source.Table)
	assert.Equal(t, 200, config.Extractor.ChunkSize)
	assert.Equal(t, 50, config.Extractor.Overlap)
	assert.Equal(t, int64(42), config.Extractor.StartAfter)
	assert.Equal(t, "/data/full.parquet", config.Cleaner.Input)
	assert.Equal(t, []string{`subscene\.com`}, config.Cleaner.ExtraPatterns)
	assert.Equal(t, config.Cleaner.Output, config.Indexer.Input)
	assert.Equal(t, 100, config.Indexer.BatchSize)
	assert.Equal(t, 10, config.Indexer.Overlap)
	assert.Equal(t, "all-minilm", config.Embedder.Model)
	assert.Equal(t, 10*time.Minute, config.Embedder.CacheTTL)
	assert.Equal(t, 384, config.Store.VectorDim)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("llm: [unclosed"), 0644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	valid, err := getDefaultConfig()
	require.NoError(t, err)
	assert.Empty(t, valid.Validate())

	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorMessages []string
	}{
		{
			name: "indexer overlap",
			mutate: func(c *Config) {
				c.Indexer.BatchSize = 10
				c.Indexer.Overlap = 10
			},
			errorMessages: []string{"indexer.overlap: overlap must be non-negative and less than batch_size"},
		},
		{
			name: "llm values",
			mutate: func(c *Config) {
				c.LLM.BaseURL = "invalid-url"
				c.LLM.MaxTokens = 50000
				c.LLM.Temperature = 3.0
			},
			errorMessages: []string{
				"llm.base_url: invalid Ollama base URL",
				"llm.max_tokens: max_tokens must be between 1 and 8192",
				"llm.temperature: temperature must be between 0 and 2",
			},
		},
		{
			name: "gemini without key",
			mutate: func(c *Config) {
				c.LLM.Provider = "gemini"
				c.LLM.APIKey = ""
			},
			errorMessages: []string{"llm.api_key: api_key is required for gemini"},
		},
		{
			name: "store and source",
			mutate: func(c *Config) {
				c.Source.Driver = "mysql"
				c.Store.Backend = "chroma"
				c.Store.VectorDim = -1
			},
			errorMessages: []string{
				`source.driver: unsupported driver "mysql"`,
				`store.backend: unsupported backend "chroma"`,
				"store.vector_dim: vector_dim must be positive",
			},
		},
		{
			name: "bad cleaner pattern",
			mutate: func(c *Config) {
				c.Cleaner.ExtraPatterns = []string{"ok", "(broken"}
			},
			errorMessages: []string{"cleaner.extra_patterns[1]: invalid pattern"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := getDefaultConfig()
			require.NoError(t, err)
			tt.mutate(c)

			errors := c.Validate()
			require.Len(t, errors, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				assert.Contains(t, errors[i].Error(), msg)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("SUBSEARCH_SOURCE_DSN", "/env/subs.db")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "fallback-key")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "http://env-ollama:11434", config.Embedder.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Store.URL)
	assert.Equal(t, "/env/subs.db", config.Source.DSN)
	assert.Equal(t, "fallback-key", config.LLM.APIKey)
	assert.Equal(t, "fallback-key", config.Embedder.APIKey)
}
