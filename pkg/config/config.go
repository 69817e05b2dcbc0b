package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`

	Source struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
		Table  string `yaml:"table"`
	} `yaml:"source"`

	Extractor struct {
		Output        string `yaml:"output"`
		ChunkSize     int    `yaml:"chunk_size"`
		Overlap       int    `yaml:"overlap"`
		StartAfter    int64  `yaml:"start_after"`
		SampleBytes   int    `yaml:"sample_bytes"`
		MaxEntryBytes int64  `yaml:"max_entry_bytes"`
	} `yaml:"extractor"`

	Cleaner struct {
		Input         string   `yaml:"input"`
		Output        string   `yaml:"output"`
		BatchSize     int      `yaml:"batch_size"`
		ExtraPatterns []string `yaml:"extra_patterns"`
	} `yaml:"cleaner"`

	Indexer struct {
		Input     string `yaml:"input"`
		BatchSize int    `yaml:"batch_size"`
		Overlap   int    `yaml:"overlap"`
	} `yaml:"indexer"`

	Embedder struct {
		Provider  string        `yaml:"provider"`
		Model     string        `yaml:"model"`
		BaseURL   string        `yaml:"base_url"`
		APIKey    string        `yaml:"api_key"`
		BatchSize int           `yaml:"batch_size"`
		RateLimit float64       `yaml:"rate_limit"`
		CacheSize int           `yaml:"cache_size"`
		CacheTTL  time.Duration `yaml:"cache_ttl"`
	} `yaml:"embedder"`

	Store struct {
		Backend   string `yaml:"backend"`
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		IndexType string `yaml:"index_type"`
		TopK      int    `yaml:"top_k"`
	} `yaml:"store"`

	LLM struct {
		Provider        string  `yaml:"provider"`
		BaseURL         string  `yaml:"base_url"`
		APIKey          string  `yaml:"api_key"`
		Model           string  `yaml:"model"`
		MaxTokens       int     `yaml:"max_tokens"`
		Temperature     float64 `yaml:"temperature"`
		MaxHistoryTurns int     `yaml:"max_history_turns"`
		RateLimit       float64 `yaml:"rate_limit"`
	} `yaml:"llm"`

	History struct {
		Path string `yaml:"path"`
	} `yaml:"history"`

	Voice struct {
		Binary        string `yaml:"binary"`
		Model         string `yaml:"model"`
		Language      string `yaml:"language"`
		RecordingsDir string `yaml:"recordings_dir"`
	} `yaml:"voice"`

	Server struct {
		Addr         string        `yaml:"addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/subsearch/config.yaml"),
			"/etc/subsearch/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}

	if config.Source.Driver == "" {
		config.Source.Driver = "sqlite"
	}
	if config.Source.DSN == "" {
		config.Source.DSN = "eng_subtitles_database.db"
	}
	if config.Source.Table == "" {
		config.Source.Table = "zipfiles"
	}

	if config.Extractor.Output == "" {
		config.Extractor.Output = "data/subtitles_full.parquet"
	}
	if config.Extractor.ChunkSize == 0 {
		config.Extractor.ChunkSize = 500
	}
	if config.Extractor.Overlap == 0 {
		config.Extractor.Overlap = 50
	}
	if config.Extractor.SampleBytes == 0 {
		config.Extractor.SampleBytes = 1 << 20
	}
	if config.Extractor.MaxEntryBytes == 0 {
		config.Extractor.MaxEntryBytes = 64 << 20
	}

	if config.Cleaner.Input == "" {
		config.Cleaner.Input = config.Extractor.Output
	}
	if config.Cleaner.Output == "" {
		config.Cleaner.Output = "data/cleaned_subtitles.parquet"
	}
	if config.Cleaner.BatchSize == 0 {
		config.Cleaner.BatchSize = 10_000
	}

	if config.Indexer.Input == "" {
		config.Indexer.Input = config.Cleaner.Output
	}
	if config.Indexer.BatchSize == 0 {
		config.Indexer.BatchSize = 1000
	}
	if config.Indexer.Overlap == 0 {
		config.Indexer.Overlap = 100
	}

	if config.Embedder.Provider == "" {
		config.Embedder.Provider = "ollama"
	}
	if config.Embedder.Model == "" {
		if config.Embedder.Provider == "gemini" {
			config.Embedder.Model = "text-embedding-004"
		} else {
			config.Embedder.Model = "nomic-embed-text:latest"
		}
	}
	if config.Embedder.BaseURL == "" {
		config.Embedder.BaseURL = "http://localhost:11434"
	}
	if config.Embedder.BatchSize == 0 {
		config.Embedder.BatchSize = 32
	}
	if config.Embedder.CacheSize == 0 {
		config.Embedder.CacheSize = 1024
	}
	if config.Embedder.CacheTTL == 0 {
		config.Embedder.CacheTTL = time.Hour
	}

	if config.Store.Backend == "" {
		config.Store.Backend = "pgvector"
	}
	if config.Store.TableName == "" {
		config.Store.TableName = "subtitles"
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = 768
	}
	if config.Store.IndexType == "" {
		config.Store.IndexType = "ivfflat"
	}
	if config.Store.TopK == 0 {
		config.Store.TopK = 3
	}

	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		if config.LLM.Provider == "gemini" {
			config.LLM.Model = "gemini-1.5-pro"
		} else {
			config.LLM.Model = "mistral"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxHistoryTurns == 0 {
		config.LLM.MaxHistoryTurns = 10
	}

	if config.History.Path == "" {
		config.History.Path = "data/history.db"
	}

	if config.Voice.Binary == "" {
		config.Voice.Binary = "whisper"
	}
	if config.Voice.Model == "" {
		config.Voice.Model = "small"
	}
	if config.Voice.Language == "" {
		config.Voice.Language = "en"
	}
	if config.Voice.RecordingsDir == "" {
		config.Voice.RecordingsDir = "recordings"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 30 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 2 * time.Minute
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
		config.Embedder.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
	}
	if dsn := os.Getenv("SUBSEARCH_SOURCE_DSN"); dsn != "" {
		config.Source.DSN = dsn
	}
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("API_KEY")
	}
	if apiKey != "" {
		config.LLM.APIKey = apiKey
		config.Embedder.APIKey = apiKey
	}
}
