package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xhad/subsearch/internal/logging"
	"github.com/xhad/subsearch/internal/types"
	"github.com/xhad/subsearch/pkg/config"
	"github.com/xhad/subsearch/pkg/extractor"
	"github.com/xhad/subsearch/pkg/history"
	"github.com/xhad/subsearch/pkg/indexer"
	"github.com/xhad/subsearch/pkg/llm"
	"github.com/xhad/subsearch/pkg/processor"
	"github.com/xhad/subsearch/pkg/search"
	"github.com/xhad/subsearch/pkg/source"
	"github.com/xhad/subsearch/pkg/store"
	"github.com/xhad/subsearch/pkg/voice"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	logger     *zap.Logger
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.LoadConfig(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && *c.logLevelFlag != "" {
			cfg.Log.Level = *c.logLevelFlag
		}
		if problems := cfg.Validate(); len(problems) > 0 {
			errs := make([]error, len(problems))
			for i, p := range problems {
				errs[i] = p
			}
			c.configErr = fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
			return
		}

		logger, err := logging.New(logging.Options{
			Level:       cfg.Log.Level,
			Development: cfg.Log.Development,
			OutputPaths: []string{"stderr"},
		})
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.configErr
}

// withLogger attaches the configured logger to ctx.
func (c *commandContext) withLogger(ctx context.Context) context.Context {
	return logging.WithLogger(ctx, c.logger)
}

func (c *commandContext) openPager() (*source.Pager, func(), error) {
	cfg := c.config
	db, err := source.Open(cfg.Source.Driver, cfg.Source.DSN)
	if err != nil {
		return nil, nil, err
	}
	pager, err := source.NewPager(db, cfg.Source.Table)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return pager, func() { db.Close() }, nil
}

func (c *commandContext) extractorConfig() extractor.ExtractorConfig {
	e := c.config.Extractor
	return extractor.ExtractorConfig{
		ChunkSize:     e.ChunkSize,
		Overlap:       e.Overlap,
		StartAfter:    e.StartAfter,
		SampleBytes:   e.SampleBytes,
		MaxEntryBytes: e.MaxEntryBytes,
	}
}

func (c *commandContext) processorConfig() processor.ProcessorConfig {
	extra := make([]processor.NoiseRule, len(c.config.Cleaner.ExtraPatterns))
	for i, p := range c.config.Cleaner.ExtraPatterns {
		extra[i] = processor.NoiseRule{Name: fmt.Sprintf("extra-%d", i+1), Pattern: p}
	}
	return processor.ProcessorConfig{
		BatchSize:  c.config.Cleaner.BatchSize,
		ExtraRules: extra,
	}
}

func (c *commandContext) indexerConfig(reset bool) indexer.IndexerConfig {
	return indexer.IndexerConfig{
		BatchSize: c.config.Indexer.BatchSize,
		Overlap:   c.config.Indexer.Overlap,
		Reset:     reset,
	}
}

func (c *commandContext) newEmbedder(ctx context.Context) (*llm.Embedder, error) {
	e := c.config.Embedder
	return llm.NewEmbedderWithConfig(ctx, llm.EmbedderConfig{
		Provider:          e.Provider,
		Model:             e.Model,
		BaseURL:           e.BaseURL,
		APIKey:            e.APIKey,
		BatchSize:         e.BatchSize,
		RequestsPerSecond: e.RateLimit,
	})
}

// newQueryEmbedder wraps the embedder with the query cache.
func (c *commandContext) newQueryEmbedder(ctx context.Context) (types.Embedder, error) {
	emb, err := c.newEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	e := c.config.Embedder
	return llm.NewCachedQueryEmbedder(emb, e.Model, e.CacheSize, e.CacheTTL), nil
}

func (c *commandContext) openStore(ctx context.Context) (types.VectorStore, error) {
	s := c.config.Store
	if s.Backend == "memory" {
		c.logger.Warn("using in-memory vector store, nothing is persisted")
		return store.NewMemory(), nil
	}
	return store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString:  s.URL,
		TableName:   s.TableName,
		VectorDim:   s.VectorDim,
		IndexType:   s.IndexType,
		SearchLimit: s.TopK,
	})
}

func (c *commandContext) newSearcher(ctx context.Context) (*search.Searcher, types.VectorStore, error) {
	emb, err := c.newQueryEmbedder(ctx)
	if err != nil {
		return nil, nil, err
	}
	vs, err := c.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return search.New(emb, vs, c.config.Store.TopK), vs, nil
}

func (c *commandContext) newChatEngine(ctx context.Context) (*llm.ChatEngine, error) {
	l := c.config.LLM
	return llm.NewWithConfig(ctx, llm.ChatConfig{
		Provider:          l.Provider,
		Model:             l.Model,
		Temperature:       l.Temperature,
		MaxTokens:         l.MaxTokens,
		BaseURL:           l.BaseURL,
		APIKey:            l.APIKey,
		MaxHistoryTurns:   l.MaxHistoryTurns,
		RequestsPerSecond: l.RateLimit,
	})
}

func (c *commandContext) openHistory() (*history.Store, error) {
	return history.Open(c.config.History.Path)
}

func (c *commandContext) newTranscriber() *voice.CommandTranscriber {
	v := c.config.Voice
	return voice.NewCommandTranscriber(voice.Config{
		Binary:   v.Binary,
		Model:    v.Model,
		Language: v.Language,
	})
}
