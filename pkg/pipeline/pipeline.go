// Package pipeline runs extraction, cleaning and indexing back to back.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xhad/subsearch/internal/logging"
	"github.com/xhad/subsearch/internal/types"
	"github.com/xhad/subsearch/pkg/extractor"
	"github.com/xhad/subsearch/pkg/indexer"
	"github.com/xhad/subsearch/pkg/processor"
)

type PipelineConfig struct {
	ExtractOutput string
	CleanOutput   string

	Extractor extractor.ExtractorConfig
	Processor processor.ProcessorConfig
	Indexer   indexer.IndexerConfig
}

// Hooks receive per-batch progress from each stage. Any of them may be nil.
type Hooks struct {
	OnExtract func(extractor.Progress)
	OnClean   func(processor.Progress)
	OnIndex   func(indexer.Progress)
}

type Result struct {
	Extract  extractor.Result
	Clean    processor.Result
	Index    indexer.Result
	Duration time.Duration
}

type Pipeline struct {
	config   PipelineConfig
	pager    extractor.Pager
	embedder types.Embedder
	store    types.VectorStore
	Hooks    Hooks
}

func NewWithConfig(pager extractor.Pager, embedder types.Embedder, store types.VectorStore, config PipelineConfig) (*Pipeline, error) {
	if config.ExtractOutput == "" || config.CleanOutput == "" {
		return nil, fmt.Errorf("pipeline: extract and clean outputs are required")
	}
	if config.ExtractOutput == config.CleanOutput {
		return nil, fmt.Errorf("pipeline: clean output must differ from extract output")
	}
	return &Pipeline{config: config, pager: pager, embedder: embedder, store: store}, nil
}

// Run executes every stage to completion before starting the next. The first
// stage error stops the run. An empty source ends the run after extraction,
// though a configured reset still empties the vector store.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	log := logging.FromContext(ctx).With(zap.String("component", "pipeline"))
	start := time.Now()
	var res Result

	ex := extractor.NewWithConfig(p.pager, p.config.Extractor)
	ex.OnProgress = p.Hooks.OnExtract
	extracted, err := ex.Run(ctx, p.config.ExtractOutput)
	res.Extract = extracted
	if err != nil {
		return res, fmt.Errorf("extract: %w", err)
	}
	if extracted.Rows == 0 {
		log.Warn("source returned no rows, skipping clean and index")
		if p.config.Indexer.Reset {
			ix := indexer.NewWithConfig(p.embedder, p.store, p.config.Indexer)
			if err := ix.Reset(ctx); err != nil {
				return res, fmt.Errorf("index: %w", err)
			}
		}
		res.Duration = time.Since(start)
		return res, nil
	}

	proc, err := processor.NewWithConfig(p.config.Processor)
	if err != nil {
		return res, fmt.Errorf("clean: %w", err)
	}
	proc.OnProgress = p.Hooks.OnClean
	cleaned, err := proc.ProcessFile(ctx, p.config.ExtractOutput, p.config.CleanOutput)
	res.Clean = cleaned
	if err != nil {
		return res, fmt.Errorf("clean: %w", err)
	}

	ix := indexer.NewWithConfig(p.embedder, p.store, p.config.Indexer)
	ix.OnProgress = p.Hooks.OnIndex
	indexed, err := ix.Run(ctx, p.config.CleanOutput)
	res.Index = indexed
	if err != nil {
		return res, fmt.Errorf("index: %w", err)
	}

	res.Duration = time.Since(start)
	log.Info("pipeline finished",
		zap.Int64("extracted", extracted.Rows),
		zap.Int64("cleaned", cleaned.Rows),
		zap.Int("indexed", indexed.Rows),
		zap.Duration("took", res.Duration))
	return res, nil
}
