// Package processor normalizes extracted subtitle text into lowercase
// dialogue transcripts.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/xhad/subsearch/internal/logging"
	"github.com/xhad/subsearch/internal/models"
	"github.com/xhad/subsearch/pkg/columnar"
)

// ErrMissingColumn is returned when the input file lacks a required column.
var ErrMissingColumn = columnar.ErrMissingColumn

type ProcessorConfig struct {
	BatchSize int
	// ExtraRules run after DefaultNoiseRules.
	ExtraRules []NoiseRule
}

type Processor struct {
	config     ProcessorConfig
	rules      []compiledRule
	OnProgress func(Progress)
}

type Progress struct {
	Batch int
	Rows  int
	Total int64
}

type Result struct {
	Output  string
	Rows    int64
	Batches int
}

func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = 10_000
	}

	rules := make([]NoiseRule, 0, len(DefaultNoiseRules)+len(config.ExtraRules))
	rules = append(rules, DefaultNoiseRules...)
	rules = append(rules, config.ExtraRules...)
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}

	return &Processor{config: config, rules: compiled}, nil
}

// Clean normalizes one subtitle text. An empty result is valid.
func (p *Processor) Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = stripNoise(text, p.rules)

	lines := strategies[DetectDialect(text)](text)

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, strings.ToLower(line))
	}
	return strings.Join(kept, "\n")
}

// ProcessFile streams the records at input through Clean and writes them to
// output batch by batch.
func (p *Processor) ProcessFile(ctx context.Context, input, output string) (res Result, err error) {
	log := logging.FromContext(ctx).With(zap.String("stage", "clean"))

	r, err := columnar.Open(input)
	if err != nil {
		return res, fmt.Errorf("failed to open input: %w", err)
	}
	defer r.Close()

	w := columnar.NewWriter(output)
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	res.Output = output
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		batch, err := r.Next(p.config.BatchSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}

		cleaned := make([]models.Record, len(batch))
		for i, rec := range batch {
			rec.Subtitles = p.Clean(rec.Subtitles)
			cleaned[i] = rec
		}
		if err := w.WriteBatch(cleaned); err != nil {
			return res, fmt.Errorf("failed to write batch %d: %w", res.Batches+1, err)
		}

		res.Batches++
		res.Rows += int64(len(cleaned))
		log.Info("batch cleaned", zap.Int("batch", res.Batches), zap.Int("rows", len(cleaned)))
		if p.OnProgress != nil {
			p.OnProgress(Progress{Batch: res.Batches, Rows: len(cleaned), Total: res.Rows})
		}
	}

	log.Info("cleaning finished", zap.String("output", output), zap.Int64("rows", res.Rows))
	return res, nil
}
