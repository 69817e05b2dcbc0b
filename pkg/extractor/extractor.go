// Package extractor pulls zipped subtitle payloads out of the source table
// and streams their decoded text into a parquet file.
package extractor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xhad/subsearch/internal/logging"
	"github.com/xhad/subsearch/internal/models"
	"github.com/xhad/subsearch/pkg/columnar"
)

// Pager is the paging query against the source table.
type Pager interface {
	Next(ctx context.Context, after int64, limit int) ([]models.SubtitleRecord, error)
}

type ExtractorConfig struct {
	ChunkSize     int
	Overlap       int
	StartAfter    int64
	SampleBytes   int
	MaxEntryBytes int64
}

// Progress is reported after every written page.
type Progress struct {
	Batch    int
	Rows     int
	Total    int64
	FirstNum int64
	LastNum  int64
}

// Result summarises a finished run.
type Result struct {
	Output  string
	Rows    int64
	Batches int
	LastNum int64
}

type Extractor struct {
	config     ExtractorConfig
	pager      Pager
	OnProgress func(Progress)
}

func NewWithConfig(pager Pager, config ExtractorConfig) *Extractor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 500
	}
	if config.Overlap < 0 {
		config.Overlap = 0
	} else if config.Overlap == 0 {
		config.Overlap = 50
	}
	return &Extractor{config: config, pager: pager}
}

func (e *Extractor) archiveOptions() ArchiveOptions {
	return ArchiveOptions{SampleBytes: e.config.SampleBytes, MaxEntryBytes: e.config.MaxEntryBytes}
}

// Run pages through the source in ascending num order and appends each page
// to the parquet file at output. The file is only created once a page has
// rows, and is closed on every return path.
func (e *Extractor) Run(ctx context.Context, output string) (res Result, err error) {
	log := logging.FromContext(ctx).With(zap.String("stage", "extract"))

	w := columnar.NewWriter(output)
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	res.Output = output
	last := e.config.StartAfter
	limit := e.config.ChunkSize + e.config.Overlap
	opts := e.archiveOptions()

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		page, err := e.pager.Next(ctx, last, limit)
		if err != nil {
			return res, fmt.Errorf("failed to fetch page after num %d: %w", last, err)
		}
		if len(page) == 0 {
			break
		}

		batch := make([]models.Record, len(page))
		for i, row := range page {
			batch[i] = models.Record{
				Num:       row.Num,
				Name:      row.Name,
				Subtitles: ExtractText(row.Content, opts),
			}
			if row.Num > last {
				last = row.Num
			}
		}

		if err := w.WriteBatch(batch); err != nil {
			return res, fmt.Errorf("failed to write batch %d: %w", res.Batches+1, err)
		}
		res.Batches++
		res.Rows += int64(len(batch))
		res.LastNum = last

		p := Progress{
			Batch:    res.Batches,
			Rows:     len(batch),
			Total:    res.Rows,
			FirstNum: page[0].Num,
			LastNum:  last,
		}
		log.Info("batch written",
			zap.Int("batch", p.Batch),
			zap.Int("rows", p.Rows),
			zap.Int64("first_num", p.FirstNum),
			zap.Int64("last_num", p.LastNum))
		if e.OnProgress != nil {
			e.OnProgress(p)
		}
	}

	log.Info("extraction finished", zap.String("output", output), zap.Int64("rows", res.Rows))
	return res, nil
}
