// Package indexer embeds the cleaned transcripts and upserts them into the
// vector store in overlapping batches.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/xhad/subsearch/internal/logging"
	"github.com/xhad/subsearch/internal/models"
	"github.com/xhad/subsearch/internal/types"
	"github.com/xhad/subsearch/pkg/columnar"
)

var ErrResetUnsupported = errors.New("vector store does not support reset")

// Span is a half-open row range [Start, End).
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

// Boundaries returns the batch slices for numRows rows. The batch at logical
// offset i covers [max(0, i-overlap), min(numRows, i+batchSize)).
func Boundaries(numRows, batchSize, overlap int) []Span {
	if numRows <= 0 || batchSize <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	spans := make([]Span, 0, (numRows+batchSize-1)/batchSize)
	for i := 0; i < numRows; i += batchSize {
		spans = append(spans, Span{
			Start: max(0, i-overlap),
			End:   min(numRows, i+batchSize),
		})
	}
	return spans
}

type IndexerConfig struct {
	BatchSize int
	Overlap   int
	// Reset drops the vector table before indexing.
	Reset bool
}

type Progress struct {
	Batch   int
	Batches int
	Span    Span
	// Embedded counts rows sent to the embedder; the rest were reused from
	// the previous batch.
	Embedded int
}

type Result struct {
	Rows     int
	Batches  int
	Embedded int
}

type Indexer struct {
	config     IndexerConfig
	embedder   types.Embedder
	store      types.VectorStore
	OnProgress func(Progress)
}

func NewWithConfig(embedder types.Embedder, store types.VectorStore, config IndexerConfig) *Indexer {
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}
	if config.Overlap < 0 {
		config.Overlap = 0
	}
	return &Indexer{config: config, embedder: embedder, store: store}
}

// Run loads the whole cleaned file at input into memory and indexes it.
func (ix *Indexer) Run(ctx context.Context, input string) (Result, error) {
	r, err := columnar.Open(input)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open cleaned file: %w", err)
	}
	records, err := r.ReadAll()
	r.Close()
	if err != nil {
		return Result{}, fmt.Errorf("failed to read cleaned file: %w", err)
	}
	return ix.Index(ctx, records)
}

// Reset empties the vector store.
func (ix *Indexer) Reset(ctx context.Context) error {
	resetter, ok := ix.store.(types.Resetter)
	if !ok {
		return ErrResetUnsupported
	}
	if err := resetter.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset vector store: %w", err)
	}
	logging.FromContext(ctx).Info("vector store reset", zap.String("stage", "index"))
	return nil
}

// Index upserts records into the store. Rows inside the overlap window are
// upserted again by the next batch; their embeddings are carried over instead
// of recomputed.
func (ix *Indexer) Index(ctx context.Context, records []models.Record) (Result, error) {
	log := logging.FromContext(ctx).With(zap.String("stage", "index"))
	var res Result

	if ix.config.Reset {
		if err := ix.Reset(ctx); err != nil {
			return res, err
		}
	}

	spans := Boundaries(len(records), ix.config.BatchSize, ix.config.Overlap)
	prev := map[int][]float32{}

	for b, span := range spans {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		vectors := make([][]float32, span.Len())
		var missing []int
		var texts []string
		for row := span.Start; row < span.End; row++ {
			if v, ok := prev[row]; ok {
				vectors[row-span.Start] = v
				continue
			}
			missing = append(missing, row)
			texts = append(texts, records[row].Subtitles)
		}

		if len(texts) > 0 {
			embedded, err := ix.embedder.EmbedDocuments(ctx, texts)
			if err != nil {
				return res, fmt.Errorf("failed to embed batch %d: %w", b+1, err)
			}
			if len(embedded) != len(texts) {
				return res, fmt.Errorf("embedder returned %d vectors for %d rows", len(embedded), len(texts))
			}
			for i, row := range missing {
				vectors[row-span.Start] = embedded[i]
			}
		}

		chunks := make([]models.IndexedChunk, span.Len())
		next := make(map[int][]float32, span.Len())
		for row := span.Start; row < span.End; row++ {
			rec := records[row]
			v := vectors[row-span.Start]
			chunks[row-span.Start] = models.IndexedChunk{
				ID:        strconv.FormatInt(rec.Num, 10),
				Document:  rec.Subtitles,
				Metadata:  map[string]string{"name": rec.Name},
				Embedding: v,
			}
			next[row] = v
		}

		if err := ix.store.Add(ctx, chunks); err != nil {
			return res, fmt.Errorf("failed to upsert batch %d: %w", b+1, err)
		}
		prev = next

		res.Batches++
		res.Embedded += len(texts)
		log.Info("batch indexed",
			zap.Int("batch", b+1),
			zap.Int("of", len(spans)),
			zap.Int("start", span.Start),
			zap.Int("end", span.End),
			zap.Int("embedded", len(texts)))
		if ix.OnProgress != nil {
			ix.OnProgress(Progress{Batch: b + 1, Batches: len(spans), Span: span, Embedded: len(texts)})
		}
	}

	res.Rows = len(records)
	log.Info("indexing finished", zap.Int("rows", res.Rows), zap.Int("batches", res.Batches))
	return res, nil
}
