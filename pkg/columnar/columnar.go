// Package columnar reads and writes the parquet files exchanged between the
// pipeline stages. Every file has the schema {num, name, subtitles}.
package columnar

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/xhad/subsearch/internal/models"
)

// ErrMissingColumn is returned when a file lacks one of the required columns.
var ErrMissingColumn = errors.New("missing column")

// RequiredColumns lists the columns every stage file must carry.
var RequiredColumns = []string{"num", "name", "subtitles"}

// Writer appends batches of records to a single parquet file. The file is
// created on the first non-empty batch; each batch becomes one flushed row group.
type Writer struct {
	path    string
	file    *os.File
	pw      *parquet.GenericWriter[models.Record]
	rows    int64
	batches int
}

func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

func (w *Writer) open() error {
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	w.file = f
	w.pw = parquet.NewGenericWriter[models.Record](f)
	return nil
}

// WriteBatch writes and flushes one batch.
func (w *Writer) WriteBatch(records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	if w.pw == nil {
		if err := w.open(); err != nil {
			return err
		}
	}
	if _, err := w.pw.Write(records); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	if err := w.pw.Flush(); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}
	w.rows += int64(len(records))
	w.batches++
	return nil
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int64 { return w.rows }

// Batches returns the number of row groups written so far.
func (w *Writer) Batches() int { return w.batches }

// Opened reports whether the output file has been created.
func (w *Writer) Opened() bool { return w.pw != nil }

// Path returns the output path.
func (w *Writer) Path() string { return w.path }

// Close finalises the file. It is safe to call when nothing was written and
// more than once.
func (w *Writer) Close() error {
	if w.pw == nil {
		return nil
	}
	closeErr := w.pw.Close()
	fileErr := w.file.Close()
	w.pw = nil
	w.file = nil
	if closeErr != nil {
		return fmt.Errorf("close parquet writer: %w", closeErr)
	}
	if fileErr != nil {
		return fmt.Errorf("close output file: %w", fileErr)
	}
	return nil
}

// Reader iterates a parquet stage file in bounded batches.
type Reader struct {
	file *os.File
	pr   *parquet.GenericReader[models.Record]
	rows int64
}

// Open opens path and validates that every required column is present.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat input file: %w", err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	if err := checkColumns(pf.Schema()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Reader{
		file: f,
		pr:   parquet.NewGenericReader[models.Record](pf),
		rows: pf.NumRows(),
	}, nil
}

func checkColumns(schema *parquet.Schema) error {
	present := make(map[string]bool)
	for _, field := range schema.Fields() {
		present[field.Name()] = true
	}
	for _, name := range RequiredColumns {
		if !present[name] {
			return fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}
	return nil
}

// NumRows returns the total row count of the file.
func (r *Reader) NumRows() int64 { return r.rows }

// Next returns up to size records, or io.EOF once the file is exhausted.
func (r *Reader) Next(size int) ([]models.Record, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	buf := make([]models.Record, size)
	n, err := r.pr.Read(buf)
	if n > 0 {
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read batch: %w", err)
		}
		return buf[:n], nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	return nil, fmt.Errorf("read batch: %w", err)
}

// ReadAll loads the remainder of the file into memory.
func (r *Reader) ReadAll() ([]models.Record, error) {
	out := make([]models.Record, 0, r.rows)
	for {
		batch, err := r.Next(10_000)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
}

func (r *Reader) Close() error {
	var err error
	if r.pr != nil {
		err = r.pr.Close()
	}
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}
