package extractor

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	InvalidArchive = "[Invalid Archive]"

	DefaultSampleBytes   = 1 << 20
	DefaultMaxEntryBytes = 64 << 20
)

var ErrEntryTooLarge = errors.New("archive entry exceeds size limit")

type ArchiveOptions struct {
	SampleBytes   int
	MaxEntryBytes int64
}

func (o ArchiveOptions) withDefaults() ArchiveOptions {
	if o.SampleBytes <= 0 {
		o.SampleBytes = DefaultSampleBytes
	}
	if o.MaxEntryBytes <= 0 {
		o.MaxEntryBytes = DefaultMaxEntryBytes
	}
	return o
}

// ExtractText returns the decoded text of the first file in the zip payload.
// It never fails: a malformed archive yields InvalidArchive and any other
// problem yields "[Error: <message>]".
func ExtractText(content []byte, opts ArchiveOptions) string {
	opts = opts.withDefaults()

	data, err := readFirstEntry(content, opts.MaxEntryBytes)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return InvalidArchive
		}
		return fmt.Sprintf("[Error: %s]", err)
	}
	if len(data) == 0 {
		return ""
	}

	sample := data
	if len(sample) > opts.SampleBytes {
		sample = sample[:opts.SampleBytes]
	}
	return Decode(data, DetectCharset(sample))
}

func readFirstEntry(content []byte, limit int64) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		return nil, err
	}

	var entry *zip.File
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() {
			entry = f
			break
		}
	}
	if entry == nil {
		return nil, nil
	}
	if entry.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, entry.Name)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, entry.Name)
	}
	return data, nil
}
