package voice

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveRecordingNamesByTimestamp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recordings")
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)

	path, err := saveRecordingAt(dir, strings.NewReader("RIFF"), at)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "recording_20240506_070809_"), path)
	assert.Equal(t, ".wav", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))

	_, err = saveRecordingAt(dir, nil, at)
	assert.Error(t, err)
}

func TestSaveRecordingSameSecondKeepsBoth(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)

	first, err := saveRecordingAt(dir, strings.NewReader("alice"), at)
	require.NoError(t, err)
	second, err := saveRecordingAt(dir, strings.NewReader("bob"), at)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "alice", string(data))
	data, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "bob", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestTranscribeRunsWhisper(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "recording_20240506_070809.wav")
	require.NoError(t, os.WriteFile(wav, []byte("RIFF"), 0o644))

	var gotName string
	var gotArgs []string
	tr := NewCommandTranscriber(Config{})
	tr.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		return os.WriteFile(filepath.Join(dir, "recording_20240506_070809.txt"), []byte(" Movies about\n dreams \n"), 0o644)
	})

	text, err := tr.Transcribe(context.Background(), wav)
	require.NoError(t, err)
	assert.Equal(t, "Movies about dreams", text)
	assert.Equal(t, DefaultBinary, gotName)
	assert.Equal(t, []string{wav, "--model", "small", "--language", "en", "--output_format", "txt", "--output_dir", dir}, gotArgs)
}

func TestTranscribeEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "a.wav")
	tr := NewCommandTranscriber(Config{Binary: "whisper-cli", OutputDir: filepath.Join(dir, "out")})
	tr.WithCommandRunner(func(_ context.Context, _ string, _ ...string) error {
		return os.WriteFile(filepath.Join(dir, "out", "a.txt"), []byte("\n"), 0o644)
	})

	_, err := tr.Transcribe(context.Background(), wav)
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}
