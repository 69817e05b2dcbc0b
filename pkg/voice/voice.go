// Package voice stores spoken questions and turns them into text with an
// external Whisper command.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultBinary   = "whisper"
	DefaultModel    = "small"
	DefaultLanguage = "en"
)

var ErrEmptyTranscript = errors.New("transcription produced no text")

// Config selects the Whisper CLI and its options.
type Config struct {
	Binary    string
	Model     string
	Language  string
	OutputDir string
}

// RecordingPattern returns the os.CreateTemp pattern for a recording made
// at t. The random part keeps recordings from the same second apart.
func RecordingPattern(t time.Time) string {
	return "recording_" + t.Format("20060102_150405") + "_*.wav"
}

// SaveRecording copies r into dir as a new timestamped .wav file.
func SaveRecording(dir string, r io.Reader) (string, error) {
	return saveRecordingAt(dir, r, time.Now())
}

func saveRecordingAt(dir string, r io.Reader, t time.Time) (string, error) {
	if r == nil {
		return "", fmt.Errorf("save recording: no audio")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("save recording: ensure dir: %w", err)
	}
	f, err := os.CreateTemp(dir, RecordingPattern(t))
	if err != nil {
		return "", fmt.Errorf("save recording: %w", err)
	}
	path := f.Name()
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("save recording: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("save recording: %w", err)
	}
	return path, nil
}

// CommandTranscriber shells out to the Whisper CLI and reads the .txt it writes.
type CommandTranscriber struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

func NewCommandTranscriber(cfg Config) *CommandTranscriber {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	return &CommandTranscriber{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (t *CommandTranscriber) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	t.commandRunner = runner
}

func (t *CommandTranscriber) run(ctx context.Context, name string, args ...string) error {
	if t.commandRunner != nil {
		return t.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (t *CommandTranscriber) buildArgs(wavPath, outputDir string) []string {
	return []string{
		wavPath,
		"--model", t.cfg.Model,
		"--language", t.cfg.Language,
		"--output_format", "txt",
		"--output_dir", outputDir,
	}
}

// Transcribe returns the spoken text of the recording at wavPath.
func (t *CommandTranscriber) Transcribe(ctx context.Context, wavPath string) (string, error) {
	if wavPath == "" {
		return "", fmt.Errorf("transcribe: source path required")
	}
	outputDir := t.cfg.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(wavPath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	if err := t.run(ctx, t.cfg.Binary, t.buildArgs(wavPath, outputDir)...); err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))
	data, err := os.ReadFile(filepath.Join(outputDir, base+".txt"))
	if err != nil {
		return "", fmt.Errorf("transcribe: read output: %w", err)
	}
	text := strings.Join(strings.Fields(string(data)), " ")
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
