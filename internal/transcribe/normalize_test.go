package transcribe

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"viral-script-agent/internal/command"
)

// TestFFmpegNormalizerSuccess checks conversion args and output path.
func TestFFmpegNormalizerSuccess(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "upload.mkv")

	var gotName string
	var gotArgs []string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
			gotName = name
			gotArgs = append([]string{}, args...)
			mustWriteFile(t, args[len(args)-1], "wav")
			return command.Result{Stderr: "ffmpeg ok"}, nil
		},
	}

	obs := &commandObserver{}
	out, err := NewFFmpegNormalizerForTests("ffmpeg-custom", runner).Normalize(context.Background(), input, root, obs)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if out != filepath.Join(root, "normalized-16k-mono.wav") {
		t.Fatalf("output = %q", out)
	}
	if gotName != "ffmpeg-custom" {
		t.Fatalf("command = %q", gotName)
	}
	if argValue(gotArgs, "-i") != input || argValue(gotArgs, "-ar") != "16000" || argValue(gotArgs, "-ac") != "1" {
		t.Fatalf("args = %v", gotArgs)
	}
	if len(obs.logs) != 1 {
		t.Fatalf("command logs = %d, want 1", len(obs.logs))
	}
}

// TestFFmpegNormalizerFailure checks conversion error path.
func TestFFmpegNormalizerFailure(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
			return command.Result{Stderr: "ffmpeg failed", ExitCode: 1}, errors.New("exit status 1")
		},
	}

	_, err := NewFFmpegNormalizerForTests("ffmpeg", runner).Normalize(context.Background(), "/in.mkv", t.TempDir(), nil)
	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
	if pErr.Kind != KindLocal || pErr.CommandLog.Stderr != "ffmpeg failed" {
		t.Fatalf("provider error = %+v", pErr)
	}
}

// TestFFmpegNormalizerMissingOutput checks a silent ffmpeg failure.
func TestFFmpegNormalizerMissingOutput(t *testing.T) {
	_, err := NewFFmpegNormalizerForTests("ffmpeg", &fakeRunner{}).Normalize(context.Background(), "/in.mkv", t.TempDir(), nil)
	if err == nil || !strings.Contains(err.Error(), "output file is missing") {
		t.Fatalf("error = %v", err)
	}
}
