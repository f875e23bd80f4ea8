package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"viral-script-agent/internal/command"
)

// FFmpegNormalizer extracts mono 16 kHz PCM WAV from any container.
type FFmpegNormalizer struct {
	ffmpegPath string
	runner     command.Runner
	stat       func(name string) (os.FileInfo, error)
}

// NewFFmpegNormalizer constructs the production normalizer.
func NewFFmpegNormalizer() *FFmpegNormalizer {
	return &FFmpegNormalizer{
		ffmpegPath: "ffmpeg",
		runner:     &command.ExecRunner{},
		stat:       os.Stat,
	}
}

// NewFFmpegNormalizerForTests constructs a normalizer with an injectable runner.
func NewFFmpegNormalizerForTests(ffmpegPath string, runner command.Runner) *FFmpegNormalizer {
	return &FFmpegNormalizer{ffmpegPath: ffmpegPath, runner: runner, stat: os.Stat}
}

// Normalize writes the converted audio into outDir and returns its path.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, inputPath, outDir string, obs Observer) (string, error) {
	outPath := filepath.Join(outDir, "normalized-16k-mono.wav")
	args := buildFFmpegArgs(inputPath, outPath)

	log, runErr := command.Exec(ctx, n.runner, n.ffmpegPath, args...)
	emitCommand(obs, log)
	if runErr != nil {
		return "", &ProviderError{
			Provider:   "normalize",
			Kind:       KindLocal,
			Message:    "ffmpeg audio conversion failed",
			CommandLog: log,
			Err:        runErr,
		}
	}

	if _, err := n.stat(outPath); err != nil {
		return "", &ProviderError{
			Provider:   "normalize",
			Kind:       KindLocal,
			Message:    fmt.Sprintf("ffmpeg completed but output file is missing: %s", outPath),
			CommandLog: log,
			Err:        err,
		}
	}
	return outPath, nil
}

// buildFFmpegArgs builds preprocessing CLI args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}
