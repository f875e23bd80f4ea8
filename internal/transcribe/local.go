package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"viral-script-agent/internal/command"
	"viral-script-agent/internal/domain"
	"viral-script-agent/internal/media"
)

// LocalOptions selects the whisper.cpp model and language.
type LocalOptions struct {
	// ModelPath is a model file or a directory of ggml models.
	ModelPath string
	// Tier picks ggml-<tier>.bin inside a model directory.
	Tier     string
	Language string
}

// LocalProvider runs whisper.cpp on the machine. It can be slow and has no
// internal retry; the chain may re-run it once on normalized audio.
type LocalProvider struct {
	whisperPath string
	runner      command.Runner
	opts        LocalOptions
	stat        func(name string) (os.FileInfo, error)
	readDir     func(name string) ([]os.DirEntry, error)
	readFile    func(name string) ([]byte, error)
}

// NewLocalProvider constructs the production whisper.cpp provider.
func NewLocalProvider(opts LocalOptions) *LocalProvider {
	return &LocalProvider{
		whisperPath: "whisper.cpp",
		runner:      &command.ExecRunner{},
		opts:        opts,
		stat:        os.Stat,
		readDir:     os.ReadDir,
		readFile:    os.ReadFile,
	}
}

// NewLocalProviderForTests constructs a provider with an injectable runner.
func NewLocalProviderForTests(whisperPath string, runner command.Runner, opts LocalOptions) *LocalProvider {
	p := NewLocalProvider(opts)
	p.whisperPath = whisperPath
	p.runner = runner
	return p
}

func (p *LocalProvider) Name() string { return domain.ProviderLocal }

// Available is always true: any local file can be handed to whisper.cpp.
func (p *LocalProvider) Available(*media.Source) bool { return true }

// RetryAfterNormalize opts into the chain's single normalization retry.
func (p *LocalProvider) RetryAfterNormalize() bool { return true }

// Transcribe runs whisper.cpp with JSON output and maps its segments.
func (p *LocalProvider) Transcribe(ctx context.Context, src *media.Source, obs Observer) (Transcript, error) {
	modelPath, err := resolveModelPath(p.opts.ModelPath, p.opts.Tier, p.stat, p.readDir)
	if err != nil {
		return Transcript{}, &ProviderError{
			Provider: p.Name(),
			Kind:     KindLocal,
			Message:  err.Error(),
			Err:      err,
		}
	}

	audioPath, err := src.Audio(ctx)
	if err != nil {
		return Transcript{}, err
	}

	outDir := src.ScratchDir
	if outDir == "" {
		outDir = filepath.Dir(audioPath)
	}
	base := filepath.Join(outDir, "local-transcript")
	args := buildWhisperArgs(modelPath, audioPath, base, p.opts.Language)

	emitProgress(obs, 0, fmt.Sprintf("local model %s started", filepath.Base(modelPath)))
	log, runErr := command.Exec(ctx, p.runner, p.whisperPath, args...)
	emitCommand(obs, log)
	if runErr != nil {
		return Transcript{}, &ProviderError{
			Provider:   p.Name(),
			Kind:       KindLocal,
			Message:    "whisper.cpp transcription failed",
			CommandLog: log,
			Err:        runErr,
		}
	}

	jsonPath := base + ".json"
	content, err := p.readFile(jsonPath)
	if err != nil {
		return Transcript{}, &ProviderError{
			Provider:   p.Name(),
			Kind:       KindLocal,
			Message:    "whisper.cpp completed but transcript .json file is missing",
			CommandLog: log,
			Err:        err,
		}
	}

	tr, err := parseWhisperJSON(content)
	if err != nil {
		return Transcript{}, &ProviderError{
			Provider:   p.Name(),
			Kind:       KindLocal,
			Message:    fmt.Sprintf("cannot parse %s", jsonPath),
			CommandLog: log,
			Err:        err,
		}
	}
	emitProgress(obs, 100, "local model finished")
	return tr, nil
}

// whisperJSON is the subset of whisper.cpp -oj output we read.
type whisperJSON struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseWhisperJSON converts millisecond offsets into second-based segments.
func parseWhisperJSON(content []byte) (Transcript, error) {
	var parsed whisperJSON
	if err := json.Unmarshal(content, &parsed); err != nil {
		return Transcript{}, err
	}

	tr := Transcript{Provider: domain.ProviderLocal, Language: parsed.Result.Language}
	for _, item := range parsed.Transcription {
		tr.Segments = append(tr.Segments, Segment{
			Start: float64(item.Offsets.From) / 1000,
			End:   float64(item.Offsets.To) / 1000,
			Text:  strings.TrimSpace(item.Text),
		})
	}
	tr.Text = joinSegments(tr.Segments)
	return tr, nil
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// buildWhisperArgs builds whisper.cpp args for JSON transcript export.
func buildWhisperArgs(modelPath, audioPath, outBase, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
	}

	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}

	return args
}
