package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"viral-script-agent/internal/command"
	"viral-script-agent/internal/config"
	"viral-script-agent/internal/domain"
	"viral-script-agent/internal/export"
	"viral-script-agent/internal/media"
	"viral-script-agent/internal/pipeline"
	"viral-script-agent/internal/transcribe"
)

type generateOptions struct {
	url       string
	file      string
	fidelity  string
	formats   []string
	outDir    string
	openAIKey string
	geminiKey string
}

func newGenerateCommand(e *env) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Transcribe media and write the generated script",
		Example: `  # Script from a YouTube video, as text and PDF
  viralscript generate --url "https://www.youtube.com/watch?v=dQw4w9WgXcQ" --format txt,pdf

  # Script from a local recording with strict fidelity
  viralscript generate --file talk.mp3 --fidelity strict --out ./scripts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.generate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "", "Remote video URL")
	cmd.Flags().StringVar(&opts.file, "file", "", "Local audio or video file")
	cmd.Flags().StringVar(&opts.fidelity, "fidelity", "", "strict, balanced or creative (default from settings)")
	cmd.Flags().StringSliceVar(&opts.formats, "format", []string{"txt"}, "Export formats: txt, srt, docx, pdf")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "Output directory (default from settings)")
	cmd.Flags().StringVar(&opts.openAIKey, "openai-key", "", "OpenAI API key for this run")
	cmd.Flags().StringVar(&opts.geminiKey, "gemini-key", "", "Gemini API key for this run")
	cmd.MarkFlagsMutuallyExclusive("url", "file")
	cmd.MarkFlagsOneRequired("url", "file")
	return cmd
}

func (e *env) generate(cmd *cobra.Command, opts *generateOptions) error {
	formats := make([]export.Format, 0, len(opts.formats))
	for _, raw := range opts.formats {
		f, err := export.ParseFormat(raw)
		if err != nil {
			return err
		}
		formats = append(formats, f)
	}

	store, err := e.store()
	if err != nil {
		return err
	}
	settings, err := store.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	fidelity := settings.Fidelity
	if strings.TrimSpace(opts.fidelity) != "" {
		if fidelity, err = domain.ParseFidelity(opts.fidelity); err != nil {
			return err
		}
	}

	ref, err := referenceFromFlags(opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	result, err := e.newPipeline().Run(ctx, pipeline.Request{
		Reference: ref,
		Fidelity:  fidelity,
		Credentials: e.creds.Merge(config.Credentials{
			OpenAIKey: opts.openAIKey,
			GeminiKey: opts.geminiKey,
		}),
		Settings: settings,
		Observer: &consoleObserver{logger: zerolog.Ctx(ctx)},
	})
	if err != nil {
		return err
	}
	defer func() {
		if cleanupErr := result.Cleanup(); cleanupErr != nil {
			zerolog.Ctx(ctx).Warn().Err(cleanupErr).Msg("scratch cleanup failed")
		}
	}()

	outDir := strings.TrimSpace(opts.outDir)
	if outDir == "" {
		outDir = settings.OutputDir
	}
	paths, err := writeArtifacts(outDir, formats, result)
	if err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}

func referenceFromFlags(opts *generateOptions) (media.Reference, error) {
	if strings.TrimSpace(opts.url) != "" {
		return media.FromURL(opts.url), nil
	}
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return media.Reference{}, fmt.Errorf("read media file: %w", err)
	}
	return media.FromUpload(filepath.Base(opts.file), data), nil
}

// writeArtifacts renders every format into outDir and returns the paths.
func writeArtifacts(outDir string, formats []export.Format, result pipeline.Result) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		artifact, err := export.Render(f, result.Script, result.Transcript)
		if err != nil {
			return paths, fmt.Errorf("render %s: %w", f, err)
		}
		path := filepath.Join(outDir, artifact.FileName)
		if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// consoleObserver logs run progress for terminal users.
type consoleObserver struct {
	logger *zerolog.Logger
}

func (o *consoleObserver) OnStage(stage domain.RunStatus) {
	o.logger.Info().Str("stage", string(stage)).Msg("stage")
}

func (o *consoleObserver) OnProgress(percent int, message string) {
	o.logger.Debug().Int("percent", percent).Msg(message)
}

func (o *consoleObserver) OnAttempt(a transcribe.Attempt) {
	if a.Success {
		o.logger.Info().Str("provider", a.Provider).Bool("normalized", a.Normalized).Msg("transcription succeeded")
		return
	}
	o.logger.Warn().Str("provider", a.Provider).Str("kind", string(a.Kind)).Msg(a.Detail)
}

func (o *consoleObserver) OnCommand(log command.Log) {
	o.logger.Debug().Str("command", log.Command).Int("exit_code", log.ExitCode).Msg("command completed")
}
