// Package cli implements the viralscript command line.
package cli

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"viral-script-agent/internal/config"
	"viral-script-agent/internal/logging"
	"viral-script-agent/internal/pipeline"
)

// pipelineRunner is the part of the pipeline used by generate.
type pipelineRunner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// env carries state resolved by the root command for its subcommands.
type env struct {
	logLevel     string
	envFile      string
	settingsPath string

	logger      zerolog.Logger
	creds       config.Credentials
	newPipeline func() pipelineRunner
}

// NewRootCommand builds the viralscript command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(func() pipelineRunner { return pipeline.New() })
}

func newRootCommand(newPipeline func() pipelineRunner) *cobra.Command {
	e := &env{newPipeline: newPipeline}

	root := &cobra.Command{
		Use:   "viralscript",
		Short: "Turn a video or audio file into a viral script",
		Long: `viralscript downloads or accepts media, transcribes it through a
captions, hosted and local whisper fallback chain, and rewrites the
transcript into a short-form video script.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e.logger = logging.New(cmd.ErrOrStderr(), e.logLevel, true)
			creds, err := config.LoadCredentials(splitEnvFiles(e.envFile)...)
			if err != nil {
				e.logger.Warn().Err(err).Msg("env file ignored")
			}
			e.creds = creds
			cmd.SetContext(e.logger.WithContext(cmd.Context()))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&e.envFile, "env-file", ".env", "Comma separated .env files holding API keys")
	root.PersistentFlags().StringVar(&e.settingsPath, "settings", "", "Settings file (default ~/"+config.AppDirName+"/settings.json)")

	root.AddCommand(
		newGenerateCommand(e),
		newServeCommand(e),
		newDesktopCommand(e),
		newDiagnoseCommand(e),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx := context.Background()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// store opens the configured settings file.
func (e *env) store() (*config.JSONStore, error) {
	path := strings.TrimSpace(e.settingsPath)
	if path == "" {
		var err error
		if path, err = config.DefaultStorePath(); err != nil {
			return nil, err
		}
	}
	return config.NewJSONStore(path), nil
}

func splitEnvFiles(raw string) []string {
	var files []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return files
}
