package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"viral-script-agent/internal/config"
	"viral-script-agent/internal/session"
)

// ServiceOptions selects where settings live and which credentials the
// process was started with.
type ServiceOptions struct {
	SettingsPath string
	Credentials  config.Credentials
	Context      context.Context
}

// NewService wires the production session: JSON settings store, tool PATH,
// acquisition pipeline and diagnostics.
func NewService(opts ServiceOptions) (*session.Service, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := PrepareToolPath(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	path := strings.TrimSpace(opts.SettingsPath)
	if path == "" {
		if path, err = config.DefaultStorePath(); err != nil {
			return nil, err
		}
	}

	return session.New(session.Options{
		Store:       config.NewJSONStore(path),
		Credentials: opts.Credentials,
		Context:     opts.Context,
	})
}

// PrepareToolPath puts the per-user bin directory first on PATH so locally
// installed yt-dlp, ffmpeg and whisper.cpp binaries are found.
func PrepareToolPath(homeDir string) error {
	binDir := localBinDir(homeDir)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}

func localBinDir(homeDir string) string {
	return filepath.Join(homeDir, config.AppDirName, "bin")
}
