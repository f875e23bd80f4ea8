// Package bootstrap wires the session service into the Wails desktop shell.
package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"viral-script-agent/internal/config"
	"viral-script-agent/internal/domain"
	"viral-script-agent/internal/jobs"
	"viral-script-agent/internal/media"
	"viral-script-agent/internal/session"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// RunEventName is the runtime event carrying jobs.Event payloads.
const RunEventName = "run:event"

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.webm;*.mp3;*.wav;*.m4a;*.aac;*.ogg;*.flac",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var modelDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Whisper models",
		Pattern:     "*.bin;*.gguf",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App exposes the session service to the desktop frontend.
type App struct {
	service  *session.Service
	assets   fs.FS
	readFile func(name string) ([]byte, error)

	mu         sync.Mutex
	runtimeCtx context.Context
}

// New builds a desktop app serving ./frontend from disk.
func New(service *session.Service) *App {
	return NewWithAssets(service, nil)
}

// NewWithAssets builds a desktop app with optional embedded frontend assets.
func NewWithAssets(service *session.Service, assets fs.FS) *App {
	a := &App{
		service:  service,
		assets:   assets,
		readFile: os.ReadFile,
	}
	service.OnEvent(a.emit)
	return a
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Viral Script Agent",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.service.Diagnostics()
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	return a.service.RefreshDiagnostics()
}

// InstallOrFixDiagnostic remediates one diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	return a.service.Fix(a.backgroundContext(), itemID)
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	return a.service.Settings()
}

// SaveSettings validates and persists settings.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	return a.service.SaveSettings(settings)
}

// GetModelTiers lists downloadable whisper.cpp model tiers.
func (a *App) GetModelTiers() []domain.ModelTierOption {
	return a.service.ModelTiers()
}

// DownloadModelTier downloads and selects a model tier.
func (a *App) DownloadModelTier(tierID string) (domain.Settings, error) {
	return a.service.DownloadModelTier(a.backgroundContext(), tierID)
}

// StartRunFromURL starts a run for a remote video. Keys are used for this
// run only and never persisted.
func (a *App) StartRunFromURL(url, fidelity, openAIKey, geminiKey string) (domain.Run, error) {
	return a.service.Start(media.FromURL(url), fidelity, config.Credentials{
		OpenAIKey: openAIKey,
		GeminiKey: geminiKey,
	})
}

// StartRunFromFile starts a run for a local media file picked in the UI.
func (a *App) StartRunFromFile(path, fidelity, openAIKey, geminiKey string) (domain.Run, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.Run{}, fmt.Errorf("media file path is required")
	}
	data, err := a.readFile(path)
	if err != nil {
		return domain.Run{}, fmt.Errorf("read media file: %w", err)
	}

	return a.service.Start(media.FromUpload(filepath.Base(path), data), fidelity, config.Credentials{
		OpenAIKey: openAIKey,
		GeminiKey: geminiKey,
	})
}

// CurrentRun returns the run state and its result preview.
func (a *App) CurrentRun() session.RunView {
	return a.service.Current()
}

// ResetRun clears the finished run so a new one can be shown.
func (a *App) ResetRun() error {
	return a.service.Reset()
}

// RunEvents returns all events with sequence greater than sinceSeq.
func (a *App) RunEvents(sinceSeq int64) []jobs.Event {
	return a.service.Events(sinceSeq)
}

// SaveArtifact renders the finished run in format and writes it to the
// configured output directory, returning the written path.
func (a *App) SaveArtifact(format string) (string, error) {
	artifact, err := a.service.Artifact(format)
	if err != nil {
		return "", err
	}
	settings, err := a.service.Settings()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(settings.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	name := artifact.FileName
	if id := a.service.Current().Run.ID; len(id) >= 8 {
		name = id[:8] + "-" + name
	}
	path := filepath.Join(settings.OutputDir, name)
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// PickInputFile opens a native file dialog for media selection.
func (a *App) PickInputFile() (string, error) {
	return a.openFile("Select media file", mediaDialogFilter)
}

// PickModelFile opens a native file dialog for whisper model selection.
func (a *App) PickModelFile() (string, error) {
	return a.openFile("Select whisper model", modelDialogFilter)
}

// PickModelDirectory opens a native directory picker for model folders.
func (a *App) PickModelDirectory() (string, error) {
	return a.openDirectory("Select model directory")
}

// PickOutputDirectory opens a native directory picker for script exports.
func (a *App) PickOutputDirectory() (string, error) {
	return a.openDirectory("Select output directory")
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		settings, err := a.service.Settings()
		if err != nil {
			return err
		}
		target = settings.OutputDir
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}
	return openInFileManager(openPath)
}

func (a *App) openFile(title string, filters []wailsruntime.FileFilter) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   title,
		Filters: filters,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

func (a *App) openDirectory(title string) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{Title: title})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

// emit forwards published run events to the frontend.
func (a *App) emit(event jobs.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, RunEventName, event)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

func (a *App) backgroundContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx != nil {
		return a.runtimeCtx
	}
	return context.Background()
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
