package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"viral-script-agent/internal/config"
	"viral-script-agent/internal/domain"
	"viral-script-agent/internal/transcribe"
)

// Checker validates external tools, credentials and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all checks against already normalized settings. Dependencies
// of providers missing from the configured order are reported as warnings.
func (c *Checker) Run(settings domain.Settings, creds config.Credentials) domain.DiagnosticReport {
	local := hasProvider(settings.ProviderOrder, domain.ProviderLocal)

	items := []domain.DiagnosticItem{
		c.checkTool("yt-dlp", false, "Needed to download audio from video URLs when captions are unavailable."),
		c.checkTool("ffmpeg", false, "Needed to normalize audio before retrying local transcription."),
		c.checkTool("whisper.cpp", local, "Needed for the local transcription fallback."),
		c.checkModelPath(settings.ModelPath, local),
		c.checkOutputDir(settings.OutputDir),
		checkTranscriptionKey(settings, creds),
		checkGeneratorKey(settings, creds),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies a CLI executable is on PATH.
func (c *Checker) checkTool(name string, required bool, hint string) domain.DiagnosticItem {
	path, err := c.lookPath(name)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      "tool_" + name,
			Name:    name,
			Status:  severity(required),
			Message: fmt.Sprintf("Tool not found in PATH: %s", name),
			Hint:    hint,
		}
	}

	return domain.DiagnosticItem{
		ID:      "tool_" + name,
		Name:    name,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkModelPath validates configured model file or model directory.
func (c *Checker) checkModelPath(modelPath string, required bool) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model_path",
		Name: "Model path",
	}
	failed := severity(required)

	if strings.TrimSpace(modelPath) == "" {
		item.Status = failed
		item.Message = "Model path is empty."
		item.Hint = "Set a valid model file path or a directory containing whisper models."
		return item
	}

	info, err := c.stat(modelPath)
	if err != nil {
		item.Status = failed
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Model path does not exist: %s", modelPath)
		} else {
			item.Message = fmt.Sprintf("Cannot access model path: %s", modelPath)
		}
		item.Hint = "Download a whisper.cpp model tier and configure the path in settings."
		return item
	}

	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Model file found: %s", modelPath)
		return item
	}

	entries, err := c.readDir(modelPath)
	if err != nil {
		item.Status = failed
		item.Message = fmt.Sprintf("Cannot read model directory: %s", modelPath)
		item.Hint = "Check permissions for the model directory."
		return item
	}

	for _, entry := range entries {
		if !entry.IsDir() && transcribe.IsModelFile(entry.Name()) {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Model directory is valid: %s", modelPath)
			return item
		}
	}

	item.Status = failed
	item.Message = fmt.Sprintf("No model files found in directory: %s", modelPath)
	item.Hint = "Download a model tier or place a .bin or .gguf file in this directory."
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory where scripts can be saved."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for script export."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// checkTranscriptionKey reports whether hosted transcription can run.
func checkTranscriptionKey(settings domain.Settings, creds config.Credentials) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: "key_transcription", Name: "Hosted transcription key"}
	switch {
	case !hasProvider(settings.ProviderOrder, domain.ProviderHosted):
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Hosted transcription is not in the provider order."
	case strings.TrimSpace(creds.OpenAIKey) == "":
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "OPENAI_API_KEY is not set; hosted transcription will be skipped as an auth failure."
		item.Hint = "Set OPENAI_API_KEY in the environment or a .env file, or pass a key with the run."
	default:
		item.Status = domain.DiagnosticStatusPass
		item.Message = "OpenAI API key is configured."
	}
	return item
}

// checkGeneratorKey reports whether the configured backend has a credential.
func checkGeneratorKey(settings domain.Settings, creds config.Credentials) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: "key_generator", Name: "Script generator key"}
	name, key := "OPENAI_API_KEY", creds.OpenAIKey
	if settings.Backend == domain.BackendGemini {
		name, key = "GEMINI_API_KEY", creds.GeminiKey
	}

	if strings.TrimSpace(key) == "" {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("%s is not set; script generation needs a key supplied with the run.", name)
		item.Hint = fmt.Sprintf("Set %s in the environment or a .env file.", name)
		return item
	}
	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("%s backend key is configured.", settings.Backend)
	return item
}

func severity(required bool) domain.DiagnosticStatus {
	if required {
		return domain.DiagnosticStatusFail
	}
	return domain.DiagnosticStatusWarn
}

func hasProvider(order []string, name string) bool {
	for _, p := range order {
		if strings.EqualFold(strings.TrimSpace(p), name) {
			return true
		}
	}
	return false
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		readDir:    readDir,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
