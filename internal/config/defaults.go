package config

import (
	"os"
	"path/filepath"
	"strings"

	"viral-script-agent/internal/domain"
)

// AppDirName is the per-user directory holding settings and local models.
const AppDirName = ".viral-script-agent"

// DefaultGeminiModel is the chat model used when the Gemini backend is selected.
const DefaultGeminiModel = "gemini-1.5-flash"

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		OutputDir:       filepath.Join(homeDir, "Documents", "ViralScripts"),
		ModelPath:       filepath.Join(homeDir, AppDirName, "models"),
		ModelTier:       "base",
		Language:        "auto",
		CaptionLanguage: "pt",
		ProviderOrder: []string{
			domain.ProviderCaptions,
			domain.ProviderHosted,
			domain.ProviderLocal,
		},
		HostedModel: "whisper-1",
		Backend:     domain.BackendOpenAI,
		ChatModel:   "gpt-4o-mini",
		MaxTokens:   2048,
		Fidelity:    domain.FidelityBalanced,
	}
}

// Normalize trims user input and fills empty fields from DefaultSettings.
func Normalize(s domain.Settings) domain.Settings {
	def := DefaultSettings()

	s.OutputDir = strings.TrimSpace(s.OutputDir)
	s.ModelPath = strings.TrimSpace(s.ModelPath)
	s.ModelTier = strings.TrimSpace(s.ModelTier)
	s.Language = strings.TrimSpace(s.Language)
	s.CaptionLanguage = strings.TrimSpace(s.CaptionLanguage)
	s.HostedModel = strings.TrimSpace(s.HostedModel)
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	s.ChatModel = strings.TrimSpace(s.ChatModel)

	if s.OutputDir == "" {
		s.OutputDir = def.OutputDir
	}
	if s.ModelPath == "" {
		s.ModelPath = def.ModelPath
	}
	if s.ModelTier == "" {
		s.ModelTier = def.ModelTier
	}
	if s.Language == "" {
		s.Language = def.Language
	}
	if s.CaptionLanguage == "" {
		s.CaptionLanguage = def.CaptionLanguage
	}
	if len(s.ProviderOrder) == 0 {
		s.ProviderOrder = def.ProviderOrder
	}
	if s.HostedModel == "" {
		s.HostedModel = def.HostedModel
	}
	if s.Backend == "" {
		s.Backend = def.Backend
	}
	// A model left over from the other backend is replaced by the default.
	isGemini := strings.HasPrefix(strings.ToLower(s.ChatModel), "gemini")
	switch {
	case s.Backend == domain.BackendGemini && !isGemini:
		s.ChatModel = DefaultGeminiModel
	case s.Backend != domain.BackendGemini && (s.ChatModel == "" || isGemini):
		s.ChatModel = def.ChatModel
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = def.MaxTokens
	}
	if s.Fidelity == "" {
		s.Fidelity = def.Fidelity
	}
	return s
}
