// Package models manages the downloadable whisper.cpp model tiers used by
// the local transcription fallback.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"viral-script-agent/internal/config"
	"viral-script-agent/internal/domain"
	"viral-script-agent/internal/transcribe"
)

// BaseURL hosts the ggml model files.
const BaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

type tier struct {
	id, name, size, description string
}

var tiers = []tier{
	{"tiny", "Tiny", "~75 MB", "Fastest; rough transcripts, fine for captions-less short clips."},
	{"base", "Base", "~142 MB", "Default tier; balanced speed and quality."},
	{"small", "Small", "~466 MB", "Noticeably better accuracy for Portuguese and Spanish."},
	{"medium", "Medium", "~1.5 GB", "High quality; slow on CPU."},
	{"large-v3", "Large v3", "~2.9 GB", "Best quality multilingual model."},
	{"large-v3-turbo", "Large v3 Turbo", "~1.6 GB", "Faster large-v3 variant."},
}

// Catalog returns every tier with download state resolved against modelPath.
func Catalog(modelPath string) []domain.ModelTierOption {
	out := make([]domain.ModelTierOption, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, option(t))
	}
	markDownloaded(out, knownDirs(modelPath))
	return out
}

// Find looks up one tier by ID.
func Find(id string) (domain.ModelTierOption, bool) {
	id = strings.TrimSpace(id)
	for _, t := range tiers {
		if t.id == id {
			return option(t), true
		}
	}
	return domain.ModelTierOption{}, false
}

func option(t tier) domain.ModelTierOption {
	file := transcribe.ModelFileName(t.id)
	return domain.ModelTierOption{
		ID:          t.id,
		Name:        t.name,
		FileName:    file,
		URL:         BaseURL + file,
		SizeLabel:   t.size,
		Description: t.description,
	}
}

// DownloadDir decides where a tier download goes for a configured model
// path: the path itself for directories, the parent for model files.
func DownloadDir(modelPath string) (string, error) {
	trimmed := strings.TrimSpace(modelPath)
	if trimmed == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve user home: %w", err)
		}
		return filepath.Join(homeDir, config.AppDirName, "models"), nil
	}

	info, err := os.Stat(trimmed)
	if err == nil {
		if info.IsDir() {
			return trimmed, nil
		}
		if transcribe.IsModelFile(trimmed) {
			return filepath.Dir(trimmed), nil
		}
		return "", fmt.Errorf("model path points to non-model file: %s", trimmed)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("check model path: %w", err)
	}

	if transcribe.IsModelFile(trimmed) {
		return filepath.Dir(trimmed), nil
	}
	return trimmed, nil
}

// knownDirs lists the directories that may already hold tier files.
func knownDirs(modelPath string) []string {
	var dirs []string
	seen := map[string]struct{}{}
	add := func(path string) {
		clean := filepath.Clean(strings.TrimSpace(path))
		if clean == "." || clean == "" {
			return
		}
		if _, ok := seen[clean]; ok {
			return
		}
		seen[clean] = struct{}{}
		dirs = append(dirs, clean)
	}

	if dir, err := DownloadDir(modelPath); err == nil {
		add(dir)
	}
	if dir, err := DownloadDir(""); err == nil {
		add(dir)
	}
	return dirs
}

func markDownloaded(options []domain.ModelTierOption, dirs []string) {
	for i := range options {
		for _, dir := range dirs {
			candidate := filepath.Join(dir, options[i].FileName)
			info, err := os.Stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}
			options[i].Downloaded = true
			options[i].LocalPath = candidate
			break
		}
	}
}
