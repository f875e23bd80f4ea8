package session

import (
	"context"
	"fmt"
	"os"
	"strings"

	"viral-script-agent/internal/config"
	"viral-script-agent/internal/domain"
	"viral-script-agent/internal/models"
	"viral-script-agent/internal/transcribe"
)

// ModelTiers lists downloadable whisper.cpp tiers with local state.
func (s *Service) ModelTiers() []domain.ModelTierOption {
	settings, err := s.store.Load()
	if err != nil {
		settings = config.DefaultSettings()
	}
	return models.Catalog(settings.ModelPath)
}

// DownloadModelTier fetches a tier, selects it and saves settings.
func (s *Service) DownloadModelTier(ctx context.Context, tierID string) (domain.Settings, error) {
	settings, err := s.store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	path, err := s.downloader.Download(ctx, tierID, settings.ModelPath)
	if err != nil {
		return domain.Settings{}, err
	}

	settings.ModelTier = strings.TrimSpace(tierID)
	if transcribe.IsModelFile(settings.ModelPath) {
		settings.ModelPath = path
	}
	if err := s.store.Save(settings); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.refresh(settings)
	return settings, nil
}

// Fix applies a remediation for one diagnostic item and returns the new
// report. Only the model path and output directory can be fixed in place.
func (s *Service) Fix(ctx context.Context, itemID string) (domain.DiagnosticReport, error) {
	settings, err := s.store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	var fixErr error
	switch strings.TrimSpace(itemID) {
	case "model_path":
		_, fixErr = s.DownloadModelTier(ctx, settings.ModelTier)
	case "output_dir":
		if err := os.MkdirAll(settings.OutputDir, 0o755); err != nil {
			fixErr = fmt.Errorf("create output directory %s: %w", settings.OutputDir, err)
		}
	case "":
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("no automatic fix for diagnostic item: %s", itemID)
	}

	report, err := s.RefreshDiagnostics()
	if err != nil {
		return report, err
	}
	return report, fixErr
}
