package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// DownloadTimeout bounds one model download.
const DownloadTimeout = 45 * time.Minute

// Downloader fetches tier files over HTTP.
type Downloader struct {
	client  *http.Client
	baseURL string
}

// NewDownloader uses http.DefaultClient and BaseURL.
func NewDownloader() *Downloader {
	return &Downloader{client: http.DefaultClient, baseURL: BaseURL}
}

// NewDownloaderForTests points the downloader at another host.
func NewDownloaderForTests(client *http.Client, baseURL string) *Downloader {
	return &Downloader{client: client, baseURL: baseURL}
}

// Download stores tierID into the directory chosen by DownloadDir(modelPath)
// and returns the file path.
func (d *Downloader) Download(ctx context.Context, tierID, modelPath string) (string, error) {
	tier, ok := Find(tierID)
	if !ok {
		return "", fmt.Errorf("unknown model tier: %s", tierID)
	}
	dir, err := DownloadDir(modelPath)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, DownloadTimeout)
	defer cancel()

	target := filepath.Join(dir, tier.FileName)
	zerolog.Ctx(ctx).Info().Str("tier", tier.ID).Str("path", target).Msg("downloading model")
	if err := d.fetch(ctx, target, d.baseURL+tier.FileName); err != nil {
		return "", fmt.Errorf("download model %s: %w", tier.Name, err)
	}
	return target, nil
}

// fetch writes into a temporary sibling and renames it into place, so a
// partial download never looks like a model.
func (d *Downloader) fetch(ctx context.Context, destinationPath, sourceURL string) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return fmt.Errorf("prepare destination directory: %w", err)
	}

	tmpPath := destinationPath + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale temp file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "viral-script-agent")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	_, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write destination file: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close destination file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move downloaded file into place: %w", err)
	}
	return nil
}
