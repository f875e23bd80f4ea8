package models

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"viral-script-agent/internal/domain"
)

// TestFind verifies known tier lookup.
func TestFind(t *testing.T) {
	tier, found := Find("base")
	if !found {
		t.Fatal("expected base tier to exist")
	}
	if tier.FileName != "ggml-base.bin" || tier.URL != BaseURL+"ggml-base.bin" {
		t.Fatalf("tier = %+v", tier)
	}
	if _, found := Find("enormous"); found {
		t.Fatal("unexpected tier found")
	}
}

// TestDownloadDirForEmptyPath falls back to the default local model directory.
func TestDownloadDirForEmptyPath(t *testing.T) {
	dir, err := DownloadDir("")
	if err != nil {
		t.Fatalf("resolve dir: %v", err)
	}
	if !strings.HasSuffix(filepath.ToSlash(dir), "/.viral-script-agent/models") {
		t.Fatalf("dir = %s, expected ~/.viral-script-agent/models suffix", dir)
	}
}

// TestDownloadDirForModelFile uses model file parent directory.
func TestDownloadDirForModelFile(t *testing.T) {
	root := t.TempDir()
	dir, err := DownloadDir(filepath.Join(root, "ggml-small.bin"))
	if err != nil {
		t.Fatalf("resolve dir: %v", err)
	}
	if dir != root {
		t.Fatalf("dir = %s, want %s", dir, root)
	}
}

// TestDownloadDirRejectsExistingNonModelFile rejects invalid file path.
func TestDownloadDirRejectsExistingNonModelFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(file, []byte("not model"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := DownloadDir(file); err == nil {
		t.Fatal("expected error for existing non-model file path")
	}
}

// TestMarkDownloaded marks tiers whose file exists in known dirs.
func TestMarkDownloaded(t *testing.T) {
	root := t.TempDir()
	modelPath := filepath.Join(root, "ggml-base.bin")
	if err := os.WriteFile(modelPath, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}

	options := []domain.ModelTierOption{
		{ID: "base", FileName: "ggml-base.bin"},
		{ID: "small", FileName: "ggml-small.bin"},
	}
	markDownloaded(options, []string{root})

	if !options[0].Downloaded || options[0].LocalPath != modelPath {
		t.Fatalf("base = %+v", options[0])
	}
	if options[1].Downloaded {
		t.Fatal("expected small to remain not downloaded")
	}
}

// TestCatalogUsesConfiguredDirectory checks download state in the configured model dir.
func TestCatalogUsesConfiguredDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "ggml-tiny.bin"), []byte("m"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	for _, opt := range Catalog(root) {
		if opt.ID == "tiny" && !opt.Downloaded {
			t.Fatalf("tiny should be downloaded: %+v", opt)
		}
	}
}

// TestDownloaderWritesTierFile checks the download lands under the tier name.
func TestDownloaderWritesTierFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ggml-small.bin" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("weights"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "models")
	path, err := NewDownloaderForTests(srv.Client(), srv.URL+"/").Download(context.Background(), "small", dir)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if path != filepath.Join(dir, "ggml-small.bin") {
		t.Fatalf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "weights" {
		t.Fatalf("content = %q, %v", data, err)
	}
	if _, err := os.Stat(path + ".download"); !os.IsNotExist(err) {
		t.Fatalf("temp file should be gone, stat err = %v", err)
	}
}

// TestDownloaderHTTPError leaves no file behind.
func TestDownloaderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	if _, err := NewDownloaderForTests(srv.Client(), srv.URL+"/").Download(context.Background(), "base", dir); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(filepath.Join(dir, "ggml-base.bin")); !os.IsNotExist(err) {
		t.Fatalf("model file should not exist, stat err = %v", err)
	}
	if _, err := NewDownloaderForTests(srv.Client(), srv.URL+"/").Download(context.Background(), "nope", dir); err == nil {
		t.Fatal("expected unknown tier error")
	}
}
