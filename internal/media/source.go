package media

import (
	"context"
	"fmt"
	"sync"

	"viral-script-agent/internal/command"
)

// Source is what the resolver produces for one run: an optional platform
// video ID and a local audio file that is fetched at most once.
type Source struct {
	VideoID    string
	URL        string
	ScratchDir string

	mu         sync.Mutex
	fetch      func(ctx context.Context) (string, error)
	audioPath  string
	fetched    bool
	fetchErr   error
	normalized bool
}

// NewLocalSource wraps an existing local file.
func NewLocalSource(path string) *Source {
	return &Source{audioPath: path, fetched: true}
}

// NewRemoteSource builds a source whose audio is obtained lazily by fetch.
func NewRemoteSource(rawURL, videoID, scratchDir string, fetch func(ctx context.Context) (string, error)) *Source {
	return &Source{
		URL:        rawURL,
		VideoID:    videoID,
		ScratchDir: scratchDir,
		fetch:      fetch,
	}
}

// Audio returns the local audio path, downloading it on first use. A failed
// download is remembered and returned to every later caller.
func (s *Source) Audio(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetched {
		return s.audioPath, s.fetchErr
	}
	s.fetched = true
	if s.fetch == nil {
		s.fetchErr = fmt.Errorf("source has no audio")
		return "", s.fetchErr
	}
	s.audioPath, s.fetchErr = s.fetch(ctx)
	return s.audioPath, s.fetchErr
}

// Normalized reports whether the audio was replaced by a normalized copy.
func (s *Source) Normalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.normalized
}

// ReplaceAudio swaps the audio path for a normalized file.
func (s *Source) ReplaceAudio(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioPath = path
	s.fetched = true
	s.fetchErr = nil
	s.normalized = true
}

// DownloadError reports a failed remote fetch.
type DownloadError struct {
	URL        string
	Message    string
	CommandLog command.Log
	Err        error
}

// Error formats download failures for logs and UI.
func (e *DownloadError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("download %s: %s", e.URL, e.Message)
	}
	return fmt.Sprintf("download %s: %s (cmd=%s exit=%d)", e.URL, e.Message, e.CommandLog.Command, e.CommandLog.ExitCode)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *DownloadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
