package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"viral-script-agent/internal/command"
)

// ErrUnsupportedMedia is returned for uploads outside the extension allow-list.
var ErrUnsupportedMedia = errors.New("unsupported media type")

var videoIDPattern = regexp.MustCompile(`(?:v=|youtu\.be/|/shorts/|/embed/|/live/)([a-zA-Z0-9_-]{11})`)

// Resolver turns a Reference into a Source backed by a local file.
type Resolver struct {
	ytdlpPath string
	runner    command.Runner
	writeFile func(name string, data []byte, perm os.FileMode) error
	stat      func(name string) (os.FileInfo, error)
	glob      func(pattern string) ([]string, error)
}

// NewResolver constructs the production resolver using yt-dlp for URLs.
func NewResolver() *Resolver {
	return &Resolver{
		ytdlpPath: "yt-dlp",
		runner:    &command.ExecRunner{},
		writeFile: os.WriteFile,
		stat:      os.Stat,
		glob:      filepath.Glob,
	}
}

// NewResolverForTests constructs a resolver with an injectable runner.
func NewResolverForTests(ytdlpPath string, runner command.Runner) *Resolver {
	r := NewResolver()
	r.ytdlpPath = ytdlpPath
	r.runner = runner
	return r
}

// Resolve validates the reference and prepares its Source inside scratchDir.
// URL downloads are deferred until a provider asks for audio; onLog receives
// every external command run on behalf of the source.
func (r *Resolver) Resolve(ctx context.Context, ref Reference, scratchDir string, onLog func(command.Log)) (*Source, error) {
	if ref.IsURL() {
		return r.resolveURL(ref.URL(), scratchDir, onLog)
	}
	return r.resolveUpload(ctx, ref, scratchDir)
}

func (r *Resolver) resolveUpload(ctx context.Context, ref Reference, scratchDir string) (*Source, error) {
	name := ref.FileName()
	if name == "" || name == "." {
		return nil, fmt.Errorf("uploaded file name is required")
	}
	if !IsAllowedExtension(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, filepath.Ext(name))
	}

	path := filepath.Join(scratchDir, "upload"+strings.ToLower(filepath.Ext(name)))
	if err := r.writeFile(path, ref.data, 0o600); err != nil {
		return nil, fmt.Errorf("write upload to scratch: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("path", path).Str("media_type", ref.MediaType()).Int("bytes", ref.Size()).Msg("upload stored")
	src := NewLocalSource(path)
	src.ScratchDir = scratchDir
	return src, nil
}

func (r *Resolver) resolveURL(raw, scratchDir string, onLog func(command.Log)) (*Source, error) {
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid media URL: %q", raw)
	}

	videoID, _ := ExtractVideoID(raw)
	fetch := func(ctx context.Context) (string, error) {
		return r.download(ctx, raw, scratchDir, onLog)
	}
	return NewRemoteSource(raw, videoID, scratchDir, fetch), nil
}

// download fetches the best available audio stream into scratchDir.
func (r *Resolver) download(ctx context.Context, raw, scratchDir string, onLog func(command.Log)) (string, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("url", raw).Msg("downloading audio")

	template := filepath.Join(scratchDir, "source.%(ext)s")
	args := buildDownloadArgs(raw, template)
	log, runErr := command.Exec(ctx, r.runner, r.ytdlpPath, args...)
	if onLog != nil {
		onLog(log)
	}
	if runErr != nil {
		return "", &DownloadError{
			URL:        raw,
			Message:    "yt-dlp failed",
			CommandLog: log,
			Err:        runErr,
		}
	}

	if path := lastLine(log.Stdout); path != "" {
		if _, err := r.stat(path); err == nil {
			return path, nil
		}
	}

	matches, err := r.glob(filepath.Join(scratchDir, "source.*"))
	if err != nil || len(matches) == 0 {
		return "", &DownloadError{
			URL:        raw,
			Message:    "yt-dlp completed but no audio file was written",
			CommandLog: log,
			Err:        err,
		}
	}
	sort.Strings(matches)
	return matches[0], nil
}

// ExtractVideoID returns the 11-character YouTube ID embedded in a URL.
func ExtractVideoID(raw string) (string, bool) {
	m := videoIDPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// buildDownloadArgs builds yt-dlp args restricted to a single best audio stream.
func buildDownloadArgs(rawURL, outTemplate string) []string {
	return []string{
		"--no-playlist",
		"--no-progress",
		"-f", "bestaudio/best",
		"-o", outTemplate,
		"--no-simulate",
		"--print", "after_move:filepath",
		rawURL,
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
