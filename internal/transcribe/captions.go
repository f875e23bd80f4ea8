package transcribe

import (
	"context"
	"errors"
	"strings"

	"github.com/kkdai/youtube/v2"

	"viral-script-agent/internal/domain"
	"viral-script-agent/internal/media"
)

// captionsFetcher fetches platform captions for a video ID.
type captionsFetcher interface {
	Fetch(ctx context.Context, videoID, lang string) ([]Segment, error)
}

// youtubeFetcher reads captions through the YouTube player API.
type youtubeFetcher struct {
	client *youtube.Client
}

// Fetch resolves the video and downloads its transcript in lang.
func (f youtubeFetcher) Fetch(ctx context.Context, videoID, lang string) ([]Segment, error) {
	video, err := f.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, err
	}
	transcript, err := f.client.GetTranscriptCtx(ctx, video, lang)
	if err != nil {
		return nil, err
	}

	segments := make([]Segment, 0, len(transcript))
	for _, item := range transcript {
		segments = append(segments, Segment{
			Start: float64(item.StartMs) / 1000,
			End:   float64(item.StartMs+item.Duration) / 1000,
			Text:  strings.TrimSpace(item.Text),
		})
	}
	return segments, nil
}

// CaptionsProvider returns existing platform captions, bypassing transcription.
type CaptionsProvider struct {
	fetcher  captionsFetcher
	language string
}

// NewCaptionsProvider creates a YouTube captions provider for lang.
func NewCaptionsProvider(lang string) *CaptionsProvider {
	return &CaptionsProvider{
		fetcher:  youtubeFetcher{client: &youtube.Client{}},
		language: lang,
	}
}

func (p *CaptionsProvider) Name() string { return domain.ProviderCaptions }

// Available only for sources with a known platform content ID.
func (p *CaptionsProvider) Available(src *media.Source) bool {
	return src != nil && src.VideoID != ""
}

// Transcribe fetches captions; a video without captions is KindUnavailable.
func (p *CaptionsProvider) Transcribe(ctx context.Context, src *media.Source, obs Observer) (Transcript, error) {
	emitProgress(obs, 0, "checking for existing captions")
	segments, err := p.fetcher.Fetch(ctx, src.VideoID, p.language)
	if err != nil {
		kind := KindTransport
		if errors.Is(err, youtube.ErrTranscriptDisabled) {
			kind = KindUnavailable
		}
		return Transcript{}, &ProviderError{
			Provider: p.Name(),
			Kind:     kind,
			Message:  "captions lookup failed",
			Err:      err,
		}
	}
	if len(segments) == 0 {
		return Transcript{}, &ProviderError{
			Provider: p.Name(),
			Kind:     KindUnavailable,
			Message:  "no captions available for " + src.VideoID,
		}
	}
	emitProgress(obs, 100, "captions found")

	return Transcript{
		Text:     joinSegments(segments),
		Segments: segments,
		Language: p.language,
		Provider: p.Name(),
	}, nil
}
