package transcribe

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kkdai/youtube/v2"

	"viral-script-agent/internal/media"
)

type fakeCaptions struct {
	segments []Segment
	err      error
	gotID    string
	gotLang  string
}

func (f *fakeCaptions) Fetch(ctx context.Context, videoID, lang string) ([]Segment, error) {
	f.gotID = videoID
	f.gotLang = lang
	return f.segments, f.err
}

func remoteSource(videoID string) *media.Source {
	return media.NewRemoteSource("https://youtu.be/"+videoID, videoID, "", func(ctx context.Context) (string, error) {
		return "", errors.New("download must not happen")
	})
}

// TestCaptionsProviderAvailability checks only sources with an ID qualify.
func TestCaptionsProviderAvailability(t *testing.T) {
	p := &CaptionsProvider{fetcher: &fakeCaptions{}, language: "pt"}
	if p.Available(media.NewLocalSource("/a.wav")) {
		t.Fatal("local upload must not be eligible for captions")
	}
	if !p.Available(remoteSource("dQw4w9WgXcQ")) {
		t.Fatal("video with ID must be eligible")
	}
}

// TestCaptionsProviderSuccess checks captions bypass downloading.
func TestCaptionsProviderSuccess(t *testing.T) {
	fetcher := &fakeCaptions{segments: []Segment{{Start: 0, End: 2, Text: "primeira"}, {Start: 2, End: 4, Text: "segunda"}}}
	p := &CaptionsProvider{fetcher: fetcher, language: "pt"}

	tr, err := p.Transcribe(context.Background(), remoteSource("dQw4w9WgXcQ"), nil)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if fetcher.gotID != "dQw4w9WgXcQ" || fetcher.gotLang != "pt" {
		t.Fatalf("fetch id=%q lang=%q", fetcher.gotID, fetcher.gotLang)
	}
	if tr.Text != "primeira segunda" || tr.Provider != "captions" || len(tr.Segments) != 2 {
		t.Fatalf("transcript = %+v", tr)
	}
}

// TestCaptionsProviderFailureKinds checks disabled and empty captions are unavailable.
func TestCaptionsProviderFailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *fakeCaptions
		want    ErrorKind
	}{
		{name: "disabled", fetcher: &fakeCaptions{err: fmt.Errorf("lookup: %w", youtube.ErrTranscriptDisabled)}, want: KindUnavailable},
		{name: "empty", fetcher: &fakeCaptions{}, want: KindUnavailable},
		{name: "network", fetcher: &fakeCaptions{err: errors.New("connection reset")}, want: KindTransport},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &CaptionsProvider{fetcher: tc.fetcher, language: "pt"}
			_, err := p.Transcribe(context.Background(), remoteSource("dQw4w9WgXcQ"), nil)
			if got := Classify(err); got != tc.want {
				t.Fatalf("kind = %s, want %s (err=%v)", got, tc.want, err)
			}
		})
	}
}
