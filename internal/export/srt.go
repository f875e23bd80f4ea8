package export

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"viral-script-agent/internal/transcribe"
)

// ErrNoSegments means there is nothing to put in a subtitle file.
var ErrNoSegments = errors.New("transcript has no timestamped segments")

// SRT renders segments as 1-based subtitle cues.
func SRT(segments []transcribe.Segment) []byte {
	var b strings.Builder
	for i, s := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, FormatTimestamp(s.Start), FormatTimestamp(s.End), strings.TrimSpace(s.Text))
	}
	return []byte(b.String())
}

// TranscriptSRT renders tr as subtitles. Without segments the whole text
// becomes one cue; an empty transcript is an error.
func TranscriptSRT(tr transcribe.Transcript) ([]byte, error) {
	if len(tr.Segments) > 0 {
		return SRT(tr.Segments), nil
	}
	if strings.TrimSpace(tr.Text) == "" {
		return nil, ErrNoSegments
	}
	return SRT([]transcribe.Segment{{Start: 0, End: 0, Text: tr.Text}}), nil
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm. Milliseconds are
// truncated, never rounded; negative input clamps to zero.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	// The epsilon absorbs binary error on whole-millisecond offsets like 4.35.
	total := int64(math.Floor(seconds*1000 + 1e-6))
	whole, millis := total/1000, total%1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", whole/3600, (whole%3600)/60, whole%60, millis)
}
