package transcribe

import (
	"fmt"
	"strings"
)

// Segment is a timestamped span of transcript text, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the text produced by exactly one provider.
type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
	Language string    `json:"language,omitempty"`
	Provider string    `json:"provider"`
}

// TimestampedText renders "12.34s: text" blocks joined by spaces, or the
// plain text when there are no segments.
func (t Transcript) TimestampedText() string {
	if len(t.Segments) == 0 {
		return t.Text
	}
	parts := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		parts = append(parts, fmt.Sprintf("%.2fs: %s", s.Start, strings.TrimSpace(s.Text)))
	}
	return strings.Join(parts, " ")
}

// joinSegments builds plain text from segment texts.
func joinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
