package session

import (
	"viral-script-agent/internal/domain"
	"viral-script-agent/internal/pipeline"
	"viral-script-agent/internal/transcribe"
)

// PreviewLimit caps the transcript characters shown in UIs. The generator
// always receives the full text.
const PreviewLimit = 4000

// RunView is the presentation snapshot of the current run.
type RunView struct {
	Run                 domain.Run           `json:"run"`
	TranscriptPreview   string               `json:"transcriptPreview,omitempty"`
	TranscriptTruncated bool                 `json:"transcriptTruncated,omitempty"`
	TranscriptProvider  string               `json:"transcriptProvider,omitempty"`
	Script              string               `json:"script,omitempty"`
	Attempts            []transcribe.Attempt `json:"attempts,omitempty"`
	Error               string               `json:"error,omitempty"`
}

func (v *RunView) fill(result pipeline.Result) {
	v.TranscriptPreview, v.TranscriptTruncated = Preview(result.Transcript.Text, PreviewLimit)
	v.TranscriptProvider = result.Transcript.Provider
	v.Script = result.Script.Content
	v.Attempts = result.Attempts
}

// Preview cuts text to at most limit characters.
func Preview(text string, limit int) (string, bool) {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text, false
	}
	return string(runes[:limit]), true
}
