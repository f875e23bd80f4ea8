package export

import (
	"fmt"
	"strings"

	"viral-script-agent/internal/script"
	"viral-script-agent/internal/transcribe"
)

// Format names an export target.
type Format string

const (
	FormatText Format = "txt"
	FormatSRT  Format = "srt"
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
)

// Formats lists supported formats in display order.
var Formats = []Format{FormatText, FormatDOCX, FormatPDF, FormatSRT}

// ParseFormat accepts a format name with or without a leading dot.
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "."))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported export format: %q", raw)
}

// Artifact is one rendered file ready for download or saving.
type Artifact struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Render produces the artifact for format. Script formats read doc; SRT
// reads the transcript segments.
func Render(format Format, doc script.Document, tr transcribe.Transcript) (Artifact, error) {
	var (
		data []byte
		err  error
	)
	a := Artifact{FileName: "roteiro." + string(format)}

	switch format {
	case FormatText:
		data = Text(doc.Content)
		a.ContentType = "text/plain; charset=utf-8"
	case FormatDOCX:
		data, err = DOCX(doc.Content)
		a.ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPDF:
		data, err = PDF(doc.Content)
		a.ContentType = "application/pdf"
	case FormatSRT:
		data, err = TranscriptSRT(tr)
		a.FileName = "transcricao.srt"
		a.ContentType = "application/x-subrip"
	default:
		return Artifact{}, fmt.Errorf("unsupported export format: %q", format)
	}
	if err != nil {
		return Artifact{}, err
	}
	a.Data = data
	return a, nil
}
