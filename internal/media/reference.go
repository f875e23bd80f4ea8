package media

import (
	"mime"
	"path/filepath"
	"strings"
)

// AllowedExtensions lists the upload file types accepted by the resolver.
var AllowedExtensions = []string{
	".mp4", ".mov", ".mkv", ".avi", ".webm",
	".mp3", ".wav", ".m4a", ".flac", ".aac", ".ogg",
}

// Reference is either a remote locator or an uploaded blob. It is immutable
// once created and only lives for the duration of one run.
type Reference struct {
	url      string
	fileName string
	data     []byte
}

// FromURL builds a reference to remote media.
func FromURL(raw string) Reference {
	return Reference{url: strings.TrimSpace(raw)}
}

// FromUpload builds a reference to uploaded bytes. The slice is copied.
func FromUpload(fileName string, data []byte) Reference {
	buf := make([]byte, len(data))
	copy(buf, data)
	return Reference{fileName: filepath.Base(strings.TrimSpace(fileName)), data: buf}
}

// IsURL reports whether the reference points to remote media.
func (r Reference) IsURL() bool {
	return r.url != ""
}

// URL returns the remote locator, empty for uploads.
func (r Reference) URL() string {
	return r.url
}

// FileName returns the uploaded file name, empty for URLs.
func (r Reference) FileName() string {
	return r.fileName
}

// Size returns the number of uploaded bytes.
func (r Reference) Size() int {
	return len(r.data)
}

// MediaType infers the MIME type from the upload extension.
func (r Reference) MediaType() string {
	if r.IsURL() {
		return ""
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(r.fileName))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Label is a short human readable description used in events and logs.
func (r Reference) Label() string {
	if r.IsURL() {
		return r.url
	}
	return r.fileName
}

// IsAllowedExtension reports whether the file name has an accepted media extension.
func IsAllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
