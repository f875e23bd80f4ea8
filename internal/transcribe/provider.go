package transcribe

import (
	"context"
	"errors"
	"fmt"

	"viral-script-agent/internal/command"
	"viral-script-agent/internal/media"
)

// ErrorKind classifies provider failures for diagnostics.
type ErrorKind string

const (
	KindDownload    ErrorKind = "download"
	KindAuth        ErrorKind = "auth"
	KindTransport   ErrorKind = "transport"
	KindLocal       ErrorKind = "local"
	KindUnavailable ErrorKind = "unavailable"
)

// Provider converts a source into a transcript.
type Provider interface {
	Name() string
	// Available reports whether the provider applies to src at all.
	// Unavailable providers are skipped without recording an attempt.
	Available(src *media.Source) bool
	Transcribe(ctx context.Context, src *media.Source, obs Observer) (Transcript, error)
}

// Observer receives progress from the chain and its providers.
type Observer interface {
	OnProgress(percent int, message string)
	OnAttempt(attempt Attempt)
	OnCommand(log command.Log)
}

// NopObserver discards all notifications.
type NopObserver struct{}

func (NopObserver) OnProgress(int, string) {}
func (NopObserver) OnAttempt(Attempt) {}
func (NopObserver) OnCommand(command.Log) {}

// ProviderError is a classified provider failure with optional command context.
type ProviderError struct {
	Provider   string      `json:"provider"`
	Kind       ErrorKind   `json:"kind"`
	Message    string      `json:"message"`
	CommandLog command.Log `json:"commandLog"`
	Err        error       `json:"-"`
}

// Error formats provider failures for logs and UI.
func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s (%s): %s", e.Provider, e.Kind, e.Message)
	if e.CommandLog.Command != "" {
		msg += fmt.Sprintf(" (cmd=%s exit=%d)", e.CommandLog.Command, e.CommandLog.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Classify maps an arbitrary provider error to an ErrorKind.
func Classify(err error) ErrorKind {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	var dErr *media.DownloadError
	if errors.As(err, &dErr) {
		return KindDownload
	}
	return KindTransport
}

func emitCommand(obs Observer, log command.Log) {
	if obs != nil {
		obs.OnCommand(log)
	}
}

func emitProgress(obs Observer, percent int, message string) {
	if obs != nil {
		obs.OnProgress(percent, message)
	}
}
