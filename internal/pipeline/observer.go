package pipeline

import (
	"viral-script-agent/internal/command"
	"viral-script-agent/internal/domain"
	"viral-script-agent/internal/transcribe"
)

// Observer receives run progress. Implementations must not block.
type Observer interface {
	transcribe.Observer
	OnStage(stage domain.RunStatus)
}

// NopObserver discards all notifications.
type NopObserver struct {
	transcribe.NopObserver
}

func (NopObserver) OnStage(domain.RunStatus) {}

// recorder forwards to an observer and keeps every command log.
type recorder struct {
	Observer
	logs []command.Log
}

func (r *recorder) OnCommand(log command.Log) {
	r.logs = append(r.logs, log)
	r.Observer.OnCommand(log)
}
