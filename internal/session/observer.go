package session

import (
	"viral-script-agent/internal/command"
	"viral-script-agent/internal/domain"
	"viral-script-agent/internal/jobs"
	"viral-script-agent/internal/transcribe"
)

// runObserver turns pipeline notifications into run events.
type runObserver struct {
	service *Service
	runID   string
}

func (o *runObserver) OnStage(stage domain.RunStatus) {
	if err := o.service.jobs.Transition(stage); err == nil {
		o.service.publishStatus(o.runID, stage, "Running "+string(stage)+" stage")
	}
}

func (o *runObserver) OnProgress(percent int, message string) {
	o.service.publish(jobs.Event{
		RunID:   o.runID,
		Type:    jobs.EventTypeProgress,
		Percent: percent,
		Message: message,
	})
}

func (o *runObserver) OnAttempt(a transcribe.Attempt) {
	msg := "Transcription succeeded"
	if !a.Success {
		msg = a.Detail
	}
	o.service.publish(jobs.Event{
		RunID:    o.runID,
		Type:     jobs.EventTypeAttempt,
		Provider: a.Provider,
		Success:  a.Success,
		Kind:     string(a.Kind),
		Message:  msg,
	})
}

func (o *runObserver) OnCommand(log command.Log) {
	o.service.publish(logEvent(o.runID, "Command completed", log))
}

func logEvent(runID, message string, log command.Log) jobs.Event {
	return jobs.Event{
		RunID:    runID,
		Type:     jobs.EventTypeLog,
		Message:  message,
		Command:  log.Command,
		Args:     log.Args,
		ExitCode: log.ExitCode,
		Stdout:   log.Stdout,
		Stderr:   log.Stderr,
	}
}
