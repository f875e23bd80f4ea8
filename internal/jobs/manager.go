package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"viral-script-agent/internal/domain"
)

// ErrRunAlreadyActive is returned when starting a second active run.
var ErrRunAlreadyActive = errors.New("a run is already in progress")

// ErrNoRun is returned when a finished run is required but none exists.
var ErrNoRun = errors.New("no finished run")

// Manager tracks the single allowed active run and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Run
	now     func() time.Time
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Run{Status: domain.RunStatusIdle},
		now:     time.Now,
	}
}

// Start registers a new run and moves it to resolving state.
func (m *Manager) Start(runID, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current.Status) {
		return ErrRunAlreadyActive
	}

	m.current = domain.Run{
		ID:        runID,
		Status:    domain.RunStatusResolving,
		Source:    source,
		StartedAt: m.now().UTC(),
	}
	return nil
}

// Transition validates and applies state transitions for current run.
func (m *Manager) Transition(status domain.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && status != domain.RunStatusIdle {
		return fmt.Errorf("cannot transition without an active run")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// Current returns a snapshot of the current run.
func (m *Manager) Current() domain.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears run metadata and returns manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Run{Status: domain.RunStatusIdle}
}

// IsRunning reports whether the current state is an active stage.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current.Status)
}

// isRunning checks if a status represents active pipeline execution.
func isRunning(status domain.RunStatus) bool {
	switch status {
	case domain.RunStatusResolving, domain.RunStatusTranscribing, domain.RunStatusSynthesizing, domain.RunStatusExporting:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed run state machine edges. Exporting
// is entered on demand from a finished run and returns to done.
func isValidTransition(from, to domain.RunStatus) bool {
	switch from {
	case domain.RunStatusIdle:
		return to == domain.RunStatusResolving
	case domain.RunStatusResolving:
		return to == domain.RunStatusTranscribing || to == domain.RunStatusFailed
	case domain.RunStatusTranscribing:
		return to == domain.RunStatusSynthesizing || to == domain.RunStatusFailed
	case domain.RunStatusSynthesizing:
		return to == domain.RunStatusDone || to == domain.RunStatusFailed
	case domain.RunStatusExporting:
		return to == domain.RunStatusDone || to == domain.RunStatusFailed
	case domain.RunStatusDone:
		return to == domain.RunStatusExporting || to == domain.RunStatusResolving || to == domain.RunStatusIdle
	case domain.RunStatusFailed:
		return to == domain.RunStatusResolving || to == domain.RunStatusIdle
	default:
		return false
	}
}
