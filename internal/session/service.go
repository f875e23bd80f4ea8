// Package session owns the single active run of one user session: settings,
// diagnostics, run lifecycle, event history and the last finished result.
// Desktop and HTTP front ends are thin adapters over a Service.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"viral-script-agent/internal/config"
	"viral-script-agent/internal/diagnostics"
	"viral-script-agent/internal/domain"
	"viral-script-agent/internal/export"
	"viral-script-agent/internal/jobs"
	"viral-script-agent/internal/media"
	"viral-script-agent/internal/models"
	"viral-script-agent/internal/pipeline"
)

// pipelineRunner isolates the acquisition pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// modelDownloader fetches whisper.cpp model tiers.
type modelDownloader interface {
	Download(ctx context.Context, tierID, modelPath string) (string, error)
}

// Options configures a Service. Nil fields get production defaults.
type Options struct {
	Store       config.Store
	Pipeline    pipelineRunner
	Checker     *diagnostics.Checker
	Downloader  modelDownloader
	Credentials config.Credentials
	// Context carries the logger used by background runs.
	Context context.Context
}

// Service coordinates runs for one session.
type Service struct {
	store      config.Store
	jobs       *jobs.Manager
	events     *jobs.EventBus
	pipeline   pipelineRunner
	checker    *diagnostics.Checker
	downloader modelDownloader
	creds      config.Credentials
	baseCtx    context.Context
	newID      func() string

	mu          sync.Mutex
	settings    domain.Settings
	diagnostics domain.DiagnosticReport
	last        *pipeline.Result
	lastErr     string
	hooks       []func(jobs.Event)
	wg          sync.WaitGroup
}

// New loads persisted settings and runs startup diagnostics.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("settings store is required")
	}
	if opts.Pipeline == nil {
		opts.Pipeline = pipeline.New()
	}
	if opts.Checker == nil {
		opts.Checker = diagnostics.NewChecker()
	}
	if opts.Downloader == nil {
		opts.Downloader = models.NewDownloader()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	settings, err := opts.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	s := &Service{
		store:      opts.Store,
		jobs:       jobs.NewManager(),
		events:     jobs.NewEventBus(1000),
		pipeline:   opts.Pipeline,
		checker:    opts.Checker,
		downloader: opts.Downloader,
		creds:      opts.Credentials,
		baseCtx:    opts.Context,
		newID:      uuid.NewString,
		settings:   settings,
	}
	s.diagnostics = s.checker.Run(settings, s.creds)
	return s, nil
}

// OnEvent registers a push hook called after each published event.
func (s *Service) OnEvent(hook func(jobs.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Settings returns the latest persisted settings.
func (s *Service) Settings() (domain.Settings, error) {
	settings, err := s.store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return settings, nil
}

// SaveSettings validates, persists and re-checks settings.
func (s *Service) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if _, err := domain.ParseFidelity(string(normalized.Fidelity)); err != nil {
		return domain.Settings{}, err
	}
	for _, name := range normalized.ProviderOrder {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case domain.ProviderCaptions, domain.ProviderHosted, domain.ProviderLocal:
		default:
			return domain.Settings{}, fmt.Errorf("unknown transcription provider: %s", name)
		}
	}

	if err := s.store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.refresh(normalized)
	return normalized, nil
}

// Diagnostics returns the latest cached diagnostics report.
func (s *Service) Diagnostics() domain.DiagnosticReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (s *Service) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := s.store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return s.refresh(settings), nil
}

func (s *Service) refresh(settings domain.Settings) domain.DiagnosticReport {
	report := s.checker.Run(settings, s.creds)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.diagnostics = report
	return report
}

// Start begins a run in the background. creds override the session
// credentials for this run only.
func (s *Service) Start(ref media.Reference, fidelity string, creds config.Credentials) (domain.Run, error) {
	settings, err := s.store.Load()
	if err != nil {
		return domain.Run{}, fmt.Errorf("load settings: %w", err)
	}

	level := settings.Fidelity
	if strings.TrimSpace(fidelity) != "" {
		if level, err = domain.ParseFidelity(fidelity); err != nil {
			return domain.Run{}, err
		}
	}

	runID := s.newID()
	if err := s.jobs.Start(runID, ref.Label()); err != nil {
		return domain.Run{}, err
	}

	s.mu.Lock()
	s.settings = settings
	s.last = nil
	s.lastErr = ""
	s.mu.Unlock()

	s.publishStatus(runID, domain.RunStatusResolving, "Run started")

	req := pipeline.Request{
		RunID:       runID,
		Reference:   ref,
		Fidelity:    level,
		Credentials: s.creds.Merge(creds),
		Settings:    settings,
		Observer:    &runObserver{service: s, runID: runID},
	}
	run := s.jobs.Current()
	s.wg.Add(1)
	go s.execute(runID, req)
	return run, nil
}

// Wait blocks until the background run, if any, has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// execute runs the pipeline and maps outcomes to run events.
func (s *Service) execute(runID string, req pipeline.Request) {
	defer s.wg.Done()
	logger := zerolog.Ctx(s.baseCtx)

	result, err := s.pipeline.Run(s.baseCtx, req)
	if err != nil {
		if trErr := s.jobs.Transition(domain.RunStatusFailed); trErr != nil {
			logger.Warn().Err(trErr).Str("run_id", runID).Msg("failed status transition rejected")
		}
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()

		s.publishStatus(runID, domain.RunStatusFailed, "Run failed")
		s.publish(jobs.Event{
			RunID:   runID,
			Type:    jobs.EventTypeError,
			Status:  domain.RunStatusFailed,
			Message: err.Error(),
		})

		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) && stageErr.CommandLog.Command != "" {
			s.publish(logEvent(runID, "Failed command", stageErr.CommandLog))
		}
		return
	}

	if cleanupErr := result.Cleanup(); cleanupErr != nil {
		logger.Warn().Err(cleanupErr).Str("run_id", runID).Msg("scratch cleanup failed")
		s.publish(jobs.Event{
			RunID:   runID,
			Type:    jobs.EventTypeError,
			Message: fmt.Sprintf("cleanup temporary files: %v", cleanupErr),
		})
	}

	s.mu.Lock()
	s.last = &result
	s.mu.Unlock()

	if err := s.jobs.Transition(domain.RunStatusDone); err == nil {
		s.publishStatus(runID, domain.RunStatusDone, "Run completed")
	}
	s.publish(jobs.Event{
		RunID:    runID,
		Type:     jobs.EventTypeResult,
		Status:   domain.RunStatusDone,
		Provider: result.Transcript.Provider,
		Message:  "Script generated",
	})
}

// Current returns the run state with a presentation-ready result.
func (s *Service) Current() RunView {
	run := s.jobs.Current()

	s.mu.Lock()
	defer s.mu.Unlock()
	view := RunView{Run: run, Error: s.lastErr}
	if s.last != nil {
		view.fill(*s.last)
	}
	return view
}

// Events returns all events with sequence greater than since.
func (s *Service) Events(since int64) []jobs.Event {
	return s.events.Since(since)
}

// Subscribe streams new events until cancel is called.
func (s *Service) Subscribe(buffer int) (<-chan jobs.Event, func()) {
	return s.events.Subscribe(buffer)
}

// Reset discards the last result and returns the session to idle.
func (s *Service) Reset() error {
	if s.jobs.IsRunning() {
		return jobs.ErrRunAlreadyActive
	}
	s.jobs.Reset()

	s.mu.Lock()
	s.last = nil
	s.lastErr = ""
	s.mu.Unlock()
	return nil
}

// Artifact renders the last finished run in format.
func (s *Service) Artifact(format string) (export.Artifact, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return export.Artifact{}, err
	}

	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		return export.Artifact{}, jobs.ErrNoRun
	}

	if err := s.jobs.Transition(domain.RunStatusExporting); err != nil {
		return export.Artifact{}, err
	}
	artifact, renderErr := export.Render(f, last.Script, last.Transcript)
	if err := s.jobs.Transition(domain.RunStatusDone); err != nil {
		return export.Artifact{}, err
	}
	if renderErr != nil {
		return export.Artifact{}, renderErr
	}
	return artifact, nil
}

// publishStatus sends a normalized status event.
func (s *Service) publishStatus(runID string, status domain.RunStatus, message string) {
	s.publish(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publish stores event history and calls push hooks.
func (s *Service) publish(event jobs.Event) {
	published := s.events.Publish(event)

	s.mu.Lock()
	hooks := append([]func(jobs.Event){}, s.hooks...)
	s.mu.Unlock()
	for _, hook := range hooks {
		hook(published)
	}
}
