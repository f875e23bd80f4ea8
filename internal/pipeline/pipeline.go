package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"viral-script-agent/internal/command"
	"viral-script-agent/internal/config"
	"viral-script-agent/internal/domain"
	"viral-script-agent/internal/media"
	"viral-script-agent/internal/script"
	"viral-script-agent/internal/transcribe"
)

// StageError is a stage-aware error with optional command context.
type StageError struct {
	Stage      domain.RunStatus `json:"stage"`
	Message    string           `json:"message"`
	CommandLog command.Log      `json:"commandLog"`
	Err        error            `json:"-"`
}

// Error formats pipeline failures for logs and UI.
func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s", e.Stage, e.Message)
	if e.CommandLog.Command != "" {
		msg += fmt.Sprintf(" (cmd=%s exit=%d)", e.CommandLog.Command, e.CommandLog.ExitCode)
	}
	return msg
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Request describes one end-to-end run. RunID is generated when empty.
type Request struct {
	RunID       string
	Reference   media.Reference
	Fidelity    domain.Fidelity
	Credentials config.Credentials
	Settings    domain.Settings
	Observer    Observer
}

// Result is the in-memory outcome of a successful run.
type Result struct {
	RunID      string                `json:"runId"`
	Transcript transcribe.Transcript `json:"transcript"`
	Script     script.Document       `json:"script"`
	Attempts   []transcribe.Attempt  `json:"attempts"`
	Logs       []command.Log         `json:"logs"`
	ScratchDir string                `json:"-"`

	removeAll func(path string) error
}

// Cleanup removes the run scratch directory.
func (r Result) Cleanup() error {
	if strings.TrimSpace(r.ScratchDir) == "" || r.removeAll == nil {
		return nil
	}
	return r.removeAll(r.ScratchDir)
}

// sourceResolver turns a reference into a source inside scratchDir.
type sourceResolver interface {
	Resolve(ctx context.Context, ref media.Reference, scratchDir string, onLog func(command.Log)) (*media.Source, error)
}

// ProviderFactory builds the provider registry for one run.
type ProviderFactory func(settings domain.Settings, creds config.Credentials) map[string]transcribe.Provider

// GeneratorFactory builds the script generator for one run.
type GeneratorFactory func(settings domain.Settings, creds config.Credentials) (script.Generator, error)

// Pipeline wires resolver, fallback chain and synthesizer.
type Pipeline struct {
	resolver   sourceResolver
	providers  ProviderFactory
	normalizer transcribe.Normalizer
	generator  GeneratorFactory
	newID      func() string
	mkdirTemp  func(dir, pattern string) (string, error)
	removeAll  func(path string) error
}

// New constructs the production pipeline.
func New() *Pipeline {
	return &Pipeline{
		resolver:   media.NewResolver(),
		providers:  DefaultProviders,
		normalizer: transcribe.NewFFmpegNormalizer(),
		generator:  DefaultGenerator,
		newID:      uuid.NewString,
		mkdirTemp:  os.MkdirTemp,
		removeAll:  os.RemoveAll,
	}
}

// NewForTests constructs a pipeline with injected collaborators. Nil
// arguments keep the production defaults.
func NewForTests(
	resolver sourceResolver,
	providers ProviderFactory,
	normalizer transcribe.Normalizer,
	generator GeneratorFactory,
) *Pipeline {
	p := New()
	if resolver != nil {
		p.resolver = resolver
	}
	if providers != nil {
		p.providers = providers
	}
	if normalizer != nil {
		p.normalizer = normalizer
	}
	if generator != nil {
		p.generator = generator
	}
	return p
}

// DefaultProviders builds captions, hosted and local providers from settings.
func DefaultProviders(settings domain.Settings, creds config.Credentials) map[string]transcribe.Provider {
	return map[string]transcribe.Provider{
		domain.ProviderCaptions: transcribe.NewCaptionsProvider(settings.CaptionLanguage),
		domain.ProviderHosted: transcribe.NewHostedProvider(
			creds.OpenAIKey,
			transcribe.WithHostedModel(settings.HostedModel),
			transcribe.WithHostedLanguage(settings.Language),
		),
		domain.ProviderLocal: transcribe.NewLocalProvider(transcribe.LocalOptions{
			ModelPath: settings.ModelPath,
			Tier:      settings.ModelTier,
			Language:  settings.Language,
		}),
	}
}

// DefaultGenerator selects the generative backend named in settings.
func DefaultGenerator(settings domain.Settings, creds config.Credentials) (script.Generator, error) {
	switch strings.ToLower(strings.TrimSpace(settings.Backend)) {
	case "", domain.BackendOpenAI:
		return script.NewOpenAIGenerator(creds.OpenAIKey, settings.ChatModel, ""), nil
	case domain.BackendGemini:
		return script.NewGeminiGenerator(creds.GeminiKey, settings.ChatModel), nil
	default:
		return nil, fmt.Errorf("unknown generative backend: %q", settings.Backend)
	}
}

// Run executes resolve, transcribe and synthesize in order. On failure the
// scratch directory is removed before returning; on success the caller owns
// it through Result.Cleanup.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	obs := req.Observer
	if obs == nil {
		obs = NopObserver{}
	}
	settings := config.Normalize(req.Settings)
	fidelity := req.Fidelity
	if fidelity == "" {
		fidelity = settings.Fidelity
	}
	if _, err := script.StyleFor(fidelity); err != nil {
		return Result{}, &StageError{Stage: domain.RunStatusResolving, Message: err.Error(), Err: err}
	}

	runID := req.RunID
	if runID == "" {
		runID = p.newID()
	}
	logger := zerolog.Ctx(ctx).With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx)

	scratch, err := p.mkdirTemp("", "viral-script-"+runID+"-*")
	if err != nil {
		return Result{}, &StageError{
			Stage:   domain.RunStatusResolving,
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}

	rec := &recorder{Observer: obs}
	result, err := p.run(ctx, req, settings, fidelity, scratch, rec)
	if err != nil {
		if rmErr := p.removeAll(scratch); rmErr != nil {
			logger.Warn().Err(rmErr).Str("dir", scratch).Msg("scratch cleanup failed")
		}
		logger.Error().Err(err).Msg("run failed")
		return Result{}, err
	}

	result.RunID = runID
	result.ScratchDir = scratch
	result.removeAll = p.removeAll
	result.Logs = rec.logs
	logger.Info().Str("provider", result.Transcript.Provider).Msg("run finished")
	return result, nil
}

func (p *Pipeline) run(
	ctx context.Context,
	req Request,
	settings domain.Settings,
	fidelity domain.Fidelity,
	scratch string,
	rec *recorder,
) (Result, error) {
	registry := p.providers(settings, req.Credentials)
	providers, err := transcribe.Ordered(settings.ProviderOrder, registry)
	if err != nil {
		return Result{}, &StageError{Stage: domain.RunStatusResolving, Message: err.Error(), Err: err}
	}
	generator, err := p.generator(settings, req.Credentials)
	if err != nil {
		return Result{}, &StageError{Stage: domain.RunStatusResolving, Message: err.Error(), Err: err}
	}

	rec.OnStage(domain.RunStatusResolving)
	src, err := p.resolver.Resolve(ctx, req.Reference, scratch, rec.OnCommand)
	if err != nil {
		return Result{}, &StageError{
			Stage:   domain.RunStatusResolving,
			Message: fmt.Sprintf("cannot resolve %s", req.Reference.Label()),
			Err:     err,
		}
	}

	rec.OnStage(domain.RunStatusTranscribing)
	tr, attempts, err := transcribe.NewChain(providers, p.normalizer).Run(ctx, src, rec)
	if err != nil {
		return Result{}, &StageError{Stage: domain.RunStatusTranscribing, Message: err.Error(), Err: err}
	}

	rec.OnStage(domain.RunStatusSynthesizing)
	input := tr.Text
	if settings.TimestampedPrompt && len(tr.Segments) > 0 {
		input = tr.TimestampedText()
	}
	doc, err := script.NewSynthesizer(generator, settings.MaxTokens).Synthesize(ctx, input, fidelity)
	if err != nil {
		return Result{}, &StageError{Stage: domain.RunStatusSynthesizing, Message: err.Error(), Err: err}
	}

	return Result{Transcript: tr, Script: doc, Attempts: attempts}, nil
}
