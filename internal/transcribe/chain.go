package transcribe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"viral-script-agent/internal/media"
)

// Attempt records one provider invocation for fallback decisions and diagnostics.
type Attempt struct {
	Provider   string    `json:"provider"`
	Success    bool      `json:"success"`
	Kind       ErrorKind `json:"kind,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Normalized bool      `json:"normalized,omitempty"`
}

// ChainError is the terminal failure returned when every provider failed.
type ChainError struct {
	Attempts []Attempt
}

// Error lists every failed attempt in order.
func (e *ChainError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Attempts) == 0 {
		return "no transcription provider was available"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s [%s]: %s", a.Provider, a.Kind, a.Detail))
	}
	return "all transcription providers failed: " + strings.Join(parts, "; ")
}

// Normalizer converts a media file into audio every provider can read.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath, outDir string, obs Observer) (string, error)
}

// normalizedRetrier marks providers worth one more try on normalized audio.
type normalizedRetrier interface {
	RetryAfterNormalize() bool
}

// Chain tries providers in a fixed order and stops at the first success.
type Chain struct {
	providers  []Provider
	normalizer Normalizer
}

// NewChain builds a chain over providers in the given order. normalizer may be nil.
func NewChain(providers []Provider, normalizer Normalizer) *Chain {
	return &Chain{providers: providers, normalizer: normalizer}
}

// Ordered arranges registered providers by configured names. Unknown or
// repeated names are configuration errors.
func Ordered(order []string, registry map[string]Provider) ([]Provider, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("provider order is empty")
	}
	seen := make(map[string]struct{}, len(order))
	out := make([]Provider, 0, len(order))
	for _, raw := range order {
		name := strings.ToLower(strings.TrimSpace(raw))
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("provider listed twice: %s", name)
		}
		seen[name] = struct{}{}
		p, ok := registry[name]
		if !ok || p == nil {
			return nil, fmt.Errorf("unknown transcription provider: %s", name)
		}
		out = append(out, p)
	}
	return out, nil
}

// Run returns the transcript of the first provider that succeeds together
// with every attempt made. When all fail the error is a *ChainError.
func (c *Chain) Run(ctx context.Context, src *media.Source, obs Observer) (Transcript, []Attempt, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	logger := zerolog.Ctx(ctx)
	var attempts []Attempt

	record := func(a Attempt) {
		attempts = append(attempts, a)
		obs.OnAttempt(a)
	}

	for _, p := range c.providers {
		if !p.Available(src) {
			logger.Debug().Str("provider", p.Name()).Msg("provider not applicable, skipped")
			continue
		}

		tr, err := c.try(ctx, p, src, obs, false, record)
		if err == nil {
			return tr, attempts, nil
		}

		if !c.shouldNormalize(p, src, err) {
			continue
		}
		if !c.normalize(ctx, src, obs, record) {
			continue
		}
		tr, err = c.try(ctx, p, src, obs, true, record)
		if err == nil {
			return tr, attempts, nil
		}
	}

	return Transcript{}, attempts, &ChainError{Attempts: attempts}
}

// try invokes one provider and records the attempt.
func (c *Chain) try(ctx context.Context, p Provider, src *media.Source, obs Observer, normalized bool, record func(Attempt)) (Transcript, error) {
	logger := zerolog.Ctx(ctx).With().Str("provider", p.Name()).Bool("normalized", normalized).Logger()
	logger.Info().Msg("transcription attempt")

	tr, err := p.Transcribe(ctx, src, obs)
	if err != nil {
		kind := Classify(err)
		logger.Warn().Err(err).Str("kind", string(kind)).Msg("transcription attempt failed")
		record(Attempt{
			Provider:   p.Name(),
			Kind:       kind,
			Detail:     err.Error(),
			Normalized: normalized,
		})
		return Transcript{}, err
	}

	if tr.Provider == "" {
		tr.Provider = p.Name()
	}
	if tr.Text == "" {
		tr.Text = joinSegments(tr.Segments)
	}
	record(Attempt{Provider: p.Name(), Success: true, Normalized: normalized})
	logger.Info().Int("segments", len(tr.Segments)).Msg("transcription attempt succeeded")
	return tr, nil
}

// shouldNormalize allows the single post-normalization retry.
func (c *Chain) shouldNormalize(p Provider, src *media.Source, err error) bool {
	if c.normalizer == nil || src.Normalized() {
		return false
	}
	r, ok := p.(normalizedRetrier)
	if !ok || !r.RetryAfterNormalize() {
		return false
	}
	return Classify(err) == KindLocal && !errors.Is(err, ErrModelNotFound)
}

// normalize replaces the source audio with a normalized copy. Failures are
// recorded as an attempt of the normalizer itself.
func (c *Chain) normalize(ctx context.Context, src *media.Source, obs Observer, record func(Attempt)) bool {
	audio, err := src.Audio(ctx)
	if err != nil {
		return false
	}
	outDir := src.ScratchDir
	if outDir == "" {
		outDir = filepath.Dir(audio)
	}

	out, err := c.normalizer.Normalize(ctx, audio, outDir, obs)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("audio normalization failed")
		record(Attempt{Provider: "normalize", Kind: KindLocal, Detail: err.Error()})
		return false
	}
	src.ReplaceAudio(out)
	return true
}
