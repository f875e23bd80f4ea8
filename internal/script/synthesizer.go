package script

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"viral-script-agent/internal/domain"
)

// DefaultMaxTokens bounds the response length when settings leave it unset.
const DefaultMaxTokens = 2048

// Document is the generated script. Content is never parsed.
type Document struct {
	Content     string          `json:"content"`
	Fidelity    domain.Fidelity `json:"fidelity"`
	Backend     string          `json:"backend"`
	Model       string          `json:"model"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// Synthesizer rewrites transcripts into viral scripts.
type Synthesizer struct {
	generator Generator
	maxTokens int
	now       func() time.Time
}

// NewSynthesizer wraps generator. maxTokens <= 0 uses DefaultMaxTokens.
func NewSynthesizer(generator Generator, maxTokens int) *Synthesizer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Synthesizer{generator: generator, maxTokens: maxTokens, now: time.Now}
}

// Synthesize makes exactly one generator call. Failures are returned as is;
// there is no retry and no caching.
func (s *Synthesizer) Synthesize(ctx context.Context, transcript string, fidelity domain.Fidelity) (Document, error) {
	style, err := StyleFor(fidelity)
	if err != nil {
		return Document{}, err
	}
	prompt, err := BuildPrompt(transcript, fidelity)
	if err != nil {
		return Document{}, err
	}

	logger := zerolog.Ctx(ctx).With().
		Str("backend", s.generator.Name()).
		Str("model", s.generator.Model()).
		Str("fidelity", string(fidelity)).
		Logger()
	logger.Info().Int("prompt_chars", len(prompt)).Msg("script generation started")

	content, err := s.generator.Generate(ctx, prompt, Params{
		Temperature: style.Temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return Document{}, fmt.Errorf("%s script generation: %w", s.generator.Name(), err)
	}
	logger.Info().Int("script_chars", len(content)).Msg("script generation finished")

	return Document{
		Content:     content,
		Fidelity:    fidelity,
		Backend:     s.generator.Name(),
		Model:       s.generator.Model(),
		GeneratedAt: s.now(),
	}, nil
}
