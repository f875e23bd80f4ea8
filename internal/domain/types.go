package domain

import (
	"fmt"
	"strings"
	"time"
)

// RunStatus tracks each pipeline stage for a single script run.
type RunStatus string

const (
	RunStatusIdle         RunStatus = "idle"
	RunStatusResolving    RunStatus = "resolving"
	RunStatusTranscribing RunStatus = "transcribing"
	RunStatusSynthesizing RunStatus = "synthesizing"
	RunStatusExporting    RunStatus = "exporting"
	RunStatusDone         RunStatus = "done"
	RunStatusFailed       RunStatus = "failed"
)

// Fidelity controls how strictly the rewrite preserves source facts.
type Fidelity string

const (
	FidelityStrict   Fidelity = "strict"
	FidelityBalanced Fidelity = "balanced"
	FidelityCreative Fidelity = "creative"
)

// ParseFidelity maps user input to a fidelity level; empty means balanced.
func ParseFidelity(raw string) (Fidelity, error) {
	switch Fidelity(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FidelityBalanced:
		return FidelityBalanced, nil
	case FidelityStrict, "strict-fidelity":
		return FidelityStrict, nil
	case FidelityCreative:
		return FidelityCreative, nil
	default:
		return "", fmt.Errorf("unknown fidelity: %q (want strict, balanced or creative)", raw)
	}
}

// Generative backends for script synthesis.
const (
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
)

// Transcription provider names accepted in Settings.ProviderOrder.
const (
	ProviderCaptions = "captions"
	ProviderHosted   = "hosted"
	ProviderLocal    = "local"
)

// Settings contains user-selectable runtime configuration. Credentials are
// deliberately absent; they are supplied per run and never persisted.
type Settings struct {
	OutputDir         string   `json:"outputDir"`
	ModelPath         string   `json:"modelPath"`
	ModelTier         string   `json:"modelTier"`
	Language          string   `json:"language"`
	CaptionLanguage   string   `json:"captionLanguage"`
	ProviderOrder     []string `json:"providerOrder"`
	HostedModel       string   `json:"hostedModel"`
	Backend           string   `json:"backend"`
	ChatModel         string   `json:"chatModel"`
	MaxTokens         int      `json:"maxTokens"`
	Fidelity          Fidelity `json:"fidelity"`
	TimestampedPrompt bool     `json:"timestampedPrompt"`
}

// Run stores the current run identity and lifecycle status.
type Run struct {
	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	Source    string    `json:"source,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty"`
}
