package transcribe

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"viral-script-agent/internal/domain"
	"viral-script-agent/internal/media"
)

// HostedProvider transcribes through the OpenAI audio transcription API.
type HostedProvider struct {
	apiKey   string
	baseURL  string
	model    string
	language string
	client   *openai.Client
}

// HostedOption configures a HostedProvider.
type HostedOption func(*HostedProvider)

// WithHostedModel sets the transcription model.
func WithHostedModel(model string) HostedOption {
	return func(p *HostedProvider) {
		p.model = model
	}
}

// WithHostedLanguage sets the spoken language hint ("auto" means none).
func WithHostedLanguage(lang string) HostedOption {
	return func(p *HostedProvider) {
		p.language = normalizeLanguage(lang)
	}
}

// WithHostedBaseURL points the client at a different API root.
func WithHostedBaseURL(url string) HostedOption {
	return func(p *HostedProvider) {
		p.baseURL = url
	}
}

// NewHostedProvider creates a provider bound to apiKey. The key is held by
// this instance only.
func NewHostedProvider(apiKey string, opts ...HostedOption) *HostedProvider {
	p := &HostedProvider{apiKey: strings.TrimSpace(apiKey)}
	for _, opt := range opts {
		opt(p)
	}
	if p.model == "" {
		p.model = openai.Whisper1
	}

	cfg := openai.DefaultConfig(p.apiKey)
	if p.baseURL != "" {
		cfg.BaseURL = p.baseURL
	}
	p.client = openai.NewClientWithConfig(cfg)
	return p
}

func (p *HostedProvider) Name() string { return domain.ProviderHosted }

// Available is always true; a missing key is reported as an auth failure.
func (p *HostedProvider) Available(*media.Source) bool { return true }

// Transcribe uploads the audio and requests timestamped segments.
func (p *HostedProvider) Transcribe(ctx context.Context, src *media.Source, obs Observer) (Transcript, error) {
	if p.apiKey == "" {
		return Transcript{}, &ProviderError{
			Provider: p.Name(),
			Kind:     KindAuth,
			Message:  "missing OpenAI API key",
		}
	}

	audioPath, err := src.Audio(ctx)
	if err != nil {
		return Transcript{}, err
	}

	emitProgress(obs, 0, "uploading audio to hosted transcription")
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: p.language,
	})
	if err != nil {
		return Transcript{}, &ProviderError{
			Provider: p.Name(),
			Kind:     classifyOpenAIError(err),
			Message:  "hosted transcription request failed",
			Err:      err,
		}
	}
	emitProgress(obs, 100, "hosted transcription finished")

	tr := Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Provider: p.Name(),
	}
	for _, s := range resp.Segments {
		tr.Segments = append(tr.Segments, Segment{
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}
	return tr, nil
}

// classifyOpenAIError separates auth/quota failures from transport failures.
func classifyOpenAIError(err error) ErrorKind {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests, http.StatusPaymentRequired:
		return KindAuth
	default:
		return KindTransport
	}
}
