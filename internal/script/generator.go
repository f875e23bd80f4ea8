package script

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"
)

// Params are the sampling limits of one generation call.
type Params struct {
	Temperature float32
	MaxTokens   int
}

// Generator issues one synchronous call to a generative text service.
type Generator interface {
	Name() string
	Model() string
	Generate(ctx context.Context, prompt string, params Params) (string, error)
}

// ErrMissingKey is returned when a generator has no credential.
var ErrMissingKey = errors.New("missing API key")

// OpenAIGenerator uses the chat completions API.
type OpenAIGenerator struct {
	apiKey string
	model  string
	client *openai.Client
}

// NewOpenAIGenerator binds a chat client to apiKey. baseURL may be empty.
func NewOpenAIGenerator(apiKey, model, baseURL string) *OpenAIGenerator {
	apiKey = strings.TrimSpace(apiKey)
	if model == "" {
		model = openai.GPT4oMini
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIGenerator{apiKey: apiKey, model: model, client: openai.NewClientWithConfig(cfg)}
}

func (g *OpenAIGenerator) Name() string  { return "openai" }
func (g *OpenAIGenerator) Model() string { return g.model }

// Generate sends prompt as a single user message.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("openai: %w", ErrMissingKey)
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GeminiGenerator uses the Google Generative Language API.
type GeminiGenerator struct {
	apiKey string
	model  string
	opts   []option.ClientOption
}

// NewGeminiGenerator binds a Gemini model to apiKey. Extra client options
// are appended after the key.
func NewGeminiGenerator(apiKey, model string, opts ...option.ClientOption) *GeminiGenerator {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiGenerator{apiKey: strings.TrimSpace(apiKey), model: model, opts: opts}
}

func (g *GeminiGenerator) Name() string  { return "gemini" }
func (g *GeminiGenerator) Model() string { return g.model }

// Generate opens a client for the call and closes it afterwards.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("gemini: %w", ErrMissingKey)
	}

	opts := append([]option.ClientOption{option.WithAPIKey(g.apiKey)}, g.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SetTemperature(params.Temperature)
	if params.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(params.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return geminiText(resp)
}

// geminiText concatenates the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("gemini candidate has no text")
	}
	return b.String(), nil
}
