package script

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"viral-script-agent/internal/domain"
)

// fakeGenerator records calls and returns a scripted outcome.
type fakeGenerator struct {
	calls   int
	prompt  string
	params  Params
	content string
	err     error
}

func (f *fakeGenerator) Name() string  { return "fake" }
func (f *fakeGenerator) Model() string { return "fake-model" }
func (f *fakeGenerator) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	f.calls++
	f.prompt = prompt
	f.params = params
	return f.content, f.err
}

// TestBuildPromptEmbedsTranscriptVerbatim checks template sections and interpolation.
func TestBuildPromptEmbedsTranscriptVerbatim(t *testing.T) {
	transcript := "linha 1\n  <b>linha & 2</b> {{.Nada}}"
	prompt, err := BuildPrompt(transcript, domain.FidelityBalanced)
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}

	if !strings.HasSuffix(strings.TrimRight(prompt, "\n"), transcript) {
		t.Fatalf("prompt does not end with transcript verbatim:\n%s", prompt)
	}
	for _, section := range []string{
		"5 segundos iniciais",
		"30 segundos de contexto",
		"90 segundos alternando",
		"Resposta superando expectativas",
		"Opinião final",
		"Fechamento (CTA)",
		"máx. 60 caracteres",
		"Ideia de Thumbnail",
		"com minutagem",
		"Sugestões de edição",
		"Regras de fidelidade (balanced)",
	} {
		if !strings.Contains(prompt, section) {
			t.Fatalf("prompt missing %q", section)
		}
	}
}

// TestBuildPromptEmptyTranscript checks an empty transcript is still well formed.
func TestBuildPromptEmptyTranscript(t *testing.T) {
	prompt, err := BuildPrompt("", domain.FidelityStrict)
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if !strings.Contains(prompt, "Transcrição:") || !strings.Contains(prompt, "Não invente") {
		t.Fatalf("prompt = %q", prompt)
	}
}

// TestBuildPromptFidelityRulesDiffer checks each level carries its own rules.
func TestBuildPromptFidelityRulesDiffer(t *testing.T) {
	strict, _ := BuildPrompt("x", domain.FidelityStrict)
	creative, _ := BuildPrompt("x", domain.FidelityCreative)
	if strict == creative {
		t.Fatal("strict and creative prompts must differ")
	}
	if _, err := BuildPrompt("x", domain.Fidelity("wild")); err == nil {
		t.Fatal("expected error for unknown fidelity")
	}
}

// TestSynthesizeTemperatures checks the per-fidelity temperature and token cap.
func TestSynthesizeTemperatures(t *testing.T) {
	tests := []struct {
		fidelity domain.Fidelity
		want     float32
	}{
		{domain.FidelityStrict, 0.3},
		{domain.FidelityBalanced, 0.7},
		{domain.FidelityCreative, 0.9},
	}

	for _, tc := range tests {
		t.Run(string(tc.fidelity), func(t *testing.T) {
			gen := &fakeGenerator{content: "roteiro"}
			doc, err := NewSynthesizer(gen, 0).Synthesize(context.Background(), "texto", tc.fidelity)
			if err != nil {
				t.Fatalf("Synthesize() error = %v", err)
			}
			if gen.params.Temperature != tc.want {
				t.Fatalf("temperature = %v, want %v", gen.params.Temperature, tc.want)
			}
			if gen.params.MaxTokens != DefaultMaxTokens {
				t.Fatalf("max tokens = %d, want %d", gen.params.MaxTokens, DefaultMaxTokens)
			}
			if doc.Content != "roteiro" || doc.Fidelity != tc.fidelity || doc.Backend != "fake" || doc.Model != "fake-model" {
				t.Fatalf("document = %+v", doc)
			}
		})
	}
}

// TestSynthesizeNoCaching checks identical transcripts call the service every time.
func TestSynthesizeNoCaching(t *testing.T) {
	gen := &fakeGenerator{content: "ok"}
	s := NewSynthesizer(gen, 512)
	for i := 0; i < 2; i++ {
		if _, err := s.Synthesize(context.Background(), "mesmo texto", domain.FidelityBalanced); err != nil {
			t.Fatalf("Synthesize() error = %v", err)
		}
	}
	if gen.calls != 2 {
		t.Fatalf("generator calls = %d, want 2", gen.calls)
	}
	if gen.params.MaxTokens != 512 {
		t.Fatalf("max tokens = %d, want 512", gen.params.MaxTokens)
	}
}

// TestSynthesizeFailureSurfacesOnce checks no retry on service failure.
func TestSynthesizeFailureSurfacesOnce(t *testing.T) {
	quota := errors.New("quota exceeded")
	gen := &fakeGenerator{err: quota}
	_, err := NewSynthesizer(gen, 0).Synthesize(context.Background(), "texto", domain.FidelityBalanced)
	if !errors.Is(err, quota) {
		t.Fatalf("error = %v, want wrapped quota error", err)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", gen.calls)
	}
}

// TestOpenAIGeneratorChatCompletion checks request shape against a fake API.
func TestOpenAIGeneratorChatCompletion(t *testing.T) {
	var req struct {
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"# Roteiro"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator("sk-test", "", srv.URL+"/v1")
	got, err := gen.Generate(context.Background(), "prompt", Params{Temperature: 0.3, MaxTokens: 100})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "# Roteiro" {
		t.Fatalf("content = %q", got)
	}
	if req.Model != "gpt-4o-mini" || req.MaxTokens != 100 || req.Temperature != 0.3 {
		t.Fatalf("request = %+v", req)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "prompt" {
		t.Fatalf("messages = %+v", req.Messages)
	}
}

// TestOpenAIGeneratorUnauthorized checks service errors are returned.
func TestOpenAIGeneratorUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIGenerator("sk-bad", "", srv.URL+"/v1").Generate(context.Background(), "p", Params{})
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("error = %v", err)
	}
}

// TestGeneratorsRequireKey checks no call is attempted without credentials.
func TestGeneratorsRequireKey(t *testing.T) {
	if _, err := NewOpenAIGenerator("", "", "").Generate(context.Background(), "p", Params{}); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("openai error = %v", err)
	}
	if _, err := NewGeminiGenerator(" ", "").Generate(context.Background(), "p", Params{}); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("gemini error = %v", err)
	}
}

// TestGeminiText checks candidate text extraction.
func TestGeminiText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Gancho "), genai.Text("forte")}},
		}},
	}
	got, err := geminiText(resp)
	if err != nil || got != "Gancho forte" {
		t.Fatalf("geminiText() = %q, %v", got, err)
	}
	if _, err := geminiText(&genai.GenerateContentResponse{}); err == nil {
		t.Fatal("expected error for empty response")
	}
}
