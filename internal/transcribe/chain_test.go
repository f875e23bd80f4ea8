package transcribe

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"viral-script-agent/internal/command"
	"viral-script-agent/internal/media"
)

// fakeProvider records invocations and returns scripted outcomes.
type fakeProvider struct {
	name      string
	available bool
	retry     bool
	results   []error
	calls     *[]string
}

func (f *fakeProvider) Name() string                    { return f.name }
func (f *fakeProvider) Available(*media.Source) bool    { return f.available }
func (f *fakeProvider) RetryAfterNormalize() bool       { return f.retry }
func (f *fakeProvider) Transcribe(ctx context.Context, src *media.Source, obs Observer) (Transcript, error) {
	n := 0
	for _, c := range *f.calls {
		if c == f.name {
			n++
		}
	}
	*f.calls = append(*f.calls, f.name)
	if n < len(f.results) && f.results[n] != nil {
		return Transcript{}, f.results[n]
	}
	return Transcript{Text: "from " + f.name}, nil
}

// fakeNormalizer counts conversions.
type fakeNormalizer struct {
	calls int
	err   error
}

func (n *fakeNormalizer) Normalize(ctx context.Context, in, outDir string, obs Observer) (string, error) {
	n.calls++
	if n.err != nil {
		return "", n.err
	}
	return outDir + "/normalized.wav", nil
}

// recordingObserver keeps every attempt it was told about.
type recordingObserver struct {
	attempts []Attempt
}

func (o *recordingObserver) OnProgress(int, string) {}
func (o *recordingObserver) OnAttempt(a Attempt) { o.attempts = append(o.attempts, a) }
func (o *recordingObserver) OnCommand(command.Log) {}

func failing(kind ErrorKind) error {
	return &ProviderError{Provider: "x", Kind: kind, Message: "boom"}
}

// TestChainStopsAtFirstSuccessForEveryPosition checks ordering for all failure permutations.
func TestChainStopsAtFirstSuccessForEveryPosition(t *testing.T) {
	names := []string{"captions", "hosted", "local"}
	for success := range names {
		t.Run(fmt.Sprintf("success_at_%s", names[success]), func(t *testing.T) {
			var calls []string
			providers := make([]Provider, 0, len(names))
			for i, name := range names {
				var results []error
				if i < success {
					results = []error{failing(KindTransport)}
				}
				providers = append(providers, &fakeProvider{name: name, available: true, results: results, calls: &calls})
			}

			tr, attempts, err := NewChain(providers, nil).Run(context.Background(), media.NewLocalSource("/a.wav"), nil)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if tr.Text != "from "+names[success] || tr.Provider != names[success] {
				t.Fatalf("transcript = %+v", tr)
			}
			if len(calls) != success+1 {
				t.Fatalf("calls = %v, want first %d providers", calls, success+1)
			}
			for i := range calls {
				if calls[i] != names[i] {
					t.Fatalf("calls = %v, want order %v", calls, names)
				}
			}
			if len(attempts) != success+1 || !attempts[success].Success {
				t.Fatalf("attempts = %+v", attempts)
			}
		})
	}
}

// TestChainThirdProviderResultOnly checks the result originates from the succeeding provider.
func TestChainThirdProviderResultOnly(t *testing.T) {
	var calls []string
	chain := NewChain([]Provider{
		&fakeProvider{name: "a", available: true, results: []error{failing(KindAuth)}, calls: &calls},
		&fakeProvider{name: "b", available: true, results: []error{failing(KindTransport)}, calls: &calls},
		&fakeProvider{name: "c", available: true, calls: &calls},
	}, nil)

	tr, attempts, err := chain.Run(context.Background(), media.NewLocalSource("/a.wav"), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if tr.Provider != "c" || tr.Text != "from c" {
		t.Fatalf("transcript = %+v, want from c", tr)
	}
	if attempts[0].Kind != KindAuth || attempts[1].Kind != KindTransport {
		t.Fatalf("attempt kinds = %+v", attempts)
	}
}

// TestChainAllFailReturnsChainError checks terminal failure diagnostics.
func TestChainAllFailReturnsChainError(t *testing.T) {
	var calls []string
	chain := NewChain([]Provider{
		&fakeProvider{name: "hosted", available: true, results: []error{failing(KindAuth)}, calls: &calls},
		&fakeProvider{name: "local", available: true, results: []error{failing(KindLocal)}, calls: &calls},
	}, nil)

	obs := &recordingObserver{}
	_, attempts, err := chain.Run(context.Background(), media.NewLocalSource("/a.wav"), obs)
	var cErr *ChainError
	if !errors.As(err, &cErr) {
		t.Fatalf("error = %v, want *ChainError", err)
	}
	if len(cErr.Attempts) != 2 || len(attempts) != 2 {
		t.Fatalf("attempts = %+v", cErr.Attempts)
	}
	if len(obs.attempts) != 2 {
		t.Fatalf("observer attempts = %d, want 2", len(obs.attempts))
	}
}

// TestChainSkipsUnavailableProviders checks skipped providers leave no attempt.
func TestChainSkipsUnavailableProviders(t *testing.T) {
	var calls []string
	chain := NewChain([]Provider{
		&fakeProvider{name: "captions", available: false, calls: &calls},
		&fakeProvider{name: "hosted", available: true, results: []error{failing(KindAuth)}, calls: &calls},
		&fakeProvider{name: "local", available: true, calls: &calls},
	}, nil)

	tr, attempts, err := chain.Run(context.Background(), media.NewLocalSource("/a.wav"), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if tr.Provider != "local" {
		t.Fatalf("provider = %q, want local", tr.Provider)
	}
	failures := 0
	for _, a := range attempts {
		if !a.Success {
			failures++
		}
	}
	if failures != 1 || len(attempts) != 2 {
		t.Fatalf("attempts = %+v, want one failure then success", attempts)
	}
	for _, c := range calls {
		if c == "captions" {
			t.Fatal("captions provider must not be invoked")
		}
	}
}

// TestChainNormalizationRetryHappensOnce checks the bounded re-attempt.
func TestChainNormalizationRetryHappensOnce(t *testing.T) {
	var calls []string
	local := &fakeProvider{
		name:      "local",
		available: true,
		retry:     true,
		results:   []error{failing(KindLocal), failing(KindLocal)},
		calls:     &calls,
	}
	norm := &fakeNormalizer{}
	src := media.NewLocalSource("/scratch/upload.mkv")
	src.ScratchDir = "/scratch"

	_, attempts, err := NewChain([]Provider{local}, norm).Run(context.Background(), src, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if norm.calls != 1 {
		t.Fatalf("normalizer calls = %d, want 1", norm.calls)
	}
	if len(calls) != 2 {
		t.Fatalf("local calls = %d, want 2", len(calls))
	}
	if len(attempts) != 2 || attempts[0].Normalized || !attempts[1].Normalized {
		t.Fatalf("attempts = %+v", attempts)
	}
	if p, _ := src.Audio(context.Background()); p != "/scratch/normalized.wav" {
		t.Fatalf("audio = %q, want normalized path", p)
	}

	// A missing model is not an audio problem: no ffmpeg pass, no second run.
	calls = nil
	noModel := &fakeProvider{
		name:      "local",
		available: true,
		retry:     true,
		results: []error{&ProviderError{
			Provider: "local",
			Kind:     KindLocal,
			Message:  "no model",
			Err:      fmt.Errorf("%w: no .bin or .gguf model files found in: /models", ErrModelNotFound),
		}},
		calls: &calls,
	}
	norm = &fakeNormalizer{}
	src = media.NewLocalSource("/scratch/upload.mkv")
	src.ScratchDir = "/scratch"

	_, attempts, err = NewChain([]Provider{noModel}, norm).Run(context.Background(), src, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if norm.calls != 0 || len(calls) != 1 || len(attempts) != 1 || attempts[0].Normalized {
		t.Fatalf("normalizer calls = %d, local calls = %d, attempts = %+v", norm.calls, len(calls), attempts)
	}
}

// TestChainNormalizationRetrySucceeds checks success after normalization.
func TestChainNormalizationRetrySucceeds(t *testing.T) {
	var calls []string
	local := &fakeProvider{name: "local", available: true, retry: true, results: []error{failing(KindLocal)}, calls: &calls}
	src := media.NewLocalSource("/scratch/upload.mkv")

	tr, attempts, err := NewChain([]Provider{local}, &fakeNormalizer{}).Run(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if tr.Provider != "local" {
		t.Fatalf("provider = %q", tr.Provider)
	}
	if len(attempts) != 2 || !attempts[1].Success || !attempts[1].Normalized {
		t.Fatalf("attempts = %+v", attempts)
	}
}

// TestChainNoNormalizationForNonLocalFailures checks retry eligibility.
func TestChainNoNormalizationForNonLocalFailures(t *testing.T) {
	var calls []string
	hosted := &fakeProvider{name: "hosted", available: true, results: []error{failing(KindAuth)}, calls: &calls}
	local := &fakeProvider{name: "local", available: true, retry: true, results: []error{&media.DownloadError{URL: "u", Message: "x"}}, calls: &calls}
	norm := &fakeNormalizer{}

	_, attempts, err := NewChain([]Provider{hosted, local}, norm).Run(context.Background(), media.NewLocalSource("/a.wav"), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if norm.calls != 0 {
		t.Fatalf("normalizer calls = %d, want 0", norm.calls)
	}
	if attempts[1].Kind != KindDownload {
		t.Fatalf("kind = %s, want download", attempts[1].Kind)
	}
}

// TestChainRecordsNormalizerFailure checks normalizer errors are reported.
func TestChainRecordsNormalizerFailure(t *testing.T) {
	var calls []string
	local := &fakeProvider{name: "local", available: true, retry: true, results: []error{failing(KindLocal)}, calls: &calls}
	norm := &fakeNormalizer{err: errors.New("ffmpeg missing")}

	_, attempts, err := NewChain([]Provider{local}, norm).Run(context.Background(), media.NewLocalSource("/a.mkv"), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(calls) != 1 {
		t.Fatalf("local calls = %d, want 1", len(calls))
	}
	if len(attempts) != 2 || attempts[1].Provider != "normalize" {
		t.Fatalf("attempts = %+v", attempts)
	}
}

// TestOrdered checks configured ordering and validation.
func TestOrdered(t *testing.T) {
	var calls []string
	registry := map[string]Provider{
		"captions": &fakeProvider{name: "captions", calls: &calls},
		"hosted":   &fakeProvider{name: "hosted", calls: &calls},
		"local":    &fakeProvider{name: "local", calls: &calls},
	}

	got, err := Ordered([]string{"local", " Hosted "}, registry)
	if err != nil {
		t.Fatalf("Ordered() error = %v", err)
	}
	if len(got) != 2 || got[0].Name() != "local" || got[1].Name() != "hosted" {
		t.Fatalf("ordered = %v", got)
	}

	if _, err := Ordered([]string{"local", "cloud"}, registry); err == nil {
		t.Fatal("expected unknown provider error")
	}
	if _, err := Ordered([]string{"local", "local"}, registry); err == nil {
		t.Fatal("expected duplicate provider error")
	}
	if _, err := Ordered(nil, registry); err == nil {
		t.Fatal("expected empty order error")
	}
}

// TestClassify maps wrapped errors to kinds.
func TestClassify(t *testing.T) {
	if got := Classify(fmt.Errorf("wrap: %w", failing(KindAuth))); got != KindAuth {
		t.Fatalf("kind = %s, want auth", got)
	}
	if got := Classify(&media.DownloadError{URL: "u"}); got != KindDownload {
		t.Fatalf("kind = %s, want download", got)
	}
	if got := Classify(errors.New("other")); got != KindTransport {
		t.Fatalf("kind = %s, want transport", got)
	}
}
