package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/graphflow/errors"
	"github.com/kbukum/graphflow/logger"
	"github.com/kbukum/graphflow/resilience"
)

type fakeCompleter struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, req CompletionRequest) (string, error)
}

func (f *fakeCompleter) Name() string { return f.name }

func (f *fakeCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	f.calls.Add(1)
	return f.fn(ctx, req)
}

func testConfig() Config {
	return Config{
		Provider: ProviderEcho,
		Retry:    resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	}
}

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Provider != ProviderAnthropic || cfg.Model != DefaultModel {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Timeout != DefaultTimeout || cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("unexpected timeout/retry defaults %+v", cfg)
	}
	if cfg.OpenAI.APIKey != "sk-env" {
		t.Fatalf("expected api key from env, got %q", cfg.OpenAI.APIKey)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}

	openaiCfg := Config{Provider: ProviderOpenAI}
	openaiCfg.ApplyDefaults()
	if openaiCfg.Model != "" {
		t.Fatalf("expected no global model for openai, got %q", openaiCfg.Model)
	}
	if got := openaiCfg.modelFor(ProviderOpenAI, openaiCfg.OpenAI, DefaultOpenAIModel); got != DefaultOpenAIModel {
		t.Fatalf("expected %s, got %s", DefaultOpenAIModel, got)
	}

	bad := Config{Provider: "cohere"}
	bad.ApplyDefaults()
	if err := bad.Validate(); err == nil {
		t.Fatal("expected unknown provider to fail validation")
	}
}

func TestEcho(t *testing.T) {
	got, err := Echo{}.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "sys",
		Messages:     []Message{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}},
	})
	if err != nil || got != "a" {
		t.Fatalf("expected a, got %q, %v", got, err)
	}
	got, _ = Echo{}.Complete(context.Background(), CompletionRequest{SystemPrompt: "sys"})
	if got != "sys" {
		t.Fatalf("expected system prompt fallback, got %q", got)
	}
}

func TestOpenAI_Complete(t *testing.T) {
	var received struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAI(ProviderConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, "gpt-test", 0)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	got, err := p.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "be brief",
		Messages:     []Message{{Role: RoleUser, Content: "ping"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "pong" {
		t.Fatalf("expected pong, got %q", got)
	}
	if received.Model != "gpt-test" || len(received.Messages) != 2 || received.Messages[0].Role != "system" {
		t.Fatalf("unexpected request %+v", received)
	}
}

func TestOpenAI_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	p, err := NewOpenAI(ProviderConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, "gpt-test", 0)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	_, err = p.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	if !errors.HasCode(err, errors.ErrCodeUpstream) {
		t.Fatalf("expected UPSTREAM_ERROR, got %v", err)
	}
}

func TestProviders_MissingKey(t *testing.T) {
	if _, err := NewOpenAI(ProviderConfig{}, "m", 0); err == nil {
		t.Fatal("expected missing openai key error")
	}
	if _, err := NewAnthropic(ProviderConfig{}, "m", 0); err == nil {
		t.Fatal("expected missing anthropic key error")
	}
	a, err := NewAnthropic(ProviderConfig{APIKey: "k"}, DefaultModel, 0)
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	if a.Name() != ProviderAnthropic || a.maxTokens != DefaultAnthropicTokens {
		t.Fatalf("unexpected anthropic provider %+v", a)
	}
}

func TestRouter_DefaultAndNamed(t *testing.T) {
	r := NewRouter(testConfig(), WithLogger(logger.Nop()))
	if r.DefaultProvider() != ProviderEcho {
		t.Fatalf("expected echo default, got %s", r.DefaultProvider())
	}
	got, err := r.Complete(context.Background(), "", CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil || got != "hi" {
		t.Fatalf("expected hi, got %q, %v", got, err)
	}

	c1, _ := r.Completer(ProviderEcho)
	c2, _ := r.Completer("")
	if c1 != c2 {
		t.Fatal("expected providers to be cached")
	}

	if _, err := r.Completer("cohere"); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for unknown provider, got %v", err)
	}
}

func TestRouter_UnavailableProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	r := NewRouter(testConfig(), WithLogger(logger.Nop()))
	_, err := r.Completer(ProviderOpenAI)
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeUpstream || appErr.Retryable {
		t.Fatalf("expected non-retryable UPSTREAM_ERROR, got %v", err)
	}
}

func TestRouter_RetriesUpstream(t *testing.T) {
	fake := &fakeCompleter{name: "flaky"}
	fake.fn = func(context.Context, CompletionRequest) (string, error) {
		if fake.calls.Load() < 3 {
			return "", errors.Upstream("flaky", stderrors.New("503"))
		}
		return "ok", nil
	}
	r := NewRouter(testConfig(), WithProvider(fake), WithLogger(logger.Nop()))

	got, err := r.Complete(context.Background(), "flaky", CompletionRequest{})
	if err != nil || got != "ok" {
		t.Fatalf("expected ok after retries, got %q, %v", got, err)
	}
	if fake.calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", fake.calls.Load())
	}
}

func TestRouter_DoesNotRetryInvalidInput(t *testing.T) {
	fake := &fakeCompleter{name: "strict", fn: func(context.Context, CompletionRequest) (string, error) {
		return "", errors.InvalidInput("model", "unknown")
	}}
	r := NewRouter(testConfig(), WithProvider(fake), WithLogger(logger.Nop()))
	if _, err := r.Complete(context.Background(), "strict", CompletionRequest{}); err == nil {
		t.Fatal("expected error")
	}
	if fake.calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", fake.calls.Load())
	}
}

func TestWithTimeout(t *testing.T) {
	slow := &fakeCompleter{name: "slow", fn: func(ctx context.Context, _ CompletionRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	_, err := WithTimeout(slow, 5*time.Millisecond).Complete(context.Background(), CompletionRequest{})
	if !errors.HasCode(err, errors.ErrCodeTimeout) {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = WithTimeout(slow, time.Second).Complete(ctx, CompletionRequest{})
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("expected parent cancellation to pass through, got %v", err)
	}
}

func TestWithRateLimit(t *testing.T) {
	fake := &fakeCompleter{name: "f", fn: func(context.Context, CompletionRequest) (string, error) { return "x", nil }}
	limited := WithRateLimit(fake, resilience.NewLimiter(resilience.LimiterConfig{RequestsPerSecond: 1, Burst: 1}))
	if _, err := limited.Complete(context.Background(), CompletionRequest{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := limited.Complete(ctx, CompletionRequest{}); err == nil {
		t.Fatal("expected second call to be limited")
	}
	if fake.calls.Load() != 1 {
		t.Fatalf("expected limited call not to reach the provider, got %d calls", fake.calls.Load())
	}
}

func TestRegisterProvider(t *testing.T) {
	RegisterProvider("static", func(*Config) (Completer, error) {
		return &fakeCompleter{name: "static", fn: func(context.Context, CompletionRequest) (string, error) { return "s", nil }}, nil
	})
	r := NewRouter(testConfig(), WithLogger(logger.Nop()))
	got, err := r.Complete(context.Background(), "static", CompletionRequest{})
	if err != nil || got != "s" {
		t.Fatalf("expected s, got %q, %v", got, err)
	}
	found := false
	for _, name := range Providers() {
		if name == "static" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected registered provider to be listed")
	}
}
