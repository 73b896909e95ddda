package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/ArticleDigest/internal/config"
)

type candidate struct {
	Title     string   `json:"title"`
	KeyPoints []string `json:"key_points"`
}

func TestDecodeJSONPlain(t *testing.T) {
	var c candidate
	if err := DecodeJSON(`{"title": "Foo", "key_points": ["a", "b"]}`, &c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Title != "Foo" || len(c.KeyPoints) != 2 {
		t.Errorf("unexpected result %+v", c)
	}
}

func TestDecodeJSONWithCodeFence(t *testing.T) {
	var c candidate
	if err := DecodeJSON("```json\n{\"title\": \"Foo\"}\n```", &c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Title != "Foo" {
		t.Errorf("expected title Foo, got %q", c.Title)
	}
}

func TestDecodeJSONWithPlainFence(t *testing.T) {
	var c candidate
	if err := DecodeJSON("```\n{\"title\": \"Foo\"}\n```", &c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Title != "Foo" {
		t.Errorf("expected title Foo, got %q", c.Title)
	}
}

func TestDecodeJSONWithSurroundingProse(t *testing.T) {
	var c candidate
	text := "Here is the summary you asked for:\n{\"title\": \"Foo\"}\nLet me know if you need more."
	if err := DecodeJSON(text, &c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Title != "Foo" {
		t.Errorf("expected title Foo, got %q", c.Title)
	}
}

func TestDecodeJSONInvalid(t *testing.T) {
	var c candidate
	if err := DecodeJSON("not json at all", &c); err == nil {
		t.Error("expected error for text without JSON")
	}
	if err := DecodeJSON("{not: valid}", &c); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestDecodeJSONEmpty(t *testing.T) {
	var c candidate
	if err := DecodeJSON("  \n ", &c); err == nil {
		t.Error("expected error for empty response")
	}
}

func TestStripCodeFenceLeavesPlainText(t *testing.T) {
	if got := StripCodeFence("  {\"a\":1}  "); got != `{"a":1}` {
		t.Errorf("unexpected result %q", got)
	}
}

func TestOpenAIProviderGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"title\":\"Foo\"}"}}]}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_LLM_KEY", "test-key")
	p := NewOpenAIProvider("test-model", srv.URL+"/v1/", "TEST_LLM_KEY")
	if !p.IsConfigured() {
		t.Fatal("expected provider to be configured")
	}

	out, err := p.Generate(context.Background(), "summarize this", 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"title":"Foo"}` {
		t.Errorf("unexpected output %q", out)
	}
	if got["model"] != "test-model" {
		t.Errorf("unexpected model %v", got["model"])
	}
	if got["max_tokens"] != float64(256) {
		t.Errorf("unexpected max_tokens %v", got["max_tokens"])
	}
	format, _ := got["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("expected json_object response format, got %v", got["response_format"])
	}
}

func TestOpenAIProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	t.Setenv("TEST_LLM_KEY", "test-key")
	p := NewOpenAIProvider("m", srv.URL, "TEST_LLM_KEY")
	_, err := p.Generate(context.Background(), "x", 10)
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestOpenAIProviderNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_LLM_KEY", "test-key")
	p := NewOpenAIProvider("m", srv.URL, "TEST_LLM_KEY")
	if _, err := p.Generate(context.Background(), "x", 10); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIProviderWithoutKey(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "")
	p := NewOpenAIProvider("m", "", "TEST_LLM_KEY")
	if p.IsConfigured() {
		t.Error("expected provider without key to be unconfigured")
	}
	if p.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("unexpected default base url %q", p.BaseURL)
	}
	if _, err := p.Generate(context.Background(), "x", 10); err == nil {
		t.Error("expected error without API key")
	}
}

func TestOllamaProviderGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"qwen2.5:7b"}]}`))
		case "/api/chat":
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decoding request: %v", err)
			}
			_, _ = w.Write([]byte(`{"message":{"content":"{\"title\":\"Bar\"}"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider("qwen2.5:7b", srv.URL)
	if !p.IsConfigured() {
		t.Fatal("expected ollama provider to be configured")
	}

	out, err := p.Generate(context.Background(), "summarize", 128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"title":"Bar"}` {
		t.Errorf("unexpected output %q", out)
	}
	if got["format"] != "json" {
		t.Errorf("expected json format, got %v", got["format"])
	}
	if got["stream"] != false {
		t.Errorf("expected non-streaming request, got %v", got["stream"])
	}
}

func TestOllamaProviderMissingModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:8b"}]}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider("qwen2.5:7b", srv.URL)
	if p.IsConfigured() {
		t.Error("expected provider to be unconfigured when model is missing")
	}
}

func TestCohereProviderRequiresKey(t *testing.T) {
	t.Setenv("TEST_COHERE_KEY", "")
	p := NewCohereProvider("command-r", "TEST_COHERE_KEY")
	if p.IsConfigured() {
		t.Error("expected provider without key to be unconfigured")
	}
	if _, err := p.Generate(context.Background(), "x", 10); err == nil {
		t.Error("expected error without API key")
	}

	t.Setenv("TEST_COHERE_KEY", "k")
	if !NewCohereProvider("command-r", "TEST_COHERE_KEY").IsConfigured() {
		t.Error("expected provider with key to be configured")
	}
}

func TestCreateProviderSelection(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	t.Setenv("TEST_COHERE_KEY", "co-test")
	t.Setenv("DEEPSEEK_API_KEY", "ds-test")

	cfg := config.Summarization{
		OpenAIModel:     "gpt-4o-mini",
		APIKeyEnv:       "TEST_OPENAI_KEY",
		CohereModel:     "command-r",
		CohereAPIKeyEnv: "TEST_COHERE_KEY",
	}

	cfg.Provider = "openai"
	if _, ok := CreateProvider(cfg).(*OpenAIProvider); !ok {
		t.Error("expected OpenAI provider")
	}

	cfg.Provider = "cohere"
	if _, ok := CreateProvider(cfg).(*CohereProvider); !ok {
		t.Error("expected Cohere provider")
	}

	cfg.Provider = "deepseek"
	p, ok := CreateProvider(cfg).(*OpenAIProvider)
	if !ok {
		t.Fatal("expected OpenAI-compatible provider for deepseek")
	}
	if p.BaseURL != deepSeekBaseURL || p.Model != deepSeekModel {
		t.Errorf("unexpected deepseek preset %+v", p)
	}
}

func TestCreateProviderOllamaFallsBackToOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	cfg := config.Summarization{
		Provider:    "ollama",
		Model:       "qwen2.5:7b",
		OllamaURL:   srv.URL,
		OpenAIModel: "gpt-4o-mini",
		APIKeyEnv:   "TEST_OPENAI_KEY",
	}
	if _, ok := CreateProvider(cfg).(*OpenAIProvider); !ok {
		t.Error("expected fallback to OpenAI provider")
	}

	t.Setenv("TEST_OPENAI_KEY", "")
	if p := CreateProvider(cfg); p != nil {
		t.Errorf("expected nil provider, got %T", p)
	}
}

func TestProvidersLeaveDeadlineToContext(t *testing.T) {
	if c := NewOllamaProvider("qwen2.5:7b", "http://localhost:11434").client; c.Timeout != 0 {
		t.Errorf("expected no fixed ollama client timeout, got %v", c.Timeout)
	}
	if c := NewOpenAIProvider("gpt-4o-mini", "", "TEST_OPENAI_KEY").client; c.Timeout != 0 {
		t.Errorf("expected no fixed openai client timeout, got %v", c.Timeout)
	}
}

func TestOpenAIProviderHonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	p := NewOpenAIProvider("gpt-4o-mini", srv.URL, "TEST_OPENAI_KEY")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := p.Generate(ctx, "summarize", 64); err == nil {
		t.Fatal("expected error when the deadline passes")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("expected Generate to stop at the context deadline, took %v", elapsed)
	}
}
