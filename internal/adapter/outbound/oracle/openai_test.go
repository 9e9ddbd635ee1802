package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenAIClientComplete(t *testing.T) {
	var gotReq openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  {\"answer\": \"No\"}  "}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o"}, testLogger())
	got, err := c.Complete(context.Background(), []outbound.Message{
		outbound.SystemMessage("You are a watcher."),
		outbound.UserMessage("Check this."),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"answer": "No"}` {
		t.Errorf("Complete = %q", got)
	}
	if gotReq.Model != "gpt-4o" || len(gotReq.Messages) != 2 {
		t.Errorf("request = %+v", gotReq)
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Name != "user" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestOpenAIClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	var retries atomic.Int32
	c := NewOpenAIClient(OpenAIConfig{
		APIKey: "k", BaseURL: srv.URL, Model: "m",
		OnRetry: func() { retries.Add(1) },
	}, testLogger())
	got, err := c.Complete(context.Background(), []outbound.Message{outbound.UserMessage("hi")})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "ok" || calls.Load() != 2 {
		t.Errorf("got %q after %d calls", got, calls.Load())
	}
	if retries.Load() != 1 {
		t.Errorf("retry callback fired %d times, want 1", retries.Load())
	}
}

func TestOpenAIClientClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"}, testLogger())
	_, err := c.Complete(context.Background(), []outbound.Message{outbound.UserMessage("hi")})
	if !errors.Is(err, ErrOracleTransport) {
		t.Fatalf("err = %v, want ErrOracleTransport", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestResolvePicksProviderByModelName(t *testing.T) {
	ctx := context.Background()
	creds := Credentials{OpenAIKey: "o", AnthropicKey: "a", GeminiKey: "g", OpenRouterKey: "r"}

	o, err := Resolve(ctx, "claude-sonnet-4-5", creds, 0, nil, testLogger())
	if err != nil {
		t.Fatalf("Resolve claude: %v", err)
	}
	if _, ok := o.(*AnthropicClient); !ok {
		t.Errorf("claude resolved to %T, want *AnthropicClient", o)
	}

	o, err = Resolve(ctx, "gpt-4o-mini", creds, 0, nil, testLogger())
	if err != nil {
		t.Fatalf("Resolve gpt: %v", err)
	}
	if _, ok := o.(*OpenAIClient); !ok {
		t.Errorf("gpt resolved to %T, want *OpenAIClient", o)
	}

	o, err = Resolve(ctx, "qwen/qwen-2.5-72b-instruct", creds, 0, nil, testLogger())
	if err != nil {
		t.Fatalf("Resolve openrouter: %v", err)
	}
	c, ok := o.(*OpenAIClient)
	if !ok {
		t.Fatalf("fallback resolved to %T, want *OpenAIClient", o)
	}
	if c.baseURL != OpenRouterBaseURL {
		t.Errorf("fallback baseURL = %q, want OpenRouter", c.baseURL)
	}
}
