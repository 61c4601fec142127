package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", payload.Model)
		}
		if len(payload.Messages) != 1 || payload.Messages[0].Content != "say something" {
			t.Errorf("messages = %+v", payload.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "  something worth reading  "}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("openai", "", "test-key", srv.URL)
	got, err := c.Generate(context.Background(), "say something")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "something worth reading" {
		t.Fatalf("got %q", got)
	}
}

func TestGenerateAnthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Errorf("anthropic-version = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "a measured reply"}},
		})
	}))
	defer srv.Close()

	c := NewClient("anthropic", "", "test-key", srv.URL)
	if c.Model() != "claude-sonnet-4-20250514" {
		t.Fatalf("default model = %q", c.Model())
	}
	got, err := c.Generate(context.Background(), "say something")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "a measured reply" {
		t.Fatalf("got %q", got)
	}
}

func TestGenerateErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{"error": "rate limited"})
	}))
	defer srv.Close()

	c := NewClient("openai", "", "test-key", srv.URL)
	if _, err := c.Generate(context.Background(), "p"); err == nil {
		t.Fatalf("expected error on non-200")
	}
}

func TestGenerateRejectsEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "   "}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("openai", "", "test-key", srv.URL)
	if _, err := c.Generate(context.Background(), "p"); err == nil {
		t.Fatalf("expected error on blank completion")
	}
}
