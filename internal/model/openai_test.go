package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tabletalk/tabletalk/internal/prompt"
)

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(body)
}

func TestOpenAIClientComplete(t *testing.T) {
	var gotAuth, gotPath string
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("```json\n{\"kind\":\"sql\",\"sql\":\"SELECT count(*) FROM t\"}\n```")))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{
		BaseURL:     server.URL,
		APIKey:      "test-key",
		Model:       "gpt-test",
		Temperature: 0,
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	answer, err := client.Complete(context.Background(), prompt.Prompt{System: "sys", User: "usr"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if answer.SQL != "SELECT count(*) FROM t" {
		t.Fatalf("SQL = %q", answer.SQL)
	}
	if answer.Provider != providerOpenAICompatible || answer.Model != "gpt-test" {
		t.Fatalf("provenance = %q/%q", answer.Provider, answer.Model)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotPayload["model"] != "gpt-test" {
		t.Fatalf("payload model = %v", gotPayload["model"])
	}
	messages, ok := gotPayload["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("payload messages = %v", gotPayload["messages"])
	}
}

func TestOpenAIClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if _, err := client.Complete(context.Background(), prompt.Prompt{}); !errors.Is(err, ErrEmptyAnswer) {
		t.Fatalf("Complete() error = %v, want ErrEmptyAnswer", err)
	}
}

func TestOpenAIClientUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if _, err := client.Complete(context.Background(), prompt.Prompt{}); err == nil {
		t.Fatal("Complete() error = nil, want upstream failure")
	}
}

func TestNewOpenAIClientValidation(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Fatal("NewOpenAIClient() accepted empty base URL")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{BaseURL: "https://api.openai.com"}); err == nil {
		t.Fatal("NewOpenAIClient() accepted empty api key")
	}
}

func TestDisabledClient(t *testing.T) {
	if _, err := (Disabled{Reason: "no api key"}).Complete(context.Background(), prompt.Prompt{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Complete() error = %v, want ErrNotConfigured", err)
	}
}
