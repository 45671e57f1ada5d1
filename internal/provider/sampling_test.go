package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestOpenAISamplingFromConfig(t *testing.T) {
	var got openaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(openaiResponse{
			Model: "gpt-test",
			Choices: []struct {
				Message openaiMessage `json:"message"`
			}{{Message: openaiMessage{Role: "assistant", Content: "ok"}}},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{
		ID: "oa", Endpoint: srv.URL, Model: "gpt-test",
		Temperature: 1.2, MaxTokens: 300,
	}, zap.NewNop())

	if _, err := p.Complete(context.Background(), &Request{Prompt: "hi"}); err != nil {
		t.Fatal(err)
	}
	if got.Temperature != 1.2 {
		t.Fatalf("temperature = %f, want config value", got.Temperature)
	}
	if got.MaxTokens != 300 {
		t.Fatalf("max_tokens = %d, want config value", got.MaxTokens)
	}

	// A request that sets its own values overrides the config.
	if _, err := p.Complete(context.Background(), &Request{Prompt: "hi", Temperature: 0.3, MaxTokens: 64}); err != nil {
		t.Fatal(err)
	}
	if got.Temperature != 0.3 || got.MaxTokens != 64 {
		t.Fatalf("override ignored: temperature=%f max_tokens=%d", got.Temperature, got.MaxTokens)
	}
}

func TestGeminiSamplingFromConfig(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []struct {
				Content geminiContent `json:"content"`
			}{{Content: geminiContent{Parts: []geminiPart{{Text: "ok"}}}}},
		})
	}))
	defer srv.Close()

	p := NewGeminiProvider(Config{
		ID: "gm", Endpoint: srv.URL, Model: "gemini-test",
		Temperature: 1.2, MaxTokens: 300,
	}, zap.NewNop())

	if _, err := p.Complete(context.Background(), &Request{Prompt: "hi"}); err != nil {
		t.Fatal(err)
	}
	if got.GenerationConfig.Temperature != 1.2 {
		t.Fatalf("temperature = %f, want config value", got.GenerationConfig.Temperature)
	}
	if got.GenerationConfig.MaxOutputTokens != 300 {
		t.Fatalf("maxOutputTokens = %d, want config value", got.GenerationConfig.MaxOutputTokens)
	}
}
