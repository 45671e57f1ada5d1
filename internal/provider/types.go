package provider

import (
	"context"
	"time"
)

// Provider is a text-generation backend.
type Provider interface {
	ID() string
	Name() string
	// Complete sends one system-instructed prompt and returns the raw
	// model output. Implementations honor ctx cancellation and their
	// configured HTTP timeout.
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Request is a single completion request.
type Request struct {
	Model       string  `json:"model"`
	System      string  `json:"system"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Response is the model's reply.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// Config holds configuration for one provider instance.
type Config struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"` // "openai" or "gemini"
	Name        string        `json:"name"`
	Endpoint    string        `json:"endpoint"`
	APIKey      string        `json:"api_key"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// sampling resolves the effective temperature and token cap for one
// request: explicit request values win, the provider config fills the
// gaps. Zero means "unset" on both sides and is left to the API default.
func (c Config) sampling(req *Request) (temperature float64, maxTokens int) {
	temperature, maxTokens = req.Temperature, req.MaxTokens
	if temperature == 0 {
		temperature = c.Temperature
	}
	if maxTokens == 0 {
		maxTokens = c.MaxTokens
	}
	return temperature, maxTokens
}
