// Package embedding turns text into vectors through an external service.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Provider generates vector embeddings from text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Config selects and configures an embedding backend.
type Config struct {
	Provider  string `json:"provider"` // "openai" or "ollama"
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}

// New returns the provider named in cfg.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		return &openaiEmbedder{cfg: cfg}, nil
	case "ollama":
		return &ollamaEmbedder{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// dimCache remembers the dimension seen in the first successful result,
// which beats trusting the configured value.
type dimCache struct {
	once sync.Once
	dim  int
}

func (c *dimCache) observe(n int) {
	if n > 0 {
		c.once.Do(func() { c.dim = n })
	}
}

type openaiEmbedder struct {
	cfg Config
	dimCache
}

func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]any{
		"model": e.cfg.Model,
		"input": []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.Endpoint+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := doJSON(req, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embedding: empty result")
	}
	e.observe(len(result.Data[0].Embedding))
	return result.Data[0].Embedding, nil
}

func (e *openaiEmbedder) Dimension() int {
	if e.dim > 0 {
		return e.dim
	}
	return e.cfg.Dimension
}

type ollamaEmbedder struct {
	cfg Config
	dimCache
}

func (e *ollamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]string{
		"model":  e.cfg.Model,
		"prompt": text,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.Endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := doJSON(req, &result); err != nil {
		return nil, err
	}
	e.observe(len(result.Embedding))
	return result.Embedding, nil
}

func (e *ollamaEmbedder) Dimension() int {
	if e.dim > 0 {
		return e.dim
	}
	return e.cfg.Dimension
}

func doJSON(req *http.Request, out any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("embedding: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("embedding: API returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("embedding: decode response: %w", err)
	}
	return nil
}
