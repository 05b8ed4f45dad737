package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	DefaultOllamaURL   = "http://127.0.0.1:11434"
	DefaultOllamaModel = "qwen2.5vl:3b"
)

// OllamaProvider implements Provider against a local Ollama server
type OllamaProvider struct {
	llm         *ollama.LLM
	serverURL   string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// OllamaConfig holds configuration for the Ollama provider
type OllamaConfig struct {
	ServerURL   string // defaults to http://127.0.0.1:11434
	Model       string // must be a vision model
	MaxTokens   int
	Temperature float64
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(cfg OllamaConfig) (*OllamaProvider, error) {
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}

	llm, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.ServerURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama LLM: %w", err)
	}

	return &OllamaProvider{
		llm:         llm,
		serverURL:   strings.TrimRight(cfg.ServerURL, "/"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// Generate implements Provider
func (p *OllamaProvider) Generate(ctx context.Context, image Image, prompt string) (string, error) {
	return generateContent(ctx, p.llm, image, prompt, p.maxTokens, p.temperature)
}

// Ping implements Provider. It also checks that the model has been pulled.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", p.serverURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned %s", resp.Status)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decode ollama tags: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == p.model || strings.TrimSuffix(m.Name, ":latest") == p.model {
			return nil
		}
	}
	return fmt.Errorf("model %q not found, run: ollama pull %s", p.model, p.model)
}

// Name implements Provider
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// generateContent sends one human message with the image first and the
// prompt second, the order vision models expect.
func generateContent(ctx context.Context, model llms.Model, image Image, prompt string, maxTokens int, temperature float64) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(image.MIMEType, image.Data),
				llms.TextPart(prompt),
			},
		},
	}

	var opts []llms.CallOption
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}
	opts = append(opts, llms.WithTemperature(temperature))

	resp, err := model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}
