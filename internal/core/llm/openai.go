package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultOpenAIURL points at a local llama.cpp server.
	DefaultOpenAIURL   = "http://127.0.0.1:8080/v1"
	DefaultOpenAIModel = "qwen2.5-vl-3b-instruct"
)

// OpenAIProvider implements Provider for any OpenAI compatible chat
// completions endpoint (llama.cpp server, vLLM, OpenAI itself).
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// OpenAIConfig holds configuration for the OpenAI provider
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string // optional for local servers
	Model       string
	MaxTokens   int
	Temperature float64
}

// NewOpenAIProvider creates a new OpenAI compatible provider
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Generate implements Provider. The image travels inline as a data URI.
func (p *OpenAIProvider) Generate(ctx context.Context, image Image, prompt string) (string, error) {
	dataURI := fmt.Sprintf("data:%s;base64,%s", image.MIMEType, base64.StdEncoding.EncodeToString(image.Data))

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: float32(p.temperature),
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURI},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
				},
			},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping implements Provider
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Name implements Provider
func (p *OpenAIProvider) Name() string {
	return "openai"
}
