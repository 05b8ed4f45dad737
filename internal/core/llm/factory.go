package llm

import (
	"context"
	"fmt"
)

// Options selects and configures a backend
type Options struct {
	Provider    string // ollama, openai or bedrock
	Model       string
	ServerURL   string
	APIKey      string
	Region      string
	Profile     string
	MaxTokens   int
	Temperature float64
}

// NewProvider builds the backend named in opts
func NewProvider(ctx context.Context, opts Options) (Provider, error) {
	switch opts.Provider {
	case "", "ollama":
		p, err := NewOllamaProvider(OllamaConfig{
			ServerURL:   opts.ServerURL,
			Model:       opts.Model,
			MaxTokens:   opts.MaxTokens,
			Temperature: opts.Temperature,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			BaseURL:     opts.ServerURL,
			APIKey:      opts.APIKey,
			Model:       opts.Model,
			MaxTokens:   opts.MaxTokens,
			Temperature: opts.Temperature,
		}), nil
	case "bedrock":
		p, err := NewBedrockProvider(ctx, BedrockConfig{
			Region:      opts.Region,
			ModelID:     opts.Model,
			Profile:     opts.Profile,
			MaxTokens:   opts.MaxTokens,
			Temperature: opts.Temperature,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want ollama, openai or bedrock)", opts.Provider)
	}
}
