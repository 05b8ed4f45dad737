package llm

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms/bedrock"
)

// DefaultBedrockModel is a Claude 3 model, which accepts images.
const DefaultBedrockModel = "anthropic.claude-3-haiku-20240307-v1:0"

// BedrockProvider implements Provider using AWS Bedrock
type BedrockProvider struct {
	llm         *bedrock.LLM
	awsCfg      aws.Config
	modelID     string
	maxTokens   int
	temperature float64
}

// BedrockConfig holds configuration for Bedrock provider
type BedrockConfig struct {
	Region          string // AWS region, defaults to us-east-1
	ModelID         string
	Profile         string // AWS profile name (optional)
	AccessKeyID     string // AWS access key ID (optional, for explicit creds)
	SecretAccessKey string // AWS secret access key (optional, for explicit creds)
	MaxTokens       int
	Temperature     float64
}

// NewBedrockProvider creates a new Bedrock provider
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultBedrockModel
	}

	// Load AWS config
	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg)

	llm, err := bedrock.New(
		bedrock.WithModel(cfg.ModelID),
		bedrock.WithClient(client),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bedrock LLM: %w", err)
	}

	return &BedrockProvider{
		llm:         llm,
		awsCfg:      awsCfg,
		modelID:     cfg.ModelID,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Generate implements Provider
func (p *BedrockProvider) Generate(ctx context.Context, image Image, prompt string) (string, error) {
	return generateContent(ctx, p.llm, image, prompt, p.maxTokens, p.temperature)
}

// Ping implements Provider by resolving credentials; Bedrock has no cheap
// health endpoint.
func (p *BedrockProvider) Ping(ctx context.Context) error {
	if p.awsCfg.Credentials == nil {
		return fmt.Errorf("no AWS credentials configured")
	}
	if _, err := p.awsCfg.Credentials.Retrieve(ctx); err != nil {
		return fmt.Errorf("resolve AWS credentials: %w", err)
	}
	return nil
}

// Name implements Provider
func (p *BedrockProvider) Name() string {
	return "bedrock"
}
