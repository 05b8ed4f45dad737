package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/neilberkman/docrider/internal/core/llm"
)

// Config is the merged configuration. CLI flags are applied on top of it.
type Config struct {
	Analyzer AnalyzerConfig `toml:"analyzer"`
	Render   RenderConfig   `toml:"render"`
	Rename   RenameConfig   `toml:"rename"`
	Archive  ArchiveConfig  `toml:"archive"`

	// Prompt templates, from document_prompt.txt and receipt_prompt.txt
	// when present
	DocumentPrompt string `toml:"-"`
	ReceiptPrompt  string `toml:"-"`
}

type AnalyzerConfig struct {
	Provider              string  `toml:"provider" validate:"oneof=ollama openai bedrock"`
	Model                 string  `toml:"model"`
	ServerURL             string  `toml:"server_url" validate:"omitempty,url"`
	APIKey                string  `toml:"api_key"`
	Region                string  `toml:"region"`
	Profile               string  `toml:"profile"`
	MaxConcurrent         int64   `toml:"max_concurrent" validate:"min=1,max=64"`
	MaxTokens             int     `toml:"max_tokens" validate:"min=16,max=8192"`
	Temperature           float64 `toml:"temperature" validate:"min=0,max=2"`
	BreakerFailures       uint32  `toml:"breaker_failures" validate:"max=1000"`
	BreakerTimeoutSeconds int     `toml:"breaker_timeout_seconds" validate:"min=0"`
}

type RenderConfig struct {
	DPI          int    `toml:"dpi" validate:"min=36,max=1200"`
	MaxDimension int    `toml:"max_dimension" validate:"min=0"`
	Pdftoppm     string `toml:"pdftoppm"`
}

type RenameConfig struct {
	Workers       int     `toml:"workers" validate:"min=1,max=64"`
	DelaySeconds  float64 `toml:"delay_seconds" validate:"min=0"`
	IncludeImages bool    `toml:"include_images"`
	CachePath     string  `toml:"cache_path" validate:"required"`
}

// ArchiveConfig describes an S3 compatible bucket that receives a copy of
// every renamed file.
type ArchiveConfig struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint" validate:"required_if=Enabled true"`
	Bucket    string `toml:"bucket" validate:"required_if=Enabled true"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Prefix    string `toml:"prefix"`
}

var validate = validator.New()

// Dir returns ~/.config/docrider
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "~"
	}
	return filepath.Join(home, ".config", "docrider")
}

// Default returns the built-in configuration
func Default() *Config {
	prompts := llm.DefaultPrompts()
	return &Config{
		Analyzer: AnalyzerConfig{
			Provider:              "ollama",
			MaxConcurrent:         1,
			MaxTokens:             256,
			Temperature:           0.1,
			BreakerFailures:       5,
			BreakerTimeoutSeconds: 30,
		},
		Render: RenderConfig{
			DPI:          300,
			MaxDimension: 2048,
		},
		Rename: RenameConfig{
			Workers:       4,
			DelaySeconds:  0.5,
			IncludeImages: true,
			CachePath:     filepath.Join(Dir(), "cache.db"),
		},
		DocumentPrompt: prompts.Document,
		ReceiptPrompt:  prompts.Receipt,
	}
}

// Load reads config from ~/.config/docrider/
func Load() (*Config, error) {
	return LoadFrom(Dir())
}

// LoadFrom reads config.toml and the prompt override files from dir. Missing
// files leave the defaults in place; a malformed config.toml is an error.
func LoadFrom(dir string) (*Config, error) {
	cfg := Default()

	tomlPath := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		if _, err := toml.DecodeFile(tomlPath, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", tomlPath, err)
		}
	}

	// If custom templates exist, use them
	if data, err := os.ReadFile(filepath.Join(dir, "document_prompt.txt")); err == nil {
		cfg.DocumentPrompt = string(data)
	}
	if data, err := os.ReadFile(filepath.Join(dir, "receipt_prompt.txt")); err == nil {
		cfg.ReceiptPrompt = string(data)
	}

	if cfg.Analyzer.APIKey == "" {
		cfg.Analyzer.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.Rename.CachePath = expandHome(cfg.Rename.CachePath)

	return cfg, nil
}

// Validate checks the merged configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, formatFieldError(e))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// Prompts returns the analyzer prompt templates
func (c *Config) Prompts() llm.Prompts {
	return llm.Prompts{Document: c.DocumentPrompt, Receipt: c.ReceiptPrompt}
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Namespace())
	field = strings.TrimPrefix(field, "config.")

	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a URL", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
