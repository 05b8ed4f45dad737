package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neilberkman/docrider/internal/core/archive"
	"github.com/neilberkman/docrider/internal/core/config"
	"github.com/neilberkman/docrider/internal/core/db"
	"github.com/neilberkman/docrider/internal/core/llm"
	"github.com/neilberkman/docrider/internal/core/render"
	"github.com/neilberkman/docrider/internal/core/renamer"
)

// loadConfig reads the config file and applies the flags the user set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("cache-path") {
		cfg.Rename.CachePath = cachePath
	}
	if flags.Changed("provider") {
		cfg.Analyzer.Provider = providerName
	}
	if flags.Changed("model") {
		cfg.Analyzer.Model = modelName
	}
	if flags.Changed("server") {
		cfg.Analyzer.ServerURL = serverURL
	}
	if flags.Changed("workers") {
		cfg.Rename.Workers = renameWorkers
	}
	if flags.Changed("delay") {
		cfg.Rename.DelaySeconds = renameDelay
	}
}

// pipeline is everything a rename needs, opened in order and closed by Close
type pipeline struct {
	cfg      *config.Config
	cache    *db.DB
	analyzer *llm.Analyzer
	renamer  *renamer.Renamer
}

// newPipeline opens the cache, connects to the analyzer and fails fast if
// either is unusable.
func newPipeline(ctx context.Context, cfg *config.Config, opts renamer.Options, logger *zap.Logger) (*pipeline, error) {
	cache, err := db.New(cfg.Rename.CachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	analyzer, err := newAnalyzer(ctx, cfg, logger)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}

	renderer := render.New(render.Config{
		DPI:          cfg.Render.DPI,
		MaxDimension: cfg.Render.MaxDimension,
		Pdftoppm:     cfg.Render.Pdftoppm,
	})

	r := renamer.New(cache, analyzer, renderer, opts, logger)

	if cfg.Archive.Enabled {
		store, err := archive.New(ctx, archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Prefix:    cfg.Archive.Prefix,
		})
		if err != nil {
			_ = cache.Close()
			return nil, fmt.Errorf("failed to connect archive: %w", err)
		}
		r.SetArchiver(store)
	}

	return &pipeline{cfg: cfg, cache: cache, analyzer: analyzer, renamer: r}, nil
}

func (p *pipeline) Close() error {
	return p.cache.Close()
}

func newAnalyzer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*llm.Analyzer, error) {
	provider, err := llm.NewProvider(ctx, llm.Options{
		Provider:    cfg.Analyzer.Provider,
		Model:       cfg.Analyzer.Model,
		ServerURL:   cfg.Analyzer.ServerURL,
		APIKey:      cfg.Analyzer.APIKey,
		Region:      cfg.Analyzer.Region,
		Profile:     cfg.Analyzer.Profile,
		MaxTokens:   cfg.Analyzer.MaxTokens,
		Temperature: cfg.Analyzer.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	analyzer := llm.NewAnalyzer(provider, cfg.Prompts(), llm.GateConfig{
		MaxConcurrent:   cfg.Analyzer.MaxConcurrent,
		BreakerFailures: cfg.Analyzer.BreakerFailures,
		BreakerTimeout:  time.Duration(cfg.Analyzer.BreakerTimeoutSeconds) * time.Second,
	}, logger)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := analyzer.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("analyzer unavailable: %w", err)
	}
	return analyzer, nil
}
