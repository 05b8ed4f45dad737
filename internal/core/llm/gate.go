package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// GateConfig bounds how the analyzer is called.
type GateConfig struct {
	MaxConcurrent   int64         // concurrent model calls, at least 1
	BreakerFailures uint32        // consecutive failures that open the breaker, 0 disables
	BreakerTimeout  time.Duration // how long the breaker stays open
}

// DefaultGateConfig serializes model calls and opens the breaker after
// five consecutive failures.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MaxConcurrent:   1,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Analyzer turns a Request into raw model text. It renders the prompt,
// limits concurrency with a semaphore and stops calling a backend that
// keeps failing.
type Analyzer struct {
	provider Provider
	prompts  Prompts
	sem      *semaphore.Weighted
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
	quiet    atomic.Int32
}

// NewAnalyzer wraps provider with the gate described by cfg
func NewAnalyzer(provider Provider, prompts Prompts, cfg GateConfig, logger *zap.Logger) *Analyzer {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Analyzer{
		provider: provider,
		prompts:  prompts,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:   logger,
	}

	a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider.Name(),
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.BreakerFailures > 0 && counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			a.log().Warn("analyzer circuit breaker state changed",
				zap.String("provider", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
		// A blank answer is the model's fault, not the backend's.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrEmptyResponse) || errors.Is(err, context.Canceled)
		},
	})

	return a
}

// Name returns the wrapped provider's name
func (a *Analyzer) Name() string {
	return a.provider.Name()
}

// Ping checks the backend before any work starts
func (a *Analyzer) Ping(ctx context.Context) error {
	if err := a.provider.Ping(ctx); err != nil {
		return fmt.Errorf("%s: %w", a.provider.Name(), err)
	}
	return nil
}

// Analyze sends the image and rendered prompt to the model
func (a *Analyzer) Analyze(ctx context.Context, req Request) (string, error) {
	prompt, err := a.prompts.Render(req.FilenameHint, req.Receipt)
	if err != nil {
		return "", err
	}

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer a.sem.Release(1)

	start := time.Now()
	out, err := a.breaker.Execute(func() (any, error) {
		text, err := a.provider.Generate(ctx, req.Image, prompt)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return nil, ErrEmptyResponse
		}
		return text, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return "", err
	}

	text := out.(string)
	a.log().Debug("model response",
		zap.String("file", req.FilenameHint),
		zap.Duration("took", time.Since(start)),
		zap.String("response", text))
	return text, nil
}

// Quiet silences the analyzer's own logging until the returned function
// is called. Calls nest.
func (a *Analyzer) Quiet() (restore func()) {
	a.quiet.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { a.quiet.Add(-1) })
	}
}

func (a *Analyzer) log() *zap.Logger {
	if a.quiet.Load() > 0 {
		return zap.NewNop()
	}
	return a.logger
}
