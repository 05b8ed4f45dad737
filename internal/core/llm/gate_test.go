package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeProvider struct {
	mu       sync.Mutex
	prompts  []string
	response string
	err      error
	delay    time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeProvider) Generate(ctx context.Context, image Image, prompt string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.response, f.err
}

func (f *fakeProvider) Ping(context.Context) error { return f.err }
func (f *fakeProvider) Name() string { return "fake" }

func TestAnalyzer_RendersPrompt(t *testing.T) {
	p := &fakeProvider{response: "Date: 2024-01-01\nDescription: Bill"}
	a := NewAnalyzer(p, DefaultPrompts(), DefaultGateConfig(), zap.NewNop())

	out, err := a.Analyze(context.Background(), Request{FilenameHint: "scan.pdf", Receipt: true})
	require.NoError(t, err)
	assert.Equal(t, p.response, out)
	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "Original filename: scan.pdf")
	assert.Contains(t, p.prompts[0], "receipt")
}

func TestAnalyzer_EmptyResponse(t *testing.T) {
	p := &fakeProvider{response: "  \n\t"}
	a := NewAnalyzer(p, DefaultPrompts(), DefaultGateConfig(), zap.NewNop())

	_, err := a.Analyze(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnalyzer_BreakerOpensAfterFailures(t *testing.T) {
	p := &fakeProvider{err: errors.New("connection refused")}
	cfg := GateConfig{MaxConcurrent: 1, BreakerFailures: 2, BreakerTimeout: time.Minute}
	a := NewAnalyzer(p, DefaultPrompts(), cfg, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := a.Analyze(context.Background(), Request{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err := a.Analyze(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Len(t, p.prompts, 2, "open breaker must not reach the provider")
}

func TestAnalyzer_EmptyResponsesDoNotTrip(t *testing.T) {
	p := &fakeProvider{response: ""}
	cfg := GateConfig{MaxConcurrent: 1, BreakerFailures: 1, BreakerTimeout: time.Minute}
	a := NewAnalyzer(p, DefaultPrompts(), cfg, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := a.Analyze(context.Background(), Request{})
		assert.ErrorIs(t, err, ErrEmptyResponse)
	}
}

func TestAnalyzer_LimitsConcurrency(t *testing.T) {
	p := &fakeProvider{response: "Description: Bill", delay: 20 * time.Millisecond}
	a := NewAnalyzer(p, DefaultPrompts(), DefaultGateConfig(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Analyze(context.Background(), Request{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.maxInFlight.Load())
}

func TestAnalyzer_CancelledWhileWaiting(t *testing.T) {
	p := &fakeProvider{response: "x"}
	a := NewAnalyzer(p, DefaultPrompts(), DefaultGateConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.sem.Acquire(context.Background(), 1))
	defer a.sem.Release(1)

	_, err := a.Analyze(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzer_Quiet(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	p := &fakeProvider{response: "Description: Bill"}
	a := NewAnalyzer(p, DefaultPrompts(), DefaultGateConfig(), zap.New(core))

	restore := a.Quiet()
	_, err := a.Analyze(context.Background(), Request{})
	require.NoError(t, err)
	assert.Zero(t, logs.Len())

	restore()
	restore() // second call is a no-op

	_, err = a.Analyze(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len())
}

func TestAnalyzer_Ping(t *testing.T) {
	p := &fakeProvider{err: errors.New("down")}
	a := NewAnalyzer(p, DefaultPrompts(), DefaultGateConfig(), nil)

	err := a.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fake")
}
