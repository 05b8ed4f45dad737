package renamer

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProgress struct {
	mu       sync.Mutex
	total    int
	done     []Result
	finished bool
}

func (p *recordingProgress) Start(total int) { p.total = total }

func (p *recordingProgress) Done(res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = append(p.done, res)
}

func (p *recordingProgress) Finish() { p.finished = true }

func TestProcessBatch(t *testing.T) {
	f := newFixture(t)
	f.respond("a", "Description: Alpha")
	f.respond("b", "Description: Beta")
	paths := []string{
		f.write(t, "b.pdf", "b"),
		f.write(t, "a.pdf", "a"),
		f.write(t, "c.txt", "c"),
	}
	// Duplicates collapse.
	paths = append(paths, paths[0])

	progress := &recordingProgress{}
	r := f.renamer(defaultOptions())
	out := r.ProcessBatch(context.Background(), paths, BatchOptions{Workers: 3, Progress: progress})

	require.Len(t, out.Results, 3)
	assert.False(t, out.Cancelled)
	assert.Equal(t, filepath.Join(f.dir, "a.pdf"), out.Results[0].Source, "sorted by path")

	failed := out.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, KindUnsupportedType, KindOf(failed[0].Err))

	assert.Equal(t, 3, progress.total)
	assert.Len(t, progress.done, 3)
	assert.True(t, progress.finished)
	assert.EqualValues(t, 2, r.Stats().Processed.Load())
	assert.EqualValues(t, 1, r.Stats().Failed.Load())
}

func TestProcessBatch_IdenticalContentAnalyzedOnce(t *testing.T) {
	f := newFixture(t)
	f.analyzer.delay = 50 * time.Millisecond
	f.respond("same", "Description: Duplicate Scan")
	paths := []string{
		f.write(t, "one.pdf", "same"),
		f.write(t, "two.pdf", "same"),
		f.write(t, "three.pdf", "same"),
	}

	r := f.renamer(defaultOptions())
	out := r.ProcessBatch(context.Background(), paths, BatchOptions{Workers: 3})

	require.Empty(t, out.Failed())
	assert.EqualValues(t, 1, f.analyzer.calls.Load())

	names := map[string]bool{}
	for _, res := range out.Results {
		names[filepath.Base(res.Destination)] = true
	}
	assert.Equal(t, map[string]bool{
		"Duplicate_Scan.pdf":    true,
		"Duplicate_Scan_v1.pdf": true,
		"Duplicate_Scan_v2.pdf": true,
	}, names)
}

func TestProcessBatch_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t)
	paths := []string{f.write(t, "a.pdf", "a"), f.write(t, "b.pdf", "b")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := f.renamer(defaultOptions()).ProcessBatch(ctx, paths, BatchOptions{})
	assert.True(t, out.Cancelled)
	assert.Empty(t, out.Results)
	assert.Zero(t, f.analyzer.calls.Load())
}

func TestProcessBatch_CancelDuringDelayFinishesInFlight(t *testing.T) {
	f := newFixture(t)
	f.analyzer.delay = 100 * time.Millisecond
	f.respond("a", "Description: Alpha")
	paths := []string{f.write(t, "a.pdf", "a"), f.write(t, "b.pdf", "b"), f.write(t, "c.pdf", "c")}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	out := f.renamer(defaultOptions()).ProcessBatch(ctx, paths, BatchOptions{Workers: 1, Delay: time.Second})

	assert.True(t, out.Cancelled)
	require.Len(t, out.Results, 1)
	assert.Equal(t, StatusRenamed, out.Results[0].Status, "the started file completed")
	assert.Equal(t, "Alpha.pdf", filepath.Base(out.Results[0].Destination))
}
