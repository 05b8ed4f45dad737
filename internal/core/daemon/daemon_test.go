package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neilberkman/docrider/internal/core/renamer"
)

type recordingProcessor struct {
	mu    sync.Mutex
	calls []string
}

func (p *recordingProcessor) ProcessFile(_ context.Context, path, outputDir string, _ bool) renamer.Result {
	p.mu.Lock()
	p.calls = append(p.calls, path)
	p.mu.Unlock()

	dest := filepath.Join(filepath.Dir(path), "renamed_"+filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return renamer.Result{Source: path, Status: renamer.StatusFailed, Err: err}
	}
	return renamer.Result{Source: path, Destination: dest, Status: renamer.StatusRenamed}
}

func (p *recordingProcessor) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func startWatcher(t *testing.T, cfg Config, proc Processor) (*Watcher, context.CancelFunc) {
	t.Helper()
	w, err := NewWatcher(cfg, proc, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	// Let Run register its watches
	time.Sleep(100 * time.Millisecond)
	return w, cancel
}

func TestWatcher_ProcessesSettledFiles(t *testing.T) {
	dir := t.TempDir()
	proc := &recordingProcessor{}
	w, _ := startWatcher(t, Config{Dir: dir, Settle: 50 * time.Millisecond}, proc)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.pdf"), []byte("%PDF-1.4"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	assert.Eventually(t, func() bool { return len(proc.Calls()) == 1 }, 3*time.Second, 20*time.Millisecond)

	// The renamed file shows up as a create event but is not processed again
	time.Sleep(300 * time.Millisecond)
	calls := proc.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "scan.pdf", filepath.Base(calls[0]))
	assert.Equal(t, 1, w.Stats().Renamed)
}

func TestWatcher_ImagesOnlyWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	proc := &recordingProcessor{}
	startWatcher(t, Config{Dir: dir, Settle: 50 * time.Millisecond}, proc)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("jpg"), 0644))
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, proc.Calls())
}

func TestWatcher_ProcessExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.pdf"), []byte("%PDF"), 0644))

	proc := &recordingProcessor{}
	startWatcher(t, Config{Dir: dir, Settle: 20 * time.Millisecond, ProcessExisting: true}, proc)

	assert.Eventually(t, func() bool { return len(proc.Calls()) == 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_Paused(t *testing.T) {
	dir := t.TempDir()
	pause := filepath.Join(t.TempDir(), "paused")
	require.NoError(t, os.WriteFile(pause, nil, 0644))

	proc := &recordingProcessor{}
	startWatcher(t, Config{Dir: dir, Settle: 20 * time.Millisecond, PauseFile: pause}, proc)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.pdf"), []byte("%PDF"), 0644))
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, proc.Calls())
}

func TestNewWatcher_MissingDir(t *testing.T) {
	_, err := NewWatcher(Config{Dir: filepath.Join(t.TempDir(), "nope")}, &recordingProcessor{}, nil)
	assert.Error(t, err)
}

func TestManager_Status(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	info, err := m.GetStatus()
	require.NoError(t, err)
	assert.False(t, info.IsRunning)

	require.NoError(t, m.WritePIDFile(os.Getpid(), "/scans/inbox"))
	info, err = m.GetStatus()
	require.NoError(t, err)
	assert.True(t, info.IsRunning)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.Equal(t, "/scans/inbox", info.Dir)

	require.NoError(t, m.RemovePIDFile())
	require.NoError(t, m.RemovePIDFile())
}

func TestManager_CorruptPIDFile(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "watch.pid"), []byte("garbage"), 0644))
	info, err := m.GetStatus()
	require.NoError(t, err)
	assert.False(t, info.IsRunning)
	assert.NoFileExists(t, filepath.Join(dir, "watch.pid"))
}

func TestManager_PauseResume(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	assert.False(t, m.IsPaused())
	require.NoError(t, m.Pause())
	assert.True(t, m.IsPaused())
	require.NoError(t, m.Resume())
	assert.False(t, m.IsPaused())
	require.NoError(t, m.Resume())
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 4*time.Second, "3m 4s"},
		{2*time.Hour + 3*time.Minute, "2h 3m"},
		{26*time.Hour + 5*time.Minute, "1d 2h 5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUptime(tt.d))
	}
}
