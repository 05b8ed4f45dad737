package renamer

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"
)

// ProgressCallback defines the interface for progress reporting. Done is
// called once per file, from worker goroutines.
type ProgressCallback interface {
	Start(total int)
	Done(res Result)
	Finish()
}

// LineReporter prints one line per finished file:
//
//	[3/12] scan_003.pdf... ✓
type LineReporter struct {
	mu        sync.Mutex
	writer    io.Writer
	root      string // names are shown relative to root when set
	total     int
	current   int
	failed    int
	startTime time.Time
}

// NewLineReporter creates a new line reporter
func NewLineReporter(w io.Writer, root string) *LineReporter {
	return &LineReporter{writer: w, root: root}
}

// Start implements ProgressCallback
func (p *LineReporter) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.current = 0
	p.failed = 0
	p.startTime = time.Now()
}

// Done implements ProgressCallback
func (p *LineReporter) Done(res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current++
	mark := "✓"
	if !res.OK() {
		mark = "✗"
		p.failed++
	}
	_, _ = fmt.Fprintf(p.writer, "[%d/%d] %s... %s\n", p.current, p.total, p.display(res.Source), mark)
}

// Finish completes the progress display
func (p *LineReporter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	elapsed := time.Since(p.startTime)
	_, _ = fmt.Fprintf(p.writer, "\nCompleted: %d file(s), %d failed, in %s\n",
		p.current, p.failed, elapsed.Round(time.Millisecond))
}

func (p *LineReporter) display(path string) string {
	if p.root != "" {
		if rel, err := filepath.Rel(p.root, path); err == nil {
			return rel
		}
	}
	return filepath.Base(path)
}

// ETA estimates the time left from the average pace so far.
func ETA(done, total int, elapsed time.Duration) time.Duration {
	if done <= 0 || total <= done {
		return 0
	}
	rate := float64(done) / elapsed.Seconds()
	remaining := time.Duration(float64(total-done) / rate * float64(time.Second))
	if remaining < time.Second {
		return remaining.Round(time.Millisecond)
	}
	return remaining.Round(time.Second)
}
