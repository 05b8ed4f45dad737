package renamer

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

// BatchOptions control ProcessBatch
type BatchOptions struct {
	OutputDir string
	DryRun    bool
	Workers   int           // files processed at once, default 4
	Delay     time.Duration // pause between dispatching files
	Progress  ProgressCallback
}

// BatchResult holds the outcome of every file that was started
type BatchResult struct {
	Results   []Result // sorted by source path
	Cancelled bool     // ctx ended before every file was dispatched
}

// Failed returns the results that did not succeed
func (b BatchResult) Failed() []Result {
	var out []Result
	for _, r := range b.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// ProcessBatch runs files through a bounded worker pool. Cancelling ctx
// stops dispatching new files; files already started run to completion.
func (r *Renamer) ProcessBatch(ctx context.Context, files []string, opts BatchOptions) BatchResult {
	files = dedupeSorted(files)
	workers := opts.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}

	results := make([]Result, len(files))
	started := make([]bool, len(files))
	inFlight := context.WithoutCancel(ctx)

	if opts.Progress != nil {
		opts.Progress.Start(len(files))
	}

	var g errgroup.Group
	g.SetLimit(workers)

	cancelled := false
dispatch:
	for i, path := range files {
		if i > 0 && opts.Delay > 0 {
			timer := time.NewTimer(opts.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				cancelled = true
				break dispatch
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		g.Go(func() error {
			// Waited for a free worker while ctx ended.
			if ctx.Err() != nil {
				return nil
			}
			started[i] = true
			res := r.ProcessFile(inFlight, path, opts.OutputDir, opts.DryRun)
			results[i] = res
			if opts.Progress != nil {
				opts.Progress.Done(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	if opts.Progress != nil {
		opts.Progress.Finish()
	}

	out := BatchResult{Cancelled: cancelled || ctx.Err() != nil}
	for i := range files {
		if started[i] {
			out.Results = append(out.Results, results[i])
		}
	}
	if out.Cancelled {
		r.logger.Warn("batch interrupted",
			zap.Int("completed", len(out.Results)),
			zap.Int("total", len(files)))
	}
	return out
}

func dedupeSorted(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
