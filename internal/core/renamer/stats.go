package renamer

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats counts what happened during a run. Safe for concurrent use.
type Stats struct {
	Processed   atomic.Int64 // finished without error, whatever the outcome
	Renamed     atomic.Int64
	Skipped     atomic.Int64 // already had the right name
	Previously  atomic.Int64 // renamed in an earlier run
	Failed      atomic.Int64
	CacheHits   atomic.Int64
	CacheMisses atomic.Int64

	analysisSeconds prometheus.Histogram
}

// NewStats creates zeroed statistics
func NewStats() *Stats {
	return &Stats{
		analysisSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docrider",
			Name:      "analysis_duration_seconds",
			Help:      "Time spent rendering and analyzing one document",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
	}
}

func (s *Stats) observeAnalysis(d time.Duration) {
	if s.analysisSeconds != nil {
		s.analysisSeconds.Observe(d.Seconds())
	}
}

// HitRate is the percentage of cache lookups that were hits
func (s *Stats) HitRate() float64 {
	hits, misses := s.CacheHits.Load(), s.CacheMisses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses) * 100
}

// String renders the end of run summary
func (s *Stats) String() string {
	processed, failed := s.Processed.Load(), s.Failed.Load()
	total := processed + failed

	var b strings.Builder
	b.WriteString("SUMMARY\n")
	b.WriteString(strings.Repeat("=", 70) + "\n")
	fmt.Fprintf(&b, "Total processed: %d/%d\n", processed, total)
	fmt.Fprintf(&b, "Renamed: %d/%d\n", s.Renamed.Load(), total)
	fmt.Fprintf(&b, "Skipped: %d/%d\n", s.Skipped.Load(), total)
	fmt.Fprintf(&b, "Previously renamed: %d/%d\n", s.Previously.Load(), total)
	fmt.Fprintf(&b, "Failed: %d/%d\n", failed, total)
	b.WriteString("\nCache Statistics:\n")
	fmt.Fprintf(&b, "  Cache hits: %d (reused previous analysis)\n", s.CacheHits.Load())
	fmt.Fprintf(&b, "  Cache misses: %d (new analysis)\n", s.CacheMisses.Load())
	fmt.Fprintf(&b, "  Hit rate: %.1f%%\n", s.HitRate())
	return b.String()
}

// Registry exposes the counters as Prometheus metrics
func (s *Stats) Registry() *prometheus.Registry {
	registry := prometheus.NewRegistry()

	counter := func(name, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "docrider",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}

	registry.MustRegister(
		counter("files_processed_total", "Files that finished without error", &s.Processed),
		counter("files_renamed_total", "Files moved to a new name", &s.Renamed),
		counter("files_skipped_total", "Files that already had their target name", &s.Skipped),
		counter("files_previously_renamed_total", "Files renamed by an earlier run", &s.Previously),
		counter("files_failed_total", "Files that failed", &s.Failed),
		counter("cache_hits_total", "Analyses served from the cache", &s.CacheHits),
		counter("cache_misses_total", "Cache lookups that required a new analysis", &s.CacheMisses),
	)
	if s.analysisSeconds != nil {
		registry.MustRegister(s.analysisSeconds)
	}
	return registry
}

// WriteMetrics writes the counters in Prometheus text format, for the
// node_exporter textfile collector
func (s *Stats) WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, s.Registry()); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
