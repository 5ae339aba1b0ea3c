// Package metrics exposes pipeline counters on a dedicated prometheus registry.
package metrics

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mender"

// Recorder collects pipeline metrics. A nil *Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	editsApplied   *prometheus.CounterVec
	editsGenerated *prometheus.CounterVec
	editsStale     prometheus.Counter
	editsDiscarded prometheus.Counter
	parseFailures  *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	filesTotal     *prometheus.CounterVec
	iterations     prometheus.Histogram
	fileDuration   prometheus.Histogram
	learnEvents    *prometheus.CounterVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		editsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_applied_total",
			Help:      "Edits applied by originating engine",
		}, []string{"engine"}),
		editsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_generated_total",
			Help:      "Candidate edits generated by engine",
		}, []string{"engine"}),
		editsStale: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_stale_total",
			Help:      "Edits dropped because their line no longer exists",
		}),
		editsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_discarded_total",
			Help:      "Edits discarded by same-line conflicts",
		}),
		parseFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Collaborator failures degraded to a synthetic diagnostic",
		}, []string{"origin"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_cache_lookups_total",
			Help:      "Analysis cache lookups by result",
		}, []string{"result"}),
		filesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files processed by final state",
		}, []string{"state"}),
		iterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "iterations_per_file",
			Help:      "Pipeline iterations per file",
			Buckets:   prometheus.LinearBuckets(1, 1, 5),
		}),
		fileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Wall time spent repairing one file",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		learnEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learn_events_total",
			Help:      "Fix outcomes recorded by result",
		}, []string{"result"}),
	}
}

// EditsGenerated counts candidate edits from one engine.
func (r *Recorder) EditsGenerated(engine string, n int) {
	if r == nil || n <= 0 {
		return
	}

	r.editsGenerated.WithLabelValues(engine).Add(float64(n))
}

// EditApplied counts one applied edit.
func (r *Recorder) EditApplied(engine string) {
	if r == nil {
		return
	}

	r.editsApplied.WithLabelValues(engine).Inc()
}

// EditsDropped counts stale and conflicting edits.
func (r *Recorder) EditsDropped(stale, discarded int) {
	if r == nil {
		return
	}

	r.editsStale.Add(float64(stale))
	r.editsDiscarded.Add(float64(discarded))
}

// ParseFailure counts one degraded collaborator call.
func (r *Recorder) ParseFailure(origin string) {
	if r == nil {
		return
	}

	r.parseFailures.WithLabelValues(origin).Inc()
}

// CacheLookup counts one analysis cache hit or miss.
func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}

	r.cacheLookups.WithLabelValues(result).Inc()
}

// FileDone records the final state, iteration count and wall time of one file.
func (r *Recorder) FileDone(state string, iterations int, seconds float64) {
	if r == nil {
		return
	}

	r.filesTotal.WithLabelValues(state).Inc()
	r.iterations.Observe(float64(iterations))
	r.fileDuration.Observe(seconds)
}

// Learned counts one recorded fix outcome.
func (r *Recorder) Learned(success bool) {
	if r == nil {
		return
	}

	result := "failure"
	if success {
		result = "success"
	}

	r.learnEvents.WithLabelValues(result).Inc()
}

// WriteTextfile dumps the registry in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		slog.Error("failed to write metrics file", "path", path, "error", err)
		return fmt.Errorf("write metrics: %w", err)
	}

	return nil
}
