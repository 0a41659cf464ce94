// Package metrics exports the copy core's counters and histograms as
// Prometheus series: bytes/files copied, per-strategy selection counts,
// zero-copy outcomes, and task duration, mirroring the fields
// internal/progress's GlobalStats already tracks in memory.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config names the registry's namespace/subsystem, following the
// teacher's convention of scoping every series under the project name.
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig scopes every series under "ferrocp".
func DefaultConfig() Config {
	return Config{Namespace: "ferrocp"}
}

// Collector owns a private Prometheus registry and the series §4.7/§6
// name: copy throughput, strategy selection, zero-copy fallbacks, task
// outcomes and their durations, and the scheduler's live queue depth.
type Collector struct {
	registry *prometheus.Registry

	filesCopied     prometheus.Counter
	bytesCopied     prometheus.Counter
	dirsCreated     prometheus.Counter
	filesSkipped    prometheus.Counter
	strategySelects *prometheus.CounterVec
	zeroCopyOps     prometheus.Counter
	zeroCopyFallback prometheus.Counter
	taskOutcomes    *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	queueDepth      prometheus.Gauge
	activeTasks     prometheus.Gauge
}

// NewCollector builds and registers every series against a fresh
// registry; callers expose Registry() through their own HTTP mux (the
// copy core has no opinion on transport, unlike the teacher's collector
// which ran its own http.Server).
func NewCollector(cfg Config) *Collector {
	if cfg.Namespace == "" {
		cfg.Namespace = "ferrocp"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.filesCopied = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "files_copied_total", Help: "Total number of files successfully copied.",
	})
	c.bytesCopied = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "bytes_copied_total", Help: "Total number of bytes successfully copied.",
	})
	c.dirsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "directories_created_total", Help: "Total number of destination directories created.",
	})
	c.filesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "files_skipped_total", Help: "Total number of files skipped by a sync mode filter.",
	})
	c.strategySelects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "strategy_selections_total", Help: "Number of times each copy strategy was selected.",
	}, []string{"strategy"})
	c.zeroCopyOps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "zero_copy_operations_total", Help: "Total number of copies completed via a zero-copy syscall.",
	})
	c.zeroCopyFallback = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "zero_copy_fallbacks_total", Help: "Total number of zero-copy attempts that fell back to the buffered path.",
	})
	c.taskOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "task_outcomes_total", Help: "Task terminal outcomes by status.",
	}, []string{"status"})
	c.taskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name:    "task_duration_seconds",
		Help:    "Wall-clock duration of a completed copy task.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 20), // 1ms to ~9min
	}, []string{"strategy"})
	c.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "queue_depth", Help: "Number of tasks currently pending in the scheduler's queue.",
	})
	c.activeTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "active_tasks", Help: "Number of tasks currently running.",
	})

	c.registry.MustRegister(
		c.filesCopied, c.bytesCopied, c.dirsCreated, c.filesSkipped,
		c.strategySelects, c.zeroCopyOps, c.zeroCopyFallback,
		c.taskOutcomes, c.taskDuration, c.queueDepth, c.activeTasks,
	)

	return c
}

// Registry exposes the underlying registry so a caller can mount it
// behind promhttp.HandlerFor on whatever mux their process already runs.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordCopy folds one completed strategy invocation into the
// files/bytes counters and the per-strategy duration histogram.
func (c *Collector) RecordCopy(strategyName string, filesCopied int64, bytesCopied int64, duration time.Duration) {
	c.filesCopied.Add(float64(filesCopied))
	c.bytesCopied.Add(float64(bytesCopied))
	c.taskDuration.With(prometheus.Labels{"strategy": strategyName}).Observe(duration.Seconds())
}

// RecordDirectoryCreated increments the directory counter for tree copies.
func (c *Collector) RecordDirectoryCreated() {
	c.dirsCreated.Inc()
}

// RecordFileSkipped increments the skip counter (sync mode filters).
func (c *Collector) RecordFileSkipped() {
	c.filesSkipped.Inc()
}

// RecordStrategySelection increments the selector's per-strategy
// outcome counter, independent of whether the copy ultimately succeeds.
func (c *Collector) RecordStrategySelection(strategyName string) {
	c.strategySelects.With(prometheus.Labels{"strategy": strategyName}).Inc()
}

// RecordZeroCopy increments either the zero-copy success or fallback
// counter, matching §7's "not a failure, silently falls back" policy.
func (c *Collector) RecordZeroCopy(succeeded bool) {
	if succeeded {
		c.zeroCopyOps.Inc()
		return
	}
	c.zeroCopyFallback.Inc()
}

// RecordTaskOutcome increments the terminal-status counter for a task.
func (c *Collector) RecordTaskOutcome(status string) {
	c.taskOutcomes.With(prometheus.Labels{"status": status}).Inc()
}

// SetQueueDepth and SetActiveTasks mirror the scheduler's live gauges;
// the caller samples the scheduler's own counts and pushes them in.
func (c *Collector) SetQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}

func (c *Collector) SetActiveTasks(n int) {
	c.activeTasks.Set(float64(n))
}
