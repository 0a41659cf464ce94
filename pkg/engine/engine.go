// Package engine assembles the copy core's components behind the public
// API named in spec.md §6.1: an Engine that owns the scheduler, selector,
// resume store and metrics collector, and exposes submit/execute/status/
// cancel/progress/statistics to an embedder (CLI, sync daemon, SDK).
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ferrocp/ferrocp/internal/logging"
	"github.com/ferrocp/ferrocp/internal/metrics"
	"github.com/ferrocp/ferrocp/internal/progress"
	"github.com/ferrocp/ferrocp/internal/resume"
	"github.com/ferrocp/ferrocp/internal/scheduler"
	"github.com/ferrocp/ferrocp/internal/selector"
	"github.com/ferrocp/ferrocp/internal/strategy"
	"github.com/ferrocp/ferrocp/pkg/config"
)

// statsPollInterval is how often Start's background loop samples the
// scheduler's live queue depth and active-task count into the metrics
// gauges. Matches the watcher cadence named alongside the resume store's
// cleanup sweep: an explicit interval, never busy-waiting.
const statsPollInterval = time.Second

// Engine is the copy core's public entry point. One Engine owns one
// scheduler, selector, resume store and metrics registry; an embedder
// normally constructs a single Engine for the process lifetime.
type Engine struct {
	cfg *config.Configuration
	log *logging.Logger

	sched   *scheduler.Scheduler
	sel     *selector.Selector
	exec    *scheduler.Executor
	resume  *resume.Store
	metrics *metrics.Collector

	// baseOptions is the strategy.Options baseline derived from cfg
	// (§6.4's configuration contract): Submit starts every request that
	// hasn't overridden its own Options from this instead of
	// strategy.DefaultOptions(), so enable_zero_copy/buffer_size/the
	// features.* block in a loaded config file actually reach the copy.
	baseOptions strategy.Options

	sinkMu sync.Mutex
	sinks  map[string]*fanoutSink

	metaMu sync.Mutex
	meta   map[string]taskMeta

	mu        sync.Mutex
	started   bool
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// New builds an Engine with default configuration.
func New() (*Engine, error) {
	return WithConfig(config.Default())
}

// WithConfig builds an Engine from an explicit configuration, wiring the
// scheduler, selector, resume store and metrics collector from its
// values. cfg is validated before anything is constructed.
func WithConfig(cfg *config.Configuration) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid configuration: %w", err)
	}

	concurrency := cfg.ThreadCount
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	log := logging.New(logging.Info, nil)

	sched := scheduler.New(scheduler.DefaultConfig())

	selCfg := selector.DefaultConfig()
	selCfg.EnableDynamicThresholds = cfg.Selector.EnableDynamicThresholds
	if cfg.Selector.MinSamplesForAdjustment > 0 {
		selCfg.MinSamplesForAdjustment = cfg.Selector.MinSamplesForAdjustment
	}
	if cfg.Selector.PerformanceImprovementThresh > 0 {
		selCfg.PerformanceImprovementThreshold = cfg.Selector.PerformanceImprovementThresh
	}
	sel := selector.New(selCfg)

	execCfg := scheduler.DefaultExecutorConfig(concurrency)
	exec := scheduler.NewExecutor(sched, sel, execCfg, log.With(logging.F("component", "executor")))

	resumeStore, err := resume.New(resume.Config{
		Dir:          cfg.Resume.ResumeDir,
		MaxRetries:   cfg.Resume.MaxRetries,
		MaxResumeAge: cfg.Resume.MaxResumeAge,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: resume store: %w", err)
	}

	collector := metrics.NewCollector(metrics.DefaultConfig())

	e := &Engine{
		cfg:         cfg,
		log:         log,
		sched:       sched,
		sel:         sel,
		exec:        exec,
		resume:      resumeStore,
		metrics:     collector,
		sinks:       make(map[string]*fanoutSink),
		meta:        make(map[string]taskMeta),
		baseOptions: baseOptionsFromConfig(cfg),
	}

	exec.SetProgressSinkFunc(e.sinkForTask)
	exec.SetHooks(scheduler.Hooks{
		OnSelect: func(taskID, strategyName string) {
			collector.RecordStrategySelection(strategyName)
		},
		OnZeroCopy: func(taskID string, succeeded bool) {
			collector.RecordZeroCopy(succeeded)
		},
		OnOutcome: e.onOutcome,
		OnCopy: func(taskID, strategyName string, stats progress.TaskStats, duration time.Duration) {
			collector.RecordCopy(strategyName, stats.FilesCopied, stats.BytesCopied, duration)
		},
	})

	return e, nil
}

// baseOptionsFromConfig builds the strategy.Options baseline a loaded
// Configuration implies, starting from strategy.DefaultOptions() and
// overlaying §6.4's knobs: enable_zero_copy, buffer_size and the
// features.* block (verification, progress reporting). enable_memory_mapping/
// memory_mapping_threshold have no corresponding strategy in this copy
// core to hand them to, so they stay parsed-and-validated only, same as
// on the teacher's own config surface for settings a given build doesn't
// implement.
func baseOptionsFromConfig(cfg *config.Configuration) strategy.Options {
	opts := strategy.DefaultOptions()
	opts.EnableZeroCopy = cfg.EnableZeroCopy
	if cfg.BufferSize > 0 {
		opts.BufferSizeOverride = cfg.BufferSize
	}

	opts.VerifyCopy = cfg.Features.EnableVerification && cfg.Features.VerificationAlgorithm != "none"
	if cfg.Features.EnableProgressReporting {
		if cfg.Features.ProgressInterval > 0 {
			opts.ProgressInterval = cfg.Features.ProgressInterval
		}
	} else {
		// No per-sample suppression knob exists below Options; space
		// emission out far enough that it's effectively disabled instead
		// of adding an EnableProgress bool every strategy has to check.
		opts.ProgressInterval = time.Hour
	}

	return opts
}

// Start launches the executor's run loop and the resume store's cleanup
// sweep as background goroutines bound to ctx, plus a gauge-sampling
// loop for the metrics collector. Start must not be called twice without
// an intervening Stop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("engine: already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.runCancel = cancel

	e.wg.Add(3)
	go func() { defer e.wg.Done(); e.exec.Run(runCtx) }()
	go func() { defer e.wg.Done(); e.resume.Run() }()
	go func() { defer e.wg.Done(); e.pollStats(runCtx) }()

	e.started = true
	e.log.Infof("engine started")
	return nil
}

// Stop cancels the run context and blocks until the executor, resume
// sweep and stats loop have all exited. In-flight tasks observe
// cancellation at their next suspension point, per the cooperative
// cancellation model the executor already implements.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine: not started")
	}
	cancel := e.runCancel
	e.mu.Unlock()

	cancel()
	e.resume.Stop()
	e.wg.Wait()

	e.mu.Lock()
	e.started = false
	e.mu.Unlock()
	return nil
}

// pollStats samples the scheduler's live counts into the metrics
// collector's gauges on a fixed interval rather than on every
// queue/active-map mutation, keeping the hot submit/complete paths free
// of a metrics dependency.
func (e *Engine) pollStats(ctx context.Context) {
	ticker := time.NewTicker(statsPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.metrics.SetQueueDepth(e.sched.QueueLen())
			e.metrics.SetActiveTasks(e.sched.ActiveCount())
		}
	}
}

// Metrics exposes the collector's Prometheus registry so an embedder can
// mount it behind its own HTTP mux; the copy core has no opinion on
// transport.
func (e *Engine) Metrics() *metrics.Collector {
	return e.metrics
}

// Statistics returns the scheduler-wide aggregate counters.
func (e *Engine) Statistics() GlobalStats {
	completed, failed, cancelled, totals := e.sched.Stats.Snapshot()
	return GlobalStats{
		TasksCompleted: completed,
		TasksFailed:    failed,
		TasksCancelled: cancelled,
		Totals:         totals,
	}
}

// GlobalStats is the public statistics snapshot (spec.md §6.1's
// statistics() -> GlobalStats).
type GlobalStats struct {
	TasksCompleted int64
	TasksFailed    int64
	TasksCancelled int64
	Totals         progress.TaskStats
}
