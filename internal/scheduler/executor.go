package scheduler

import (
	"context"
	"os"
	"time"

	"github.com/ferrocp/ferrocp/internal/device"
	"github.com/ferrocp/ferrocp/internal/logging"
	"github.com/ferrocp/ferrocp/internal/progress"
	"github.com/ferrocp/ferrocp/internal/selector"
	"github.com/ferrocp/ferrocp/internal/strategy"
	"github.com/ferrocp/ferrocp/pkg/ferrors"
)

// ExecutorConfig tunes concurrency, retries and the per-task timeout.
type ExecutorConfig struct {
	Concurrency  int
	MaxRetries   int
	RetryDelay   time.Duration
	TaskTimeout  time.Duration
	KeepPartial  bool
}

// DefaultExecutorConfig mirrors §4.6's defaults (concurrency left at the
// CPU count by the caller, since only it knows runtime.NumCPU's value in
// context).
func DefaultExecutorConfig(concurrency int) ExecutorConfig {
	return ExecutorConfig{
		Concurrency: concurrency,
		MaxRetries:  3,
		RetryDelay:  500 * time.Millisecond,
		TaskTimeout: time.Hour,
	}
}

// Executor pulls tasks off a Scheduler's queue, selects a strategy via
// the selector, and runs it under a concurrency permit with cooperative
// cancellation and a classify-then-retry policy.
type Executor struct {
	sched      *Scheduler
	sel        *selector.Selector
	classifier *device.Classifier
	strategies map[selector.StrategyName]strategy.Strategy
	cfg        ExecutorConfig
	log        *logging.Logger
	permits    chan struct{}
	sinkFor    func(taskID string) progress.Sink
	hooks      Hooks
}

// Hooks lets an embedder (pkg/engine's metrics wiring) observe executor
// events without the scheduler package depending on internal/metrics.
// Every field is optional.
type Hooks struct {
	OnSelect   func(taskID, strategyName string)
	OnZeroCopy func(taskID string, succeeded bool)
	OnOutcome  func(taskID, status string)
	OnCopy     func(taskID, strategyName string, stats progress.TaskStats, duration time.Duration)
}

// SetHooks installs observer callbacks. Must be called before Run.
func (e *Executor) SetHooks(h Hooks) {
	e.hooks = h
}

// SetProgressSinkFunc installs a per-task progress sink resolver, used by
// callers (e.g. pkg/engine's ProgressStream) that want to observe a
// task's samples as it runs. Must be called before Run; the zero value
// emits to progress.NopSink.
func (e *Executor) SetProgressSinkFunc(fn func(taskID string) progress.Sink) {
	e.sinkFor = fn
}

func (e *Executor) sinkForTask(taskID string) progress.Sink {
	if e.sinkFor == nil {
		return progress.NopSink
	}
	if s := e.sinkFor(taskID); s != nil {
		return s
	}
	return progress.NopSink
}

// NewExecutor wires a Scheduler to a Selector and the four concrete
// strategy implementations. The buffered strategy implementation is
// shared between the plain-buffered and buffered-zero-copy selector
// outcomes: it attempts zero-copy internally whenever opts.EnableZeroCopy
// is set and falls back to the streaming copy loop on its own.
func NewExecutor(sched *Scheduler, sel *selector.Selector, cfg ExecutorConfig, log *logging.Logger) *Executor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	buffered := strategy.NewBufferedStrategy()
	return &Executor{
		sched:      sched,
		sel:        sel,
		classifier: device.NewClassifier(),
		strategies: map[selector.StrategyName]strategy.Strategy{
			selector.StrategyMicro:            strategy.NewMicroStrategy(),
			selector.StrategyBuffered:         buffered,
			selector.StrategyBufferedZeroCopy: buffered,
			selector.StrategyParallel:         strategy.NewParallelStrategy(),
		},
		cfg:     cfg,
		log:     log,
		permits: make(chan struct{}, cfg.Concurrency),
	}
}

// Run drives the executor until ctx is cancelled, dispatching tasks to
// goroutines as permits and pending work become available.
func (e *Executor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task := e.sched.GetNext()
		if task == nil {
			select {
			case <-ctx.Done():
				return
			case <-e.sched.Notify():
				continue
			case <-time.After(time.Second):
				continue
			}
		}

		select {
		case e.permits <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func(t *CopyTask) {
			defer func() { <-e.permits }()
			e.execute(ctx, t)
		}(task)
	}
}

// execute runs one task to a terminal state, retrying retryable
// failures up to MaxRetries with RetryDelay between attempts.
func (e *Executor) execute(parent context.Context, task *CopyTask) {
	taskCtx, cancel := context.WithTimeout(parent, e.cfg.TaskTimeout)
	defer cancel()
	e.sched.MarkStarted(task, cancel)

	opts := task.Options
	opts.TaskID = task.ID
	opts = e.fillDeviceProfiles(task, opts)

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if taskCtx.Err() != nil {
			e.finishCancelled(task)
			return
		}

		strat, _ := e.selectStrategy(task, opts)
		impl, ok := e.strategies[strat]
		if !ok {
			impl = e.strategies[selector.StrategyBuffered]
		}
		if e.hooks.OnSelect != nil {
			e.hooks.OnSelect(task.ID, string(strat))
		}

		start := time.Now()
		copyCtx := strategy.WithPauseWaiter(taskCtx, task.waitIfPaused)
		stats, err := impl.Copy(copyCtx, task.Source, task.Destination, opts, e.sinkForTask(task.ID))
		duration := time.Since(start)

		if err == nil {
			e.sel.RecordSample(sizeOf(task.Source), strat, stats.BytesCopied, duration)
			e.sched.MarkCompleted(task, stats)
			if e.hooks.OnZeroCopy != nil && stats.ZeroCopyOperations > 0 {
				e.hooks.OnZeroCopy(task.ID, true)
			}
			if e.hooks.OnCopy != nil {
				e.hooks.OnCopy(task.ID, string(strat), stats, duration)
			}
			if e.hooks.OnOutcome != nil {
				e.hooks.OnOutcome(task.ID, "completed")
			}
			return
		}
		lastErr = err

		// A strategy reports its own mid-copy ctx.Err() as CodeCancelled
		// regardless of cause; the per-task deadline expiring is
		// distinguished here and reclassified as the retryable TimedOut
		// §4.6 names, rather than the terminal Cancelled a caller-driven
		// Scheduler.Cancel produces.
		if fe, ok := ferrors.As(err); ok && fe.Code == ferrors.CodeCancelled {
			if taskCtx.Err() == context.DeadlineExceeded {
				lastErr = ferrors.Wrap(ferrors.CodeTimedOut, "task exceeded timeout", taskCtx.Err()).
					WithComponent("scheduler.executor").WithPath(task.Destination)
				if attempt < e.cfg.MaxRetries {
					task.mu.Lock()
					task.retryCount++
					task.mu.Unlock()
					taskCtx, cancel = context.WithTimeout(parent, e.cfg.TaskTimeout)
					defer cancel()
					// Re-point the task's stored cancel func so an
					// external Scheduler.Cancel still reaches the live
					// context rather than the expired one.
					task.mu.Lock()
					task.cancel = cancel
					task.mu.Unlock()
					continue
				}
				break
			}
			e.finishCancelled(task)
			return
		}
		if fe, ok := ferrors.As(err); ok && fe.Code == ferrors.CodeZeroCopyUnsupported && opts.EnableZeroCopy {
			// Zero-copy-unsupported silently falls back to buffered,
			// not counted as a retry attempt.
			opts.EnableZeroCopy = false
			attempt--
			if e.hooks.OnZeroCopy != nil {
				e.hooks.OnZeroCopy(task.ID, false)
			}
			continue
		}
		if !ferrors.IsRetryable(err) || attempt == e.cfg.MaxRetries {
			break
		}

		task.mu.Lock()
		task.retryCount++
		task.mu.Unlock()
		e.log.Warnf("copy attempt failed, retrying: task_id=%s attempt=%d error=%v", task.ID, attempt, err)

		select {
		case <-time.After(e.cfg.RetryDelay):
		case <-taskCtx.Done():
			e.finishCancelled(task)
			return
		}
	}

	if !e.cfg.KeepPartial {
		_ = os.Remove(task.Destination)
	}
	e.sched.MarkFailed(task, lastErr)
	if e.hooks.OnOutcome != nil {
		e.hooks.OnOutcome(task.ID, "failed")
	}
}

func (e *Executor) finishCancelled(task *CopyTask) {
	if !e.cfg.KeepPartial {
		_ = os.Remove(task.Destination)
	}
	e.sched.MarkCancelled(task)
	if e.hooks.OnOutcome != nil {
		e.hooks.OnOutcome(task.ID, "cancelled")
	}
}

// selectStrategy asks the selector for a strategy. zcEligible is a
// coarse signal for the decision tree only (no network endpoint, caller
// allows zero-copy); the actual dispatch-time eligibility gate (same
// filesystem, platform capability, size bounds) lives in the zero-copy
// dispatcher and degrades to a silent buffered fallback on its own.
func (e *Executor) selectStrategy(task *CopyTask, opts strategy.Options) (selector.StrategyName, bool) {
	size := sizeOf(task.Source)
	zcEligible := opts.EnableZeroCopy && opts.SourceKind != device.Network && opts.DestKind != device.Network
	strat := e.sel.Select(opts.SourceKind, opts.DestKind, size, zcEligible)
	return strat, zcEligible
}

func (e *Executor) fillDeviceProfiles(task *CopyTask, opts strategy.Options) strategy.Options {
	if kind, profile, _, err := e.classifier.Classify(task.Source); err == nil {
		opts.SourceKind = kind
		opts.SourceProfile = profile
	}
	if kind, profile, _, err := e.classifier.Classify(task.Destination); err == nil {
		opts.DestKind = kind
		opts.DestProfile = profile
	}
	if opts.BufferSizeOverride > 0 {
		opts.SourceProfile.OptimalBufferSize = opts.BufferSizeOverride
		opts.DestProfile.OptimalBufferSize = opts.BufferSizeOverride
	}
	return opts
}

func sizeOf(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
