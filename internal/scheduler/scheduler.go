package scheduler

import (
	"strconv"
	"sync"
	"time"

	"github.com/ferrocp/ferrocp/internal/progress"
	"github.com/ferrocp/ferrocp/internal/strategy"
	"github.com/ferrocp/ferrocp/pkg/ferrors"
)

// Config tunes queue capacity and completed-task retention.
type Config struct {
	MaxQueueSize      int
	CompletedRetention time.Duration
}

// DefaultConfig returns the §4.6 defaults.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize:       1000,
		CompletedRetention: time.Hour,
	}
}

// Scheduler owns the pending queue plus the active and completed task
// maps, each behind its own lock so a long-held queue lock never blocks
// a status lookup against an already-running task, and vice versa.
type Scheduler struct {
	cfg Config

	queueMu sync.Mutex
	queue   *taskQueue
	notify  chan struct{}

	activeMu sync.RWMutex
	active   map[string]*CopyTask

	completedMu sync.RWMutex
	completed   map[string]*CopyTask

	Stats *progress.GlobalStats
}

// New constructs a Scheduler with the given config.
func New(cfg Config) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		queue:     newTaskQueue(),
		notify:    make(chan struct{}, 1),
		active:    make(map[string]*CopyTask),
		completed: make(map[string]*CopyTask),
		Stats:     &progress.GlobalStats{},
	}
}

// Submit enqueues a new copy request. It fails with CodeQueueFull once
// the pending queue is at MaxQueueSize.
func (s *Scheduler) Submit(source, destination string, priority Priority, opts strategy.Options) (*CopyTask, error) {
	task := newTask(source, destination, priority, opts)

	s.queueMu.Lock()
	if s.queue.Len() >= s.cfg.MaxQueueSize {
		s.queueMu.Unlock()
		return nil, ferrors.New(ferrors.CodeQueueFull, "pending queue at capacity").
			WithComponent("scheduler").WithContext("max_queue_size", strconv.Itoa(s.cfg.MaxQueueSize))
	}
	s.queue.push(task)
	s.queueMu.Unlock()

	s.wake()
	return task, nil
}

// wake signals a blocked GetNext that a new task may be available,
// without blocking itself if a signal is already pending.
func (s *Scheduler) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// GetNext pops the highest-priority, oldest-submitted pending task, or
// nil if the queue is currently empty. It never blocks; callers that
// want to wait for work use Notify().
func (s *Scheduler) GetNext() *CopyTask {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return s.queue.pop()
}

// Notify returns the channel the executor selects on to wake up when a
// new task is submitted.
func (s *Scheduler) Notify() <-chan struct{} { return s.notify }

// MarkStarted transitions a task from pending to running and makes it
// visible in the active map.
func (s *Scheduler) MarkStarted(task *CopyTask, cancel func()) {
	task.mu.Lock()
	task.status = StatusRunning
	task.startedAt = time.Now()
	task.cancel = cancel
	task.mu.Unlock()

	s.activeMu.Lock()
	s.active[task.ID] = task
	s.activeMu.Unlock()
}

// MarkCompleted finalizes a task successfully, recording its stats and
// moving it into the completed map.
func (s *Scheduler) MarkCompleted(task *CopyTask, stats progress.TaskStats) {
	task.mu.Lock()
	task.status = StatusCompleted
	task.completedAt = time.Now()
	task.stats = stats
	task.mu.Unlock()

	s.finish(task)
	s.Stats.RecordCompletion(stats)
}

// MarkFailed finalizes a task as terminally failed.
func (s *Scheduler) MarkFailed(task *CopyTask, err error) {
	task.mu.Lock()
	task.status = StatusFailed
	task.completedAt = time.Now()
	task.lastErr = err
	task.mu.Unlock()

	s.finish(task)
	s.Stats.RecordFailure()
}

// MarkCancelled finalizes a task as cancelled.
func (s *Scheduler) MarkCancelled(task *CopyTask) {
	task.mu.Lock()
	task.status = StatusCancelled
	task.completedAt = time.Now()
	task.mu.Unlock()

	s.finish(task)
	s.Stats.RecordCancellation()
}

// finish moves task out of the active map and into the completed map,
// pruning entries older than CompletedRetention as it goes.
func (s *Scheduler) finish(task *CopyTask) {
	s.activeMu.Lock()
	delete(s.active, task.ID)
	s.activeMu.Unlock()

	s.completedMu.Lock()
	s.completed[task.ID] = task
	s.pruneCompletedLocked()
	s.completedMu.Unlock()
}

func (s *Scheduler) pruneCompletedLocked() {
	cutoff := time.Now().Add(-s.cfg.CompletedRetention)
	for id, t := range s.completed {
		t.mu.RLock()
		done := t.completedAt
		t.mu.RUnlock()
		if done.Before(cutoff) {
			delete(s.completed, id)
		}
	}
}

// Cancel stops a task: if still pending, it is removed from the queue
// and marked Cancelled directly; if active, its cancellation signal
// fires and the executor observes it at the next suspension point.
func (s *Scheduler) Cancel(id string) bool {
	s.queueMu.Lock()
	var pending *CopyTask
	for _, t := range s.queue.items {
		if t.ID == id {
			pending = t
			break
		}
	}
	removed := s.queue.remove(id)
	s.queueMu.Unlock()
	if removed {
		s.MarkCancelled(pending)
		return true
	}

	s.activeMu.RLock()
	task, ok := s.active[id]
	s.activeMu.RUnlock()
	if !ok {
		return false
	}

	task.mu.Lock()
	cancel := task.cancel
	task.status = StatusCancelled
	task.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

// Pause flips a running task's status to Paused and closes its pause
// gate, so the strategy's own suspension-point check (ctx.Err()'s
// counterpart for pause) blocks at the next chunk boundary instead of
// running to completion behind the status flag.
func (s *Scheduler) Pause(id string) bool {
	s.activeMu.RLock()
	task, ok := s.active[id]
	s.activeMu.RUnlock()
	if !ok {
		return false
	}
	task.mu.Lock()
	defer task.mu.Unlock()
	if task.status != StatusRunning {
		return false
	}
	task.status = StatusPaused
	task.pauseGate.Store(make(chan struct{}))
	return true
}

// Resume flips a paused task back to Running and opens its pause gate,
// releasing the strategy goroutine blocked at its suspension point.
func (s *Scheduler) Resume(id string) bool {
	s.activeMu.RLock()
	task, ok := s.active[id]
	s.activeMu.RUnlock()
	if !ok {
		return false
	}
	task.mu.Lock()
	if task.status != StatusPaused {
		task.mu.Unlock()
		return false
	}
	task.status = StatusRunning
	gate, _ := task.pauseGate.Load().(chan struct{})
	task.mu.Unlock()
	close(gate)
	return true
}

// QueueLen reports how many tasks are currently pending, for a metrics
// gauge or a CLI's queue-depth readout.
func (s *Scheduler) QueueLen() int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return s.queue.Len()
}

// ActiveCount reports how many tasks are currently running.
func (s *Scheduler) ActiveCount() int {
	s.activeMu.RLock()
	defer s.activeMu.RUnlock()
	return len(s.active)
}

// Get looks up a task by ID across the active and completed maps (a
// still-pending task has no entry until the executor marks it started,
// matching §4.6's "active-task map" scope).
func (s *Scheduler) Get(id string) (*CopyTask, bool) {
	s.activeMu.RLock()
	if t, ok := s.active[id]; ok {
		s.activeMu.RUnlock()
		return t, true
	}
	s.activeMu.RUnlock()

	s.completedMu.RLock()
	defer s.completedMu.RUnlock()
	t, ok := s.completed[id]
	return t, ok
}
