// Package scheduler implements the copy core's task lifecycle and
// execution (C6): a bounded priority queue, independently-locked
// pending/active/completed task maps, and a concurrency-capped executor
// with cooperative cancellation and a classify-then-retry policy.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ferrocp/ferrocp/internal/progress"
	"github.com/ferrocp/ferrocp/internal/strategy"
)

// Priority is a submission's scheduling weight; higher sorts first.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 5
	PriorityHigh     Priority = 10
	PriorityCritical Priority = 20
)

// Status is a CopyTask's lifecycle state: Pending -> Running <-> Paused
// -> {Completed, Failed, Cancelled}.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusPaused
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var taskIDCounter uint64

// generateTaskID mirrors the teacher's counter+timestamp scheme for
// collision-free IDs without a UUID dependency nothing else in the pack
// pulls in.
func generateTaskID() string {
	n := atomic.AddUint64(&taskIDCounter, 1)
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), n)
}

// CopyTask is one submitted copy request moving through the scheduler.
type CopyTask struct {
	ID          string
	Source      string
	Destination string
	Priority    Priority
	Options     strategy.Options
	SubmittedAt time.Time

	mu          sync.RWMutex
	status      Status
	startedAt   time.Time
	completedAt time.Time
	stats       progress.TaskStats
	lastErr     error
	retryCount  int
	cancel      context.CancelFunc
	pauseGate   atomic.Value // chan struct{}, closed while the task may proceed
}

// newTask constructs a pending CopyTask ready for submission.
func newTask(source, destination string, priority Priority, opts strategy.Options) *CopyTask {
	if opts.TaskID == "" {
		opts.TaskID = generateTaskID()
	}
	t := &CopyTask{
		ID:          opts.TaskID,
		Source:      source,
		Destination: destination,
		Priority:    priority,
		Options:     opts,
		SubmittedAt: time.Now(),
		status:      StatusPending,
	}
	open := make(chan struct{})
	close(open)
	t.pauseGate.Store(open)
	return t
}

// waitIfPaused blocks until the task's pause gate is open (i.e. it is
// not Paused) or ctx is done, whichever comes first. Installed into the
// strategy's context as its pause suspension point, so a paused task's
// copy goroutine genuinely stops making progress instead of running to
// completion behind the status flag (§3: only Running transitions to
// Paused, only Paused back to Running).
func (t *CopyTask) waitIfPaused(ctx context.Context) error {
	gate, _ := t.pauseGate.Load().(chan struct{})
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the task's current lifecycle state.
func (t *CopyTask) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Snapshot is an immutable view of a CopyTask safe to hand to callers
// outside the scheduler's lock.
type Snapshot struct {
	ID          string
	Source      string
	Destination string
	Priority    Priority
	Status      Status
	SubmittedAt time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	Stats       progress.TaskStats
	Err         error
	RetryCount  int
}

// Snapshot copies out a CopyTask's observable state under its own lock.
func (t *CopyTask) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		ID:          t.ID,
		Source:      t.Source,
		Destination: t.Destination,
		Priority:    t.Priority,
		Status:      t.status,
		SubmittedAt: t.SubmittedAt,
		StartedAt:   t.startedAt,
		CompletedAt: t.completedAt,
		Stats:       t.stats,
		Err:         t.lastErr,
		RetryCount:  t.retryCount,
	}
}
