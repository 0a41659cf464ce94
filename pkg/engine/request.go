package engine

import (
	"context"
	"time"

	"github.com/ferrocp/ferrocp/internal/progress"
	"github.com/ferrocp/ferrocp/internal/resume"
	"github.com/ferrocp/ferrocp/internal/scheduler"
	"github.com/ferrocp/ferrocp/internal/strategy"
)

// statusPollInterval is how often Execute polls for a submitted task's
// terminal state. The scheduler has no blocking "wait for completion"
// primitive of its own (Get is a non-blocking map lookup), so Execute
// layers a bounded poll on top rather than adding one more suspension
// point to the scheduler itself.
const statusPollInterval = 50 * time.Millisecond

// TaskID identifies one submitted copy task, the scheduler's CopyTask.ID
// under a public name that doesn't leak an internal package type.
type TaskID string

// TaskStatus is a task's lifecycle state (pending/running/paused/
// completed/failed/cancelled).
type TaskStatus = scheduler.Status

// CopyRequest builds the parameters for a single file copy: the fields
// of strategy.Options an embedder is allowed to tune, plus the
// scheduling priority and optional resume behavior.
type CopyRequest struct {
	Source       string
	Destination  string
	Priority     scheduler.Priority
	Options      strategy.Options
	RequestID    string
	EnableResume bool
}

// NewCopyRequest builds a request with the copy core's default options
// and normal priority.
func NewCopyRequest(source, destination string) *CopyRequest {
	return &CopyRequest{
		Source:      source,
		Destination: destination,
		Priority:    scheduler.PriorityNormal,
		Options:     strategy.DefaultOptions(),
	}
}

// WithPriority overrides the default scheduling priority.
func (r *CopyRequest) WithPriority(p scheduler.Priority) *CopyRequest {
	r.Priority = p
	return r
}

// WithOptions overrides the default strategy options wholesale.
func (r *CopyRequest) WithOptions(opts strategy.Options) *CopyRequest {
	r.Options = opts
	return r
}

// WithResume enables the resume store for this request. requestID must
// stay stable across a caller's retries of the same logical copy so a
// later Submit can find the record a prior failed attempt left behind.
func (r *CopyRequest) WithResume(requestID string) *CopyRequest {
	r.EnableResume = true
	r.RequestID = requestID
	return r
}

// CopyResult is the terminal outcome of an Execute call.
type CopyResult struct {
	TaskID       TaskID
	Status       TaskStatus
	Stats        progress.TaskStats
	ErrorMessage string
	Duration     time.Duration
}

// taskMeta is the bookkeeping Submit stashes per resume-enabled task so
// onOutcome can build a resume.Record on failure without re-deriving the
// source/destination pair from the scheduler.
type taskMeta struct {
	source       string
	destination  string
	enableResume bool
}

// Submit enqueues req and returns its TaskID without waiting for the
// copy to run (spec.md §6.1's submit()). A resume-enabled request whose
// RequestID matches a valid on-disk record is transparently rewritten to
// resume at that record's options rather than starting over.
func (e *Engine) Submit(req *CopyRequest) (TaskID, error) {
	opts := req.Options
	if opts == strategy.DefaultOptions() {
		// The caller never customized Options away from NewCopyRequest's
		// baseline, so the engine's own configuration (§6.4) governs
		// instead of the package-level hardcoded defaults.
		opts = e.baseOptions
	}
	if req.RequestID != "" {
		opts.TaskID = req.RequestID
	}

	if req.EnableResume && opts.TaskID != "" {
		if rec, ok := e.resume.Resolve(opts.TaskID, req.Source); ok {
			opts = rec.Options
			opts.TaskID = rec.RequestID
			opts.ResumeOffset = rec.BytesTransferred
			e.log.Infof("resuming task_id=%s bytes_transferred=%d/%d", rec.RequestID, rec.BytesTransferred, rec.TotalSize)
		}
	}

	task, err := e.sched.Submit(req.Source, req.Destination, req.Priority, opts)
	if err != nil {
		return "", err
	}

	if req.EnableResume {
		e.metaMu.Lock()
		e.meta[task.ID] = taskMeta{source: req.Source, destination: req.Destination, enableResume: true}
		e.metaMu.Unlock()
	}

	return TaskID(task.ID), nil
}

// Execute submits req and blocks until it reaches a terminal state or
// ctx is cancelled (spec.md §6.1's submit-then-wait execute()).
func (e *Engine) Execute(ctx context.Context, req *CopyRequest) (CopyResult, error) {
	id, err := e.Submit(req)
	if err != nil {
		return CopyResult{}, err
	}

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return CopyResult{}, ctx.Err()
		case <-ticker.C:
			task, ok := e.sched.Get(string(id))
			if !ok {
				continue
			}
			snap := task.Snapshot()
			if !isTerminal(snap.Status) {
				continue
			}
			return resultFromSnapshot(id, snap), nil
		}
	}
}

func isTerminal(s TaskStatus) bool {
	switch s {
	case scheduler.StatusCompleted, scheduler.StatusFailed, scheduler.StatusCancelled:
		return true
	default:
		return false
	}
}

func resultFromSnapshot(id TaskID, snap scheduler.Snapshot) CopyResult {
	res := CopyResult{
		TaskID: id,
		Status: snap.Status,
		Stats:  snap.Stats,
	}
	if !snap.StartedAt.IsZero() && !snap.CompletedAt.IsZero() {
		res.Duration = snap.CompletedAt.Sub(snap.StartedAt)
	}
	if snap.Err != nil {
		res.ErrorMessage = snap.Err.Error()
	}
	return res
}

// GetStatus returns a task's current lifecycle state.
func (e *Engine) GetStatus(taskID TaskID) (TaskStatus, bool) {
	task, ok := e.sched.Get(string(taskID))
	if !ok {
		return 0, false
	}
	return task.Status(), true
}

// Cancel requests cancellation of a pending or running task.
func (e *Engine) Cancel(taskID TaskID) bool {
	return e.sched.Cancel(string(taskID))
}

// Pause flips a running task's status to paused, taking effect at the
// executor's next chunk-boundary check.
func (e *Engine) Pause(taskID TaskID) bool {
	return e.sched.Pause(string(taskID))
}

// Resume flips a paused task back to running.
func (e *Engine) Resume(taskID TaskID) bool {
	return e.sched.Resume(string(taskID))
}

// onOutcome is wired into the executor's Hooks.OnOutcome: it records the
// terminal status in metrics, tears down the task's progress sink, and
// for resume-enabled tasks either clears the on-disk record (success) or
// writes one from the task's last known progress (failure).
func (e *Engine) onOutcome(taskID, status string) {
	e.metrics.RecordTaskOutcome(status)

	last, hadSample := e.sinkLastSample(taskID)
	e.closeSink(taskID)

	e.metaMu.Lock()
	meta, ok := e.meta[taskID]
	delete(e.meta, taskID)
	e.metaMu.Unlock()
	if !ok || !meta.enableResume {
		return
	}

	if status == "completed" {
		if err := e.resume.Delete(taskID); err != nil {
			e.log.Warnf("resume: delete record task_id=%s: %v", taskID, err)
		}
		return
	}
	if status != "failed" {
		// Cancellation leaves any existing record in place: the caller
		// may resubmit with the same request id later.
		return
	}

	task, ok := e.sched.Get(taskID)
	if !ok {
		return
	}
	var bytesTransferred int64
	if hadSample {
		bytesTransferred = last.OverallBytes
	}
	rec, err := resume.NewRecord(taskID, meta.source, meta.destination, bytesTransferred, 0, task.Snapshot().RetryCount, task.Options, false)
	if err != nil {
		e.log.Warnf("resume: build record task_id=%s: %v", taskID, err)
		return
	}
	if err := e.resume.Save(rec); err != nil {
		e.log.Warnf("resume: save record task_id=%s: %v", taskID, err)
	}
}
