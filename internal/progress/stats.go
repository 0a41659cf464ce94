package progress

import (
	"sync"
	"time"
)

// TaskStats is the cumulative counters for a single completed or
// in-flight task (§3's CopyStats).
type TaskStats struct {
	FilesCopied        int64
	DirectoriesCreated int64
	BytesCopied        int64
	FilesSkipped       int64
	Errors             int64
	Duration           time.Duration
	ZeroCopyOperations int64
}

// Add folds other into t, used when a parallel strategy's workers each
// keep local stats that are merged at task completion.
func (t *TaskStats) Add(other TaskStats) {
	t.FilesCopied += other.FilesCopied
	t.DirectoriesCreated += other.DirectoriesCreated
	t.BytesCopied += other.BytesCopied
	t.FilesSkipped += other.FilesSkipped
	t.Errors += other.Errors
	t.ZeroCopyOperations += other.ZeroCopyOperations
}

// GlobalStats is the scheduler-wide aggregate: eventually consistent sum
// of every finalized task's TaskStats. A reader may observe a task's
// contribution up to one tick after that task's terminal state.
type GlobalStats struct {
	mu sync.RWMutex

	TasksCompleted int64
	TasksFailed    int64
	TasksCancelled int64
	totals         TaskStats
}

// RecordCompletion folds a finished task's stats into the aggregate.
func (g *GlobalStats) RecordCompletion(stats TaskStats) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.TasksCompleted++
	g.totals.Add(stats)
}

// RecordFailure counts a terminal failure without folding partial stats
// in (the executor reports what was safely transferred separately, via
// RecordCompletion, if the partial destination is kept).
func (g *GlobalStats) RecordFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.TasksFailed++
}

// RecordCancellation counts a cooperative cancellation.
func (g *GlobalStats) RecordCancellation() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.TasksCancelled++
}

// Snapshot returns a copy of the current aggregate counters.
func (g *GlobalStats) Snapshot() (completed, failed, cancelled int64, totals TaskStats) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.TasksCompleted, g.TasksFailed, g.TasksCancelled, g.totals
}
