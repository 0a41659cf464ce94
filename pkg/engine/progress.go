package engine

import (
	"sync"

	"github.com/ferrocp/ferrocp/internal/progress"
)

// progressSubscriberBuffer bounds how many unread samples a ProgressStream
// consumer may fall behind by before new samples are dropped for them.
const progressSubscriberBuffer = 16

// fanoutSink is the progress.Sink the executor writes one task's samples
// into. It keeps the most recent sample for resume bookkeeping and fans
// every sample out to whatever ProgressStream channels are currently
// subscribed.
type fanoutSink struct {
	mu      sync.Mutex
	last    progress.Sample
	hasLast bool
	subs    []chan progress.Sample
}

// Emit implements progress.Sink.
func (f *fanoutSink) Emit(s progress.Sample) {
	f.mu.Lock()
	f.last = s
	f.hasLast = true
	subs := append([]chan progress.Sample(nil), f.subs...)
	f.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- s:
		default:
			// A slow subscriber drops samples rather than blocking the
			// copy; ProgressStream is best-effort observability, not a
			// backpressure channel.
		}
	}
}

func (f *fanoutSink) lastSample() (progress.Sample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.hasLast
}

func (f *fanoutSink) subscribe() <-chan progress.Sample {
	ch := make(chan progress.Sample, progressSubscriberBuffer)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch
}

func (f *fanoutSink) closeAll() {
	f.mu.Lock()
	subs := f.subs
	f.subs = nil
	f.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}

// sinkForTask resolves, creating on first use, the fanoutSink backing
// taskID. Installed into the executor via SetProgressSinkFunc.
func (e *Engine) sinkForTask(taskID string) progress.Sink {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()
	s, ok := e.sinks[taskID]
	if !ok {
		s = &fanoutSink{}
		e.sinks[taskID] = s
	}
	return s
}

func (e *Engine) sinkLastSample(taskID string) (progress.Sample, bool) {
	e.sinkMu.Lock()
	s, ok := e.sinks[taskID]
	e.sinkMu.Unlock()
	if !ok {
		return progress.Sample{}, false
	}
	return s.lastSample()
}

// closeSink retires taskID's sink once its task reaches a terminal
// state: subscribers' channels close and the entry is dropped so the
// map doesn't grow without bound across a long-running engine.
func (e *Engine) closeSink(taskID string) {
	e.sinkMu.Lock()
	s, ok := e.sinks[taskID]
	delete(e.sinks, taskID)
	e.sinkMu.Unlock()
	if ok {
		s.closeAll()
	}
}

// ProgressStream is a read-only channel of progress samples for one
// task (spec.md §6.1's progress(TaskId) -> ProgressStream). It closes
// when the task reaches a terminal state.
type ProgressStream = <-chan progress.Sample

// Progress subscribes to a task's progress samples. ok is false if
// taskID is not visible to the scheduler's Get: never submitted, still
// waiting in the pending queue, or already pruned from the scheduler's
// completed-task retention window.
func (e *Engine) Progress(taskID TaskID) (ProgressStream, bool) {
	task, ok := e.sched.Get(string(taskID))
	if !ok {
		return nil, false
	}
	if isTerminal(task.Status()) {
		// The task already finished; no more samples will ever arrive,
		// so hand back a closed channel rather than leaking a sink that
		// nothing will ever emit into or clean up.
		ch := make(chan progress.Sample)
		close(ch)
		return ch, true
	}
	sink := e.sinkForTask(string(taskID))
	return sink.(*fanoutSink).subscribe(), true
}
