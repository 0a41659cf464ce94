package scheduler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ferrocp/ferrocp/internal/logging"
	"github.com/ferrocp/ferrocp/internal/selector"
	"github.com/ferrocp/ferrocp/internal/strategy"
)

func newExecutorForTest(t *testing.T) (*Executor, *Scheduler) {
	t.Helper()
	sched := New(DefaultConfig())
	sel := selector.New(selector.DefaultConfig())
	cfg := DefaultExecutorConfig(2)
	cfg.RetryDelay = time.Millisecond
	log := logging.New(logging.Error, nil)
	exec := NewExecutor(sched, sel, cfg, log)
	return exec, sched
}

func TestExecutorRunsMicroCopyToCompletion(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	content := []byte("hello, executor\n")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	exec, sched := newExecutorForTest(t)
	task, err := sched.Submit(src, dst, PriorityNormal, strategy.Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go exec.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := sched.Get(task.ID); ok && snap.Status() == StatusCompleted {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	snap, ok := sched.Get(task.ID)
	if !ok {
		t.Fatalf("expected task to be findable after completion")
	}
	if snap.Status() != StatusCompleted {
		t.Fatalf("expected Completed, got %v", snap.Status())
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("destination content mismatch")
	}
}

func TestExecutorMarksMissingSourceFailed(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "missing-src")
	dst := filepath.Join(dir, "dst")

	exec, sched := newExecutorForTest(t)
	task, err := sched.Submit(src, dst, PriorityNormal, strategy.Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go exec.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := sched.Get(task.ID); ok && snap.Status() == StatusFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	snap, ok := sched.Get(task.ID)
	if !ok || snap.Status() != StatusFailed {
		t.Fatalf("expected task to reach Failed, got %v (ok=%v)", snap, ok)
	}
	if snap.Snapshot().Err == nil {
		t.Fatalf("expected a recorded error on failure")
	}
}

func TestExecutorCancelStopsTaskBeforeCompletion(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	// Large enough that the parallel/buffered loop has time to observe
	// cancellation before finishing.
	content := make([]byte, 64*1024*1024)
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	exec, sched := newExecutorForTest(t)
	task, err := sched.Submit(src, dst, PriorityNormal, strategy.Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go exec.Run(ctx)

	// Give the executor a moment to pick up and start the task, then
	// cancel it through the scheduler's own API.
	time.Sleep(2 * time.Millisecond)
	sched.Cancel(task.ID)

	deadline := time.Now().Add(2 * time.Second)
	var final Status
	for time.Now().Before(deadline) {
		if snap, ok := sched.Get(task.ID); ok {
			final = snap.Status()
			if final == StatusCancelled || final == StatusCompleted || final == StatusFailed {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	if final != StatusCancelled && final != StatusCompleted {
		t.Fatalf("expected task to end Cancelled (or to have finished first), got %v", final)
	}
}

func TestExecutorPauseSuspendsProgressUntilResumed(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	// Large enough that the parallel/buffered loop has several chunks left
	// to copy after the pause lands, so a buggy pause that doesn't actually
	// suspend the goroutine would very likely finish during the sleep.
	content := make([]byte, 64*1024*1024)
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	exec, sched := newExecutorForTest(t)
	task, err := sched.Submit(src, dst, PriorityNormal, strategy.Options{EnableZeroCopy: false})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go exec.Run(ctx)

	time.Sleep(2 * time.Millisecond)
	if !sched.Pause(task.ID) {
		t.Fatalf("expected pause to find the running task")
	}

	time.Sleep(50 * time.Millisecond)
	if snap, ok := sched.Get(task.ID); !ok || snap.Status() != StatusPaused {
		t.Fatalf("expected task to remain Paused while suspended, got %v (ok=%v)", snap, ok)
	}

	if !sched.Resume(task.ID) {
		t.Fatalf("expected resume to find the paused task")
	}

	deadline := time.Now().Add(5 * time.Second)
	var final Status
	for time.Now().Before(deadline) {
		if snap, ok := sched.Get(task.ID); ok {
			final = snap.Status()
			if final == StatusCompleted || final == StatusFailed {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	if final != StatusCompleted {
		t.Fatalf("expected task to complete after resume, got %v", final)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("destination content mismatch after pause/resume")
	}
}
