package scheduler

import (
	"testing"
	"time"

	"github.com/ferrocp/ferrocp/internal/strategy"
)

func mkTask(id string, priority Priority, submittedAt time.Time) *CopyTask {
	t := newTask("src-"+id, "dst-"+id, priority, strategy.Options{TaskID: id})
	t.SubmittedAt = submittedAt
	return t
}

// TestPriorityOrdering is property #6: a High submitted after a Low is
// still returned first.
func TestPriorityOrdering(t *testing.T) {
	q := newTaskQueue()
	t0 := time.Now()
	t1 := t0.Add(time.Millisecond)

	low := mkTask("low", PriorityLow, t0)
	high := mkTask("high", PriorityHigh, t1)

	q.push(low)
	q.push(high)

	got := q.pop()
	if got.ID != "high" {
		t.Fatalf("expected high priority task first, got %s", got.ID)
	}
	got = q.pop()
	if got.ID != "low" {
		t.Fatalf("expected low priority task second, got %s", got.ID)
	}
}

// TestFIFOTieBreak is property #7: equal priority submissions come out
// in submission order.
func TestFIFOTieBreak(t *testing.T) {
	q := newTaskQueue()
	t0 := time.Now()
	t1 := t0.Add(time.Millisecond)

	first := mkTask("first", PriorityNormal, t0)
	second := mkTask("second", PriorityNormal, t1)

	q.push(second)
	q.push(first)

	got := q.pop()
	if got.ID != "first" {
		t.Fatalf("expected first-submitted task first, got %s", got.ID)
	}
	got = q.pop()
	if got.ID != "second" {
		t.Fatalf("expected second-submitted task second, got %s", got.ID)
	}
}

func TestQueuePopEmptyReturnsNil(t *testing.T) {
	q := newTaskQueue()
	if got := q.pop(); got != nil {
		t.Fatalf("expected nil from an empty queue, got %v", got)
	}
}

func TestQueueRemove(t *testing.T) {
	q := newTaskQueue()
	a := mkTask("a", PriorityNormal, time.Now())
	b := mkTask("b", PriorityNormal, time.Now().Add(time.Millisecond))
	q.push(a)
	q.push(b)

	if !q.remove("a") {
		t.Fatalf("expected remove to find task a")
	}
	if q.remove("a") {
		t.Fatalf("expected second remove of task a to fail")
	}
	got := q.pop()
	if got.ID != "b" {
		t.Fatalf("expected remaining task to be b, got %s", got.ID)
	}
}
