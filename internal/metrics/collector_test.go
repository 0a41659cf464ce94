package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollectorRegistersAllSeries(t *testing.T) {
	c := NewCollector(DefaultConfig())
	if c.Registry() == nil {
		t.Fatal("expected a non-nil registry")
	}

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected registered series to appear even before any are observed")
	}
}

func TestRecordCopyUpdatesCountersAndHistogram(t *testing.T) {
	c := NewCollector(DefaultConfig())
	c.RecordCopy("micro", 1, 4096, 5*time.Millisecond)

	if got := testutil.ToFloat64(c.filesCopied); got != 1 {
		t.Fatalf("expected files_copied_total=1, got %v", got)
	}
	if got := testutil.ToFloat64(c.bytesCopied); got != 4096 {
		t.Fatalf("expected bytes_copied_total=4096, got %v", got)
	}
}

func TestRecordZeroCopySplitsSuccessAndFallback(t *testing.T) {
	c := NewCollector(DefaultConfig())
	c.RecordZeroCopy(true)
	c.RecordZeroCopy(false)
	c.RecordZeroCopy(false)

	if got := testutil.ToFloat64(c.zeroCopyOps); got != 1 {
		t.Fatalf("expected 1 zero-copy success, got %v", got)
	}
	if got := testutil.ToFloat64(c.zeroCopyFallback); got != 2 {
		t.Fatalf("expected 2 zero-copy fallbacks, got %v", got)
	}
}

func TestRecordStrategySelectionLabelsByStrategy(t *testing.T) {
	c := NewCollector(DefaultConfig())
	c.RecordStrategySelection("parallel")
	c.RecordStrategySelection("parallel")
	c.RecordStrategySelection("micro")

	if got := testutil.ToFloat64(c.strategySelects.WithLabelValues("parallel")); got != 2 {
		t.Fatalf("expected 2 parallel selections, got %v", got)
	}
	if got := testutil.ToFloat64(c.strategySelects.WithLabelValues("micro")); got != 1 {
		t.Fatalf("expected 1 micro selection, got %v", got)
	}
}

func TestQueueAndActiveGaugesReflectLastSetValue(t *testing.T) {
	c := NewCollector(DefaultConfig())
	c.SetQueueDepth(7)
	c.SetActiveTasks(3)

	if got := testutil.ToFloat64(c.queueDepth); got != 7 {
		t.Fatalf("expected queue_depth=7, got %v", got)
	}
	if got := testutil.ToFloat64(c.activeTasks); got != 3 {
		t.Fatalf("expected active_tasks=3, got %v", got)
	}
}

func TestTaskOutcomeCounterByStatus(t *testing.T) {
	c := NewCollector(DefaultConfig())
	c.RecordTaskOutcome("completed")
	c.RecordTaskOutcome("failed")
	c.RecordTaskOutcome("completed")

	if got := testutil.ToFloat64(c.taskOutcomes.WithLabelValues("completed")); got != 2 {
		t.Fatalf("expected 2 completed outcomes, got %v", got)
	}
	if got := testutil.ToFloat64(c.taskOutcomes.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failed outcome, got %v", got)
	}
}
