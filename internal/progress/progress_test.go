package progress

import (
	"testing"
	"time"
)

func TestRateTrackerSmoothsInstantReadings(t *testing.T) {
	start := time.Unix(0, 0)
	r := NewRateTracker(start)

	// 1 MiB/s for the first second.
	rate := r.Observe(start.Add(time.Second), 1024*1024)
	if rate <= 0 {
		t.Fatalf("expected positive rate, got %v", rate)
	}

	// A much faster burst should pull the EWMA up, not jump straight to it.
	fast := r.Observe(start.Add(2*time.Second), 1024*1024+50*1024*1024)
	if fast <= rate {
		t.Fatalf("expected rate to increase, before=%v after=%v", rate, fast)
	}
	if fast >= 50 {
		t.Fatalf("expected EWMA smoothing to damp the instant reading, got %v", fast)
	}
}

func TestRateTrackerIgnoresTooCloseReadings(t *testing.T) {
	start := time.Unix(0, 0)
	r := NewRateTracker(start)
	r.Observe(start.Add(time.Second), 1024*1024)
	before := r.Rate()

	r.Observe(start.Add(time.Second+time.Microsecond), 999)
	if r.Rate() != before {
		t.Fatalf("expected near-simultaneous reading to be ignored")
	}
}

func TestETAUndefinedWhenRateZero(t *testing.T) {
	if _, ok := ETA(1000, 0); ok {
		t.Fatalf("expected no ETA when rate is zero")
	}
	if _, ok := ETA(1000, -5); ok {
		t.Fatalf("expected no ETA when rate is negative")
	}
}

func TestETAComputation(t *testing.T) {
	eta, ok := ETA(10*1024*1024, 10) // 10 MiB remaining at 10 MB/s
	if !ok {
		t.Fatalf("expected a defined ETA")
	}
	if eta < 900*time.Millisecond || eta > 1100*time.Millisecond {
		t.Fatalf("expected ~1s ETA, got %v", eta)
	}
}

func TestGlobalStatsAggregation(t *testing.T) {
	var g GlobalStats
	g.RecordCompletion(TaskStats{FilesCopied: 1, BytesCopied: 100})
	g.RecordCompletion(TaskStats{FilesCopied: 2, BytesCopied: 200})
	g.RecordFailure()
	g.RecordCancellation()

	completed, failed, cancelled, totals := g.Snapshot()
	if completed != 2 || failed != 1 || cancelled != 1 {
		t.Fatalf("unexpected counts: completed=%d failed=%d cancelled=%d", completed, failed, cancelled)
	}
	if totals.FilesCopied != 3 || totals.BytesCopied != 300 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestSinkFuncAdapts(t *testing.T) {
	var got Sample
	sink := SinkFunc(func(s Sample) { got = s })
	sink.Emit(Sample{TaskID: "t-1"})
	if got.TaskID != "t-1" {
		t.Fatalf("expected sink to receive sample, got %+v", got)
	}
}
