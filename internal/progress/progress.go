// Package progress implements the copy core's progress and statistics
// surface (C7): per-task progress samples with an EWMA transfer rate and
// ETA, plus scheduler-wide aggregate counters.
package progress

import (
	"sync"
	"time"
)

// Sample is a single progress emission. Samples are values, copied on
// emission so a slow consumer never holds a reference into shared state.
type Sample struct {
	TaskID            string
	CurrentFile       string
	CurrentFileBytes  int64
	CurrentFileTotal  int64
	OverallBytes      int64
	OverallTotal      int64
	TransferRateMBps  float64
	ETA               time.Duration
	HasETA            bool
	Timestamp         time.Time
}

// ewmaAlpha is the smoothing factor §4.7 names for the transfer-rate EWMA.
const ewmaAlpha = 0.3

// RateTracker maintains an EWMA of transfer rate, used by every strategy
// to compute the rate field of the samples it emits and by AdaptiveBuffer
// callers to get a throughput reading for Adapt. Each Observe reading at
// least 1ms after the previous one is one EWMA step; readings are not
// grouped into fixed 1-second windows.
type RateTracker struct {
	mu          sync.Mutex
	lastSample  time.Time
	lastBytes   int64
	rateMBps    float64
	initialized bool
}

// NewRateTracker constructs a tracker starting at now with zero bytes
// transferred so far.
func NewRateTracker(now time.Time) *RateTracker {
	return &RateTracker{lastSample: now}
}

// Observe folds a new (timestamp, cumulative bytes) reading into the EWMA
// and returns the current smoothed rate in MB/s. Readings closer together
// than 1ms are ignored to avoid a divide-by-near-zero spike.
func (r *RateTracker) Observe(now time.Time, cumulativeBytes int64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := now.Sub(r.lastSample)
	if elapsed < time.Millisecond {
		return r.rateMBps
	}
	deltaBytes := cumulativeBytes - r.lastBytes
	instant := (float64(deltaBytes) / (1024 * 1024)) / elapsed.Seconds()

	if !r.initialized {
		r.rateMBps = instant
		r.initialized = true
	} else {
		r.rateMBps = ewmaAlpha*instant + (1-ewmaAlpha)*r.rateMBps
	}
	r.lastSample = now
	r.lastBytes = cumulativeBytes
	return r.rateMBps
}

// Rate returns the last computed smoothed rate without taking a new
// reading.
func (r *RateTracker) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rateMBps
}

// ETA computes remaining_bytes / rate. HasETA is false when rate is zero
// or negative, per §4.7 ("undefined" ETA).
func ETA(remainingBytes int64, rateMBps float64) (time.Duration, bool) {
	if rateMBps <= 0 {
		return 0, false
	}
	remainingMB := float64(remainingBytes) / (1024 * 1024)
	seconds := remainingMB / rateMBps
	return time.Duration(seconds * float64(time.Second)), true
}

// Sink receives progress samples as a strategy emits them. The scheduler
// and the CLI progress bar are both sinks; the copy core only ever
// produces samples, never consumes them.
type Sink interface {
	Emit(Sample)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(Sample)

// Emit implements Sink.
func (f SinkFunc) Emit(s Sample) { f(s) }

// NopSink discards every sample; used by strategies invoked without a
// caller-supplied sink (e.g. in tests).
var NopSink Sink = SinkFunc(func(Sample) {})
