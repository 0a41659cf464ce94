// Package selector implements the engine selector (C5): the
// device+size decision table that picks a copy strategy, plus the
// per-bucket rolling performance history that nudges its thresholds
// toward whichever strategy is actually winning on this host.
package selector

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ferrocp/ferrocp/internal/device"
)

// StrategyName identifies one of the four copy strategies by the name
// the selector hands back to the executor; internal/strategy owns the
// concrete implementations.
type StrategyName string

const (
	StrategyMicro           StrategyName = "micro"
	StrategyBuffered        StrategyName = "buffered"
	StrategyBufferedZeroCopy StrategyName = "buffered_zero_copy"
	StrategyParallel        StrategyName = "parallel"
)

// ThresholdSnapshot is the atomically-swapped set of size boundaries the
// selection function reads. In-flight tasks keep using the snapshot they
// observed at selection time even if an adjustment lands mid-copy.
type ThresholdSnapshot struct {
	MicroThreshold             int64
	ZeroCopyPreferenceThreshold int64
	ParallelThreshold          int64
}

// DefaultThresholdSnapshot returns the §4.5 defaults.
func DefaultThresholdSnapshot() ThresholdSnapshot {
	return ThresholdSnapshot{
		MicroThreshold:              4 * 1024,
		ZeroCopyPreferenceThreshold: 64 * 1024,
		ParallelThreshold:           4 * 1024 * 1024,
	}
}

// Config tunes the dynamic threshold adjustment loop.
type Config struct {
	EnableDynamicThresholds         bool
	MinSamplesForAdjustment         int
	PerformanceImprovementThreshold float64
	MinThresholdStep                int64
	MaxThresholdStep                int64
}

// DefaultConfig returns the §4.5/§6.4 defaults.
func DefaultConfig() Config {
	return Config{
		EnableDynamicThresholds:         true,
		MinSamplesForAdjustment:         50,
		PerformanceImprovementThreshold: 0.10,
		MinThresholdStep:                1024,
		MaxThresholdStep:                1024 * 1024,
	}
}

// Bucket is one of the five fixed size buckets the selector keeps
// rolling performance history for.
type Bucket int

const (
	Bucket1KiB Bucket = iota
	Bucket8KiB
	Bucket64KiB
	Bucket1MiB
	BucketLarge
	bucketCount
)

// bucketUpperBounds gives the inclusive upper bound of every bucket
// except BucketLarge, which has none.
var bucketUpperBounds = [...]int64{1024, 8 * 1024, 64 * 1024, 1024 * 1024}

func (b Bucket) String() string {
	switch b {
	case Bucket1KiB:
		return "<=1KiB"
	case Bucket8KiB:
		return "<=8KiB"
	case Bucket64KiB:
		return "<=64KiB"
	case Bucket1MiB:
		return "<=1MiB"
	default:
		return ">1MiB"
	}
}

// bucketFor classifies size into one of the five rolling-history buckets.
func bucketFor(size int64) Bucket {
	for i, upper := range bucketUpperBounds {
		if size <= upper {
			return Bucket(i)
		}
	}
	return BucketLarge
}

// sample is one recorded (strategy, bytes, duration) observation.
type sample struct {
	strategy StrategyName
	bytes    int64
	duration time.Duration
}

// bucketHistory accumulates samples for one bucket until an adjustment
// interval fires, then resets.
type bucketHistory struct {
	mu      sync.Mutex
	samples []sample
}

// meanThroughput returns MB/s per strategy across the accumulated
// samples, and the count observed.
func (h *bucketHistory) meanThroughput() (map[StrategyName]float64, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sums := make(map[StrategyName]float64)
	counts := make(map[StrategyName]int)
	for _, s := range h.samples {
		if s.duration <= 0 {
			continue
		}
		mbps := (float64(s.bytes) / (1024 * 1024)) / s.duration.Seconds()
		sums[s.strategy] += mbps
		counts[s.strategy]++
	}
	means := make(map[StrategyName]float64, len(sums))
	for strat, sum := range sums {
		means[strat] = sum / float64(counts[strat])
	}
	return means, len(h.samples)
}

func (h *bucketHistory) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = nil
}

// Selector implements the §4.5 selection function plus dynamic
// threshold adjustment. Safe for concurrent use: selection reads an
// atomically-swapped snapshot, never the mutable history directly.
type Selector struct {
	cfg       Config
	snapshot  atomic.Value // ThresholdSnapshot
	histories [bucketCount]*bucketHistory
	// lastWinner tracks which strategy most recently won each bucket, so
	// an adjustment only fires on a genuine change of winner.
	lastWinner [bucketCount]StrategyName
}

// New constructs a Selector with the given config and default thresholds.
func New(cfg Config) *Selector {
	s := &Selector{cfg: cfg}
	s.snapshot.Store(DefaultThresholdSnapshot())
	for i := range s.histories {
		s.histories[i] = &bucketHistory{}
	}
	s.lastWinner[Bucket1KiB] = StrategyMicro
	s.lastWinner[Bucket8KiB] = StrategyMicro
	s.lastWinner[Bucket64KiB] = StrategyBuffered
	s.lastWinner[Bucket1MiB] = StrategyBuffered
	s.lastWinner[BucketLarge] = StrategyBuffered
	return s
}

// Snapshot returns the thresholds currently in effect.
func (s *Selector) Snapshot() ThresholdSnapshot {
	return s.snapshot.Load().(ThresholdSnapshot)
}

// Select implements the §4.5 decision tree against a stable snapshot of
// the current thresholds. zeroCopyEligible is the caller's eligibility
// signal; the executor passes a coarse one (zero-copy enabled and neither
// endpoint on a network device) and leaves the same-filesystem, platform
// and size checks to the zero-copy dispatcher.
func (s *Selector) Select(sourceKind, destKind device.Kind, size int64, zeroCopyEligible bool) StrategyName {
	t := s.Snapshot()
	switch {
	case size <= t.MicroThreshold:
		return StrategyMicro
	case zeroCopyEligible && size >= t.ZeroCopyPreferenceThreshold:
		return StrategyBufferedZeroCopy
	case size >= t.ParallelThreshold && sourceKind != device.Network && destKind != device.Network:
		return StrategyParallel
	default:
		return StrategyBuffered
	}
}

// RecordSample folds one completed task's measurement into its bucket's
// rolling history and, once enough samples have accumulated, evaluates
// whether a threshold shift is warranted.
func (s *Selector) RecordSample(size int64, strategy StrategyName, bytes int64, duration time.Duration) {
	b := bucketFor(size)
	h := s.histories[b]

	h.mu.Lock()
	h.samples = append(h.samples, sample{strategy: strategy, bytes: bytes, duration: duration})
	n := len(h.samples)
	h.mu.Unlock()

	if !s.cfg.EnableDynamicThresholds || n < s.cfg.MinSamplesForAdjustment {
		return
	}
	s.maybeAdjust(b)
}

// maybeAdjust computes the best-performing strategy for bucket b and, if
// it beats the bucket's current winner by more than
// PerformanceImprovementThreshold, shifts the threshold bordering that
// bucket by one step toward the better strategy. The bucket's history is
// reset afterward regardless, matching the "per interval" cadence of
// §4.5 rather than an ever-growing window.
func (s *Selector) maybeAdjust(b Bucket) {
	h := s.histories[b]
	means, n := h.meanThroughput()
	defer h.reset()

	if n < s.cfg.MinSamplesForAdjustment || len(means) < 2 {
		return
	}

	current := s.lastWinner[b]
	currentMean, ok := means[current]
	if !ok {
		return
	}

	var bestStrategy StrategyName
	bestMean := -1.0
	for strat, mean := range means {
		if mean > bestMean {
			bestMean = mean
			bestStrategy = strat
		}
	}
	if bestStrategy == current {
		return
	}
	if currentMean <= 0 || bestMean < currentMean*(1+s.cfg.PerformanceImprovementThreshold) {
		return
	}

	s.shiftThreshold(b, current, bestStrategy)
	s.lastWinner[b] = bestStrategy
}

// shiftThreshold moves the single threshold bordering bucket b by one
// step toward the winning strategy, clamped to [MinThresholdStep,
// MaxThresholdStep]. Buckets with no bordering threshold (64KiB, which
// sits strictly inside the buffered region between micro_threshold and
// zero_copy_preference_threshold) only ever update lastWinner for
// observability and never move a boundary.
func (s *Selector) shiftThreshold(b Bucket, from, to StrategyName) {
	step := s.cfg.MinThresholdStep
	if step > s.cfg.MaxThresholdStep {
		step = s.cfg.MaxThresholdStep
	}

	snap := s.Snapshot()
	switch b {
	case Bucket1KiB, Bucket8KiB:
		if to == StrategyMicro {
			snap.MicroThreshold += step
		} else if from == StrategyMicro {
			snap.MicroThreshold -= step
		}
		if snap.MicroThreshold < 0 {
			snap.MicroThreshold = 0
		}
	case Bucket1MiB, BucketLarge:
		if to == StrategyParallel {
			snap.ParallelThreshold -= step
		} else if from == StrategyParallel {
			snap.ParallelThreshold += step
		}
		if snap.ParallelThreshold < snap.MicroThreshold {
			snap.ParallelThreshold = snap.MicroThreshold
		}
	default:
		return
	}
	s.snapshot.Store(snap)
}
