package strategy

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/ferrocp/ferrocp/internal/buffer"
	"github.com/ferrocp/ferrocp/internal/progress"
	"github.com/ferrocp/ferrocp/pkg/ferrors"
)

// ParallelStrategy is the parallel chunked engine (§4.3.3): workers
// consume disjoint byte ranges from a shared queue, each performing
// positioned reads and writes against its own AdaptiveBuffer.
type ParallelStrategy struct{}

// NewParallelStrategy constructs a ParallelStrategy.
func NewParallelStrategy() *ParallelStrategy { return &ParallelStrategy{} }

// Name implements Strategy.
func (p *ParallelStrategy) Name() string { return "parallel" }

// Copy implements Strategy. Every byte in [0, file_size) is written
// exactly once before the task reports success; on any chunk failure the
// task fails fast, letting in-flight workers finish their current chunk.
func (p *ParallelStrategy) Copy(ctx context.Context, source, destination string, opts Options, sink progress.Sink) (progress.TaskStats, error) {
	if sink == nil {
		sink = progress.NopSink
	}

	src, info, err := openSourceForRead(source)
	if err != nil {
		return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "open source", err).
			WithComponent("strategy.parallel").WithPath(source)
	}
	defer src.Close()
	size := info.Size()

	if opts.ResumeOffset > 0 && opts.ResumeOffset >= size {
		// A prior attempt already placed every byte (§4.8's idempotent-
		// resubmission case).
		if err := applyPostCopyMetadata(source, destination, opts.PreserveMetadata); err != nil {
			return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "apply metadata", err).
				WithComponent("strategy.parallel").WithPath(destination)
		}
		return progress.TaskStats{FilesCopied: 1, BytesCopied: size}, nil
	}

	var dst *os.File
	if opts.ResumeOffset > 0 {
		dst, err = createDestinationForResume(destination, opts.ResumeOffset)
	} else {
		dst, err = createDestination(destination)
	}
	if err != nil {
		return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "create destination", err).
			WithComponent("strategy.parallel").WithPath(destination)
	}
	defer dst.Close()

	if size == 0 {
		return progress.TaskStats{FilesCopied: 1}, nil
	}

	// Truncate only ever grows (or no-ops) a file already at opts.
	// ResumeOffset bytes, so it never discards what a prior attempt
	// already wrote.
	if err := preallocate(dst, size); err != nil {
		return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "preallocate destination", err).
			WithComponent("strategy.parallel").WithPath(destination)
	}

	workerCount := opts.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}
	plan := NewChunkPlan(size-opts.ResumeOffset, opts.SourceProfile.OptimalBufferSize, workerCount)
	for i := range plan.Chunks {
		plan.Chunks[i].Offset += opts.ResumeOffset
	}

	chunks := make(chan Chunk)
	parentCtx := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	rate := progress.NewRateTracker(time.Now())

	// Workers only report how many bytes they moved; the aggregator
	// goroutine below is the sole place that updates the running total
	// and emits a sample, keeping progress reporting at the task level
	// rather than scattered across workers (§4.3.3 step 4).
	deltas := make(chan int64)
	transferred := opts.ResumeOffset
	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		for n := range deltas {
			transferred += n
			rate.Observe(time.Now(), transferred)
			emitProgress(sink, opts.TaskID, source, transferred, size, rate)
		}
	}()

	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := buffer.WithSize(opts.SourceProfile.Kind, opts.SourceProfile.OptimalBufferSize)
			for chunk := range chunks {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if err := waitIfPaused(ctx); err != nil {
					return
				}
				n, err := copyChunk(src, dst, buf, chunk)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					cancel()
					return
				}
				deltas <- int64(n)
			}
		}()
	}

feed:
	for _, c := range plan.Chunks {
		select {
		case chunks <- c:
		case <-ctx.Done():
			break feed
		}
	}
	close(chunks)
	wg.Wait()
	close(deltas)
	<-aggDone

	if firstErr != nil {
		return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "parallel chunk copy", firstErr).
			WithComponent("strategy.parallel").WithPath(destination)
	}
	if parentCtx.Err() != nil {
		return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeCancelled, "parallel copy cancelled", parentCtx.Err()).
			WithComponent("strategy.parallel").WithPath(destination)
	}

	if err := applyPostCopyMetadata(source, destination, opts.PreserveMetadata); err != nil {
		return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "apply metadata", err).
			WithComponent("strategy.parallel").WithPath(destination)
	}

	return progress.TaskStats{FilesCopied: 1, BytesCopied: transferred}, nil
}

// copyChunk performs one positioned read from src and positioned write
// to dst for a single chunk, reusing buf across chunks a worker handles.
func copyChunk(src, dst *os.File, buf *buffer.AdaptiveBuffer, chunk Chunk) (int, error) {
	buf.Reserve(chunk.Length)
	region := buf.Bytes()
	if int64(cap(region)) < chunk.Length {
		region = make([]byte, chunk.Length)
	} else {
		region = region[:chunk.Length]
	}

	n, err := src.ReadAt(region, chunk.Offset)
	if err != nil && n == 0 {
		return 0, err
	}
	if _, err := dst.WriteAt(region[:n], chunk.Offset); err != nil {
		return 0, err
	}
	return n, nil
}

// preallocate sizes the destination to size bytes up front (§4.3.3 step
// 2) so positioned writes from every worker land within bounds.
func preallocate(dst *os.File, size int64) error {
	return dst.Truncate(size)
}
