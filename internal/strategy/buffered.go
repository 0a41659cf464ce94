package strategy

import (
	"context"
	"crypto/sha256"
	"hash"
	"io"
	"os"
	"time"

	"github.com/ferrocp/ferrocp/internal/buffer"
	"github.com/ferrocp/ferrocp/internal/progress"
	"github.com/ferrocp/ferrocp/internal/zerocopy"
	"github.com/ferrocp/ferrocp/pkg/ferrors"
)

// BufferedStrategy is the default path (§4.3.2): an AdaptiveBuffer fed by
// an optional PreReadBuffer, adapting to measured throughput/latency as
// it goes.
type BufferedStrategy struct{}

// NewBufferedStrategy constructs a BufferedStrategy.
func NewBufferedStrategy() *BufferedStrategy { return &BufferedStrategy{} }

// Name implements Strategy.
func (b *BufferedStrategy) Name() string { return "buffered" }

// Copy implements Strategy.
func (b *BufferedStrategy) Copy(ctx context.Context, source, destination string, opts Options, sink progress.Sink) (progress.TaskStats, error) {
	if sink == nil {
		sink = progress.NopSink
	}

	info, err := os.Stat(source)
	if err != nil {
		return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "stat source", err).
			WithComponent("strategy.buffered").WithPath(source)
	}
	size := info.Size()

	if opts.ResumeOffset > 0 && opts.ResumeOffset >= size {
		// A prior attempt already placed every byte; nothing left to
		// read or write (§4.8's idempotent-resubmission case).
		if err := applyPostCopyMetadata(source, destination, opts.PreserveMetadata); err != nil {
			return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "apply metadata", err).
				WithComponent("strategy.buffered").WithPath(destination)
		}
		return progress.TaskStats{FilesCopied: 1, BytesCopied: size}, nil
	}

	if err := ctx.Err(); err != nil {
		return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeCancelled, "buffered copy cancelled", err).
			WithComponent("strategy.buffered").WithPath(destination)
	}

	if opts.EnableZeroCopy && opts.ResumeOffset == 0 {
		// Attempted before the destination is created: Clonefile and
		// CreateHardLink both require the destination to not exist yet.
		outcome := defaultDispatcher.TryZeroCopy(source, destination, size, true)
		switch outcome.Status {
		case zerocopy.Copied:
			if err := applyPostCopyMetadata(source, destination, opts.PreserveMetadata); err != nil {
				return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "apply metadata", err).
					WithComponent("strategy.buffered").WithPath(destination)
			}
			sink.Emit(progress.Sample{
				TaskID: opts.TaskID, CurrentFile: source,
				CurrentFileBytes: size, CurrentFileTotal: size,
				OverallBytes: size, OverallTotal: size,
			})
			return progress.TaskStats{FilesCopied: 1, BytesCopied: outcome.Bytes, ZeroCopyOperations: 1}, nil
		case zerocopy.Failed:
			// §4.4: a non-cross-device failure still falls back to the
			// buffered path rather than failing the task outright. Report
			// it as CodeZeroCopyUnsupported so the executor can record the
			// fallback and retry with EnableZeroCopy off, without
			// spending a retry attempt or counting the task as failed.
			reason := "zero-copy attempt failed"
			fe := ferrors.New(ferrors.CodeZeroCopyUnsupported, reason)
			if outcome.Err != nil {
				fe = ferrors.Wrap(ferrors.CodeZeroCopyUnsupported, reason, outcome.Err)
			}
			return progress.TaskStats{}, fe.WithComponent("strategy.buffered").WithPath(destination)
		}
		// Unavailable is silent: the buffered loop below copies the file.
	}

	src, err := os.Open(source)
	if err != nil {
		return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "open source", err).
			WithComponent("strategy.buffered").WithPath(source)
	}
	defer src.Close()
	if opts.ResumeOffset > 0 {
		if _, err := src.Seek(opts.ResumeOffset, io.SeekStart); err != nil {
			return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "seek source to resume offset", err).
				WithComponent("strategy.buffered").WithPath(source)
		}
	}

	var dst *os.File
	if opts.ResumeOffset > 0 {
		dst, err = createDestinationForResume(destination, opts.ResumeOffset)
	} else {
		dst, err = createDestination(destination)
	}
	if err != nil {
		return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "create destination", err).
			WithComponent("strategy.buffered").WithPath(destination)
	}
	defer dst.Close()

	if size == 0 {
		return progress.TaskStats{FilesCopied: 1}, nil
	}

	ab := buffer.WithSize(opts.SourceProfile.Kind, opts.SourceProfile.OptimalBufferSize)

	var pre *buffer.PreReadBuffer
	var reader io.Reader = src
	if opts.EnablePreread && size >= opts.PrereadMinFileSize {
		pre = buffer.NewPreReadBuffer(opts.SourceKind)
	}

	rate := progress.NewRateTracker(time.Now())
	lastEmit := time.Time{}
	var sourceHash, destHash hash.Hash
	if opts.VerifyCopy {
		sourceHash = sha256.New()
		destHash = sha256.New()
	}

	transferred := opts.ResumeOffset
	for transferred < size {
		if err := ctx.Err(); err != nil {
			return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeCancelled, "buffered copy cancelled", err).
				WithComponent("strategy.buffered").WithPath(destination)
		}
		if err := waitIfPaused(ctx); err != nil {
			return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeCancelled, "buffered copy cancelled while paused", err).
				WithComponent("strategy.buffered").WithPath(destination)
		}

		iterStart := time.Now()
		var chunk []byte
		if pre != nil {
			chunk = pre.Consume(int(ab.Optimal()))
			if chunk == nil {
				if _, err := pre.Refill(reader); err != nil && err != io.EOF {
					return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "preread refill", err).
						WithComponent("strategy.buffered").WithPath(source)
				}
				chunk = pre.Consume(int(ab.Optimal()))
			}
		}
		if chunk == nil {
			want := ab.Optimal()
			if remaining := size - transferred; want > remaining {
				want = remaining
			}
			n, rerr := ab.ReadFrom(reader, want)
			if rerr != nil {
				return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "read source", rerr).
					WithComponent("strategy.buffered").WithPath(source)
			}
			if n == 0 {
				break
			}
			chunk = ab.Bytes()
		}

		if sourceHash != nil {
			sourceHash.Write(chunk)
		}

		if err := writeFullRetrying(dst, chunk); err != nil {
			return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "write destination", err).
				WithComponent("strategy.buffered").WithPath(destination)
		}
		if destHash != nil {
			destHash.Write(chunk)
		}
		transferred += int64(len(chunk))

		elapsed := time.Since(iterStart)
		throughput := chunkThroughputMBps(len(chunk), elapsed)
		ab.Adapt(throughput, float64(elapsed.Milliseconds()))
		rate.Observe(time.Now(), transferred)

		if time.Since(lastEmit) >= opts.ProgressInterval {
			emitProgress(sink, opts.TaskID, source, transferred, size, rate)
			lastEmit = time.Now()
		}
	}

	if err := applyPostCopyMetadata(source, destination, opts.PreserveMetadata); err != nil {
		return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "apply metadata", err).
			WithComponent("strategy.buffered").WithPath(destination)
	}

	if opts.VerifyCopy {
		if err := verifySizeAndHash(destination, size, sourceHash, destHash); err != nil {
			return progress.TaskStats{}, err
		}
	}

	emitProgress(sink, opts.TaskID, source, transferred, size, rate)
	return progress.TaskStats{FilesCopied: 1, BytesCopied: transferred}, nil
}

func chunkThroughputMBps(n int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return (float64(n) / (1024 * 1024)) / elapsed.Seconds()
}

// writeFullRetrying retries a short write immediately within the same
// iteration, per §4.3.2's edge case note.
func writeFullRetrying(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

func emitProgress(sink progress.Sink, taskID, file string, transferred, total int64, rate *progress.RateTracker) {
	r := rate.Rate()
	eta, hasETA := progress.ETA(total-transferred, r)
	sink.Emit(progress.Sample{
		TaskID:           taskID,
		CurrentFile:      file,
		CurrentFileBytes: transferred,
		CurrentFileTotal: total,
		OverallBytes:     transferred,
		OverallTotal:     total,
		TransferRateMBps: r,
		ETA:              eta,
		HasETA:           hasETA,
		Timestamp:        time.Now(),
	})
}

func verifySizeAndHash(destination string, expectedSize int64, sourceHash, destHash hash.Hash) error {
	info, err := os.Stat(destination)
	if err != nil {
		return ferrors.Wrap(ferrors.CodeVerificationFailed, "stat destination", err).
			WithComponent("strategy.buffered").WithPath(destination)
	}
	if info.Size() != expectedSize {
		return ferrors.New(ferrors.CodeVerificationFailed, "destination size mismatch").
			WithComponent("strategy.buffered").WithPath(destination)
	}
	if sourceHash != nil && destHash != nil {
		var a, b [32]byte
		copy(a[:], sourceHash.Sum(nil))
		copy(b[:], destHash.Sum(nil))
		if a != b {
			return ferrors.New(ferrors.CodeVerificationFailed, "content hash mismatch").
				WithComponent("strategy.buffered").WithPath(destination)
		}
	}
	return nil
}
