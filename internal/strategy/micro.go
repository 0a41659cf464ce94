package strategy

import (
	"context"
	"io"
	"os"

	"github.com/ferrocp/ferrocp/internal/progress"
	"github.com/ferrocp/ferrocp/pkg/ferrors"
)

// MicroVariant names the size-banded sub-strategy within MicroStrategy.
// The band boundaries are an implementation choice (open question in the
// source material) resolved deterministically by exact size rather than
// by benchmarking at runtime.
type MicroVariant string

const (
	VariantUltraFast      MicroVariant = "ultra_fast"
	VariantStackBuffer    MicroVariant = "stack_buffer"
	VariantSuperFast      MicroVariant = "super_fast"
	VariantUltraOptimized MicroVariant = "ultra_optimized"
)

const stackBufferSize = 4096

// SelectMicroVariant maps an exact file size to one of the four micro
// variants.
func SelectMicroVariant(size int64) MicroVariant {
	switch {
	case size <= 64:
		return VariantUltraFast
	case size <= 512:
		return VariantStackBuffer
	case size <= SmallThreshold:
		return VariantSuperFast
	default:
		return VariantUltraOptimized
	}
}

// MicroStrategy is the micro-file fast path (§4.3.1): used when source
// size <= MicroThreshold and the destination is local. It never touches
// a buffer pool and never attempts zero-copy.
type MicroStrategy struct{}

// NewMicroStrategy constructs a MicroStrategy.
func NewMicroStrategy() *MicroStrategy { return &MicroStrategy{} }

// Name implements Strategy.
func (m *MicroStrategy) Name() string { return "micro" }

// Copy implements Strategy. Exactly one progress sample is emitted on
// entry and one on exit, regardless of variant.
func (m *MicroStrategy) Copy(ctx context.Context, source, destination string, opts Options, sink progress.Sink) (progress.TaskStats, error) {
	if sink == nil {
		sink = progress.NopSink
	}

	info, err := os.Stat(source)
	if err != nil {
		return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "stat source", err).
			WithComponent("strategy.micro").WithPath(source)
	}
	size := info.Size()

	sink.Emit(progress.Sample{TaskID: opts.TaskID, CurrentFile: source, CurrentFileTotal: size, OverallTotal: size})

	variant := SelectMicroVariant(size)
	var copyErr error
	switch variant {
	case VariantUltraFast:
		copyErr = copyUltraFast(source, destination, size)
	case VariantStackBuffer:
		copyErr = copyStackBuffer(source, destination)
	case VariantSuperFast:
		copyErr = copySuperFast(source, destination)
	default:
		copyErr = copyUltraOptimized(source, destination, size)
	}
	if copyErr != nil {
		return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "micro copy", copyErr).
			WithComponent("strategy.micro").WithPath(destination)
	}

	if err := applyPostCopyMetadata(source, destination, opts.PreserveMetadata); err != nil {
		return progress.TaskStats{}, ferrors.Wrap(ferrors.CodeIO, "apply metadata", err).
			WithComponent("strategy.micro").WithPath(destination)
	}

	sink.Emit(progress.Sample{
		TaskID: opts.TaskID, CurrentFile: source,
		CurrentFileBytes: size, CurrentFileTotal: size,
		OverallBytes: size, OverallTotal: size,
	})

	_ = ctx // micro copies are not preemptible mid-file; cancellation and pause both only take effect at the next task boundary
	return progress.TaskStats{FilesCopied: 1, BytesCopied: size}, nil
}

// copyUltraFast: single read+write pair with a buffer exactly the file
// size (the "stack-sized buffer" of an empty or tiny file).
func copyUltraFast(source, destination string, size int64) error {
	src, err := os.Open(source)
	if err != nil {
		return err
	}
	defer src.Close()

	buf := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(src, buf); err != nil && err != io.EOF {
			return err
		}
	}

	dst, err := createDestination(destination)
	if err != nil {
		return err
	}
	defer dst.Close()

	if len(buf) > 0 {
		if _, err := dst.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// copyStackBuffer: like UltraFast but loops a fixed 4 KiB buffer.
func copyStackBuffer(source, destination string) error {
	src, err := os.Open(source)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := createDestination(destination)
	if err != nil {
		return err
	}
	defer dst.Close()

	var buf [stackBufferSize]byte
	for {
		n, err := src.Read(buf[:])
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// copySuperFast issues a single syscall-equivalent copy without any
// user-space buffer management, via io.Copy against the OS-buffered
// file descriptors (the closest portable stand-in for a platform
// fs.copy primitive without reaching into the zero-copy dispatcher,
// which this variant deliberately does not use per §4.3.1).
func copySuperFast(source, destination string) error {
	src, err := os.Open(source)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := createDestination(destination)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// copyUltraOptimized: open source, query length; if <= page size, slurp
// into one allocation and write once; otherwise fall back to a single
// io.Copy pass (still within the micro size band, so still small).
func copyUltraOptimized(source, destination string, size int64) error {
	const pageSize = 4096
	if size <= pageSize {
		return copyUltraFast(source, destination, size)
	}
	return copySuperFast(source, destination)
}
