// Package strategy implements the copy core's four copy strategies (C3):
// the micro-file fast path, the buffered pre-read pipeline, the parallel
// chunked engine, and zero-copy integration shared by the buffered path.
package strategy

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/ferrocp/ferrocp/internal/device"
	"github.com/ferrocp/ferrocp/internal/progress"
	"github.com/ferrocp/ferrocp/internal/zerocopy"
)

// Default thresholds named in §4.3/§4.5.
const (
	MicroThreshold    int64 = 4 * 1024
	SmallThreshold    int64 = 16 * 1024
	ParallelThreshold int64 = 4 * 1024 * 1024
)

// Options carries the per-task knobs a strategy needs, the parts of
// CopyTask/Configuration relevant to a single file copy. The scheduler
// and executor own the rest of CopyTask's lifecycle fields.
type Options struct {
	PreserveMetadata bool
	VerifyCopy       bool
	EnablePreread    bool
	EnableZeroCopy   bool
	PrereadMinFileSize int64
	ProgressInterval time.Duration
	TaskID           string
	WorkerCount      int

	// ResumeOffset is nonzero when this copy continues a previously
	// interrupted attempt (§4.8/S8): bytes [0, ResumeOffset) of the
	// destination are already correct and must not be re-read from the
	// source or re-written.
	ResumeOffset int64

	// BufferSizeOverride, when nonzero, replaces the device-derived
	// OptimalBufferSize the executor fills in from device.Classifier
	// (§6.4's configured buffer_size taking precedence over the built-in
	// per-device table).
	BufferSizeOverride int64

	SourceKind device.Kind
	SourceProfile device.Profile
	DestKind   device.Kind
	DestProfile device.Profile
}

// DefaultOptions returns the §4.3/§6.4 defaults.
func DefaultOptions() Options {
	return Options{
		PreserveMetadata:   true,
		VerifyCopy:         false,
		EnablePreread:      true,
		EnableZeroCopy:     true,
		PrereadMinFileSize: 10 * 1024 * 1024,
		ProgressInterval:   100 * time.Millisecond,
		WorkerCount:        4,
	}
}

// Strategy is the small capability set every copy strategy implements:
// copy, with progress emitted through sink. Strategies are flat siblings,
// selected by the engine selector (C5), never a class hierarchy.
type Strategy interface {
	Name() string
	Copy(ctx context.Context, source, destination string, opts Options, sink progress.Sink) (progress.TaskStats, error)
}

// openSourceForRead opens source and stats it, the common first step of
// every non-zero-copy strategy.
func openSourceForRead(source string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(source)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

// createDestination truncates/creates destination for write.
func createDestination(destination string) (*os.File, error) {
	return os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

// createDestinationForResume opens destination for write without
// truncating it, then seeks to offset, so a resumed copy continues
// writing after the bytes a prior attempt already placed instead of
// starting the file over (§4.8/S8).
func createDestinationForResume(destination string, offset int64) (*os.File, error) {
	f, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// applyPostCopyMetadata copies timestamps (and on Unix, permissions) when
// requested, per §4.3.2 step 5.
func applyPostCopyMetadata(source, destination string, preserve bool) error {
	if !preserve {
		return nil
	}
	info, err := os.Stat(source)
	if err != nil {
		return err
	}
	if err := os.Chmod(destination, info.Mode()); err != nil {
		return err
	}
	return os.Chtimes(destination, time.Now(), info.ModTime())
}

// defaultDispatcher is the package-level zero-copy dispatcher every
// strategy shares.
var defaultDispatcher = zerocopy.NewDispatcher()
