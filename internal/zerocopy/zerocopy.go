// Package zerocopy implements the copy core's zero-copy dispatcher (C4):
// platform-specific in-kernel copy primitives with a once-per-process
// capability probe and graceful cross-device fallback.
package zerocopy

// Method names the kernel primitive a successful zero-copy dispatch used.
type Method string

const (
	MethodNone          Method = ""
	MethodCopyFileRange Method = "copy_file_range"
	MethodSendfile      Method = "sendfile"
	MethodReFSClone     Method = "refs_clone"
	MethodHardlink      Method = "hardlink"
	MethodAPFSClone     Method = "apfs_clone"
)

// Outcome is the tagged result of a dispatch attempt, matching §4.4's
// {Copied(method) | Unavailable | Failed(err)} contract.
type Outcome struct {
	Status OutcomeStatus
	Method Method
	Bytes  int64
	Err    error
}

// OutcomeStatus discriminates the Outcome variant.
type OutcomeStatus int

const (
	Unavailable OutcomeStatus = iota
	Copied
	Failed
)

// Default eligibility bounds named in §4.4.
const (
	DefaultMinSize int64 = 4 * 1024
	DefaultMaxSize int64 = 100 * 1024 * 1024 * 1024
)

// maxChunkPerSyscall bounds a single copy_file_range/sendfile call per the
// dispatcher loop described in §4.4.
const maxChunkPerSyscall int64 = 2 * 1024 * 1024 * 1024

// Dispatcher probes zero-copy capability once per process and serves
// TryZeroCopy calls against that cached result. It owns opening and
// closing both files for the duration of the dispatch; a caller only
// ever sees path strings, matching the §4.4 contract literally.
type Dispatcher struct {
	minSize, maxSize int64
	probe            capabilityProbe
}

// NewDispatcher constructs a Dispatcher using the host's native probe and
// the default eligibility bounds.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		minSize: DefaultMinSize,
		maxSize: DefaultMaxSize,
		probe:   newCapabilityProbe(),
	}
}

// WithSizeBounds overrides the default [min, max] eligibility window.
func (d *Dispatcher) WithSizeBounds(min, max int64) *Dispatcher {
	d.minSize, d.maxSize = min, max
	return d
}

// TryZeroCopy attempts a whole-file zero-copy dispatch from srcPath to
// dstPath. overwrite mirrors condition 2 of the eligibility gate: when
// false, a pre-existing destination makes the pair ineligible rather
// than clobbering it. It never returns an error from the eligibility
// gate itself: ineligible pairs simply come back Unavailable so the
// caller falls back silently to the buffered strategy.
func (d *Dispatcher) TryZeroCopy(srcPath, dstPath string, size int64, overwrite bool) Outcome {
	if size < d.minSize || size > d.maxSize {
		return Outcome{Status: Unavailable}
	}
	if !overwrite {
		if _, err := statPath(dstPath); err == nil {
			return Outcome{Status: Unavailable}
		}
	}
	if !d.probe.capable() {
		return Outcome{Status: Unavailable}
	}

	method, ok := d.probe.preferredMethod(srcPath, dstPath)
	if !ok {
		return Outcome{Status: Unavailable}
	}

	copied, err := d.probe.copy(srcPath, dstPath, size, method)
	if err != nil {
		if isCrossDevice(err) {
			return Outcome{Status: Unavailable, Method: method}
		}
		return Outcome{Status: Failed, Method: method, Bytes: copied, Err: err}
	}
	return Outcome{Status: Copied, Method: method, Bytes: copied}
}

// capabilityProbe is implemented per-OS. capable() is evaluated once and
// cached by the concrete implementation; preferredMethod and copy may be
// called repeatedly.
type capabilityProbe interface {
	capable() bool
	preferredMethod(srcPath, dstPath string) (Method, bool)
	copy(srcPath, dstPath string, size int64, method Method) (int64, error)
}
