// Package device classifies the storage medium underlying a filesystem
// path and derives per-device tuning (C1). Classification is cached by
// mount-point so repeated copies against the same volume skip the syscall
// round trip.
package device

import (
	"sync"

	"github.com/ferrocp/ferrocp/pkg/ferrors"
)

// Kind tags the storage medium a path resolves to. It carries no data of
// its own; tuning lives in Profile.
type Kind int

const (
	Unknown Kind = iota
	SSD
	HDD
	Network
	RamDisk
)

// String renders the kind name, used in log fields and metrics labels.
func (k Kind) String() string {
	switch k {
	case SSD:
		return "ssd"
	case HDD:
		return "hdd"
	case Network:
		return "network"
	case RamDisk:
		return "ramdisk"
	default:
		return "unknown"
	}
}

// Profile is the immutable per-device tuning snapshot derived at
// classification time from the built-in table below.
type Profile struct {
	Kind              Kind
	SequentialReadMBs float64
	SequentialWriteMBs float64
	RandomReadIOPS    int
	RandomWriteIOPS   int
	OptimalIOSize     int64
	QueueDepth        int
	TrimSupported     bool
	OptimalBufferSize int64
}

// FilesystemProfile carries native filesystem metadata gathered via
// statvfs on Unix or GetVolumeInformationW/GetDiskFreeSpaceExW on Windows.
type FilesystemProfile struct {
	FilesystemType string
	TotalBytes     uint64
	FreeBytes      uint64
	BlockSize      uint64
	ReadOnly       bool
}

// builtinProfiles is the table §4.1 step 4 names.
var builtinProfiles = map[Kind]Profile{
	SSD: {
		Kind: SSD, SequentialReadMBs: 500, SequentialWriteMBs: 500,
		RandomReadIOPS: 50_000, RandomWriteIOPS: 50_000,
		OptimalIOSize: 1 << 20, QueueDepth: 32, TrimSupported: true,
		OptimalBufferSize: 1 << 20,
	},
	HDD: {
		Kind: HDD, SequentialReadMBs: 120, SequentialWriteMBs: 120,
		RandomReadIOPS: 150, RandomWriteIOPS: 150,
		OptimalIOSize: 64 << 10, QueueDepth: 4, TrimSupported: false,
		OptimalBufferSize: 64 << 10,
	},
	Network: {
		Kind: Network, SequentialReadMBs: 100, SequentialWriteMBs: 100,
		RandomReadIOPS: 100, RandomWriteIOPS: 100,
		OptimalIOSize: 8 << 10, QueueDepth: 1, TrimSupported: false,
		OptimalBufferSize: 8 << 10,
	},
	RamDisk: {
		Kind: RamDisk, SequentialReadMBs: 2000, SequentialWriteMBs: 2000,
		RandomReadIOPS: 200_000, RandomWriteIOPS: 200_000,
		OptimalIOSize: 4 << 20, QueueDepth: 64, TrimSupported: false,
		OptimalBufferSize: 4 << 20,
	},
	Unknown: {
		Kind: Unknown, SequentialReadMBs: 80, SequentialWriteMBs: 80,
		RandomReadIOPS: 100, RandomWriteIOPS: 100,
		OptimalIOSize: 64 << 10, QueueDepth: 4, TrimSupported: false,
		OptimalBufferSize: 256 << 10,
	},
}

// ProfileFor returns the built-in tuning table entry for kind.
func ProfileFor(kind Kind) Profile {
	return builtinProfiles[kind]
}

// cacheEntry is one mount-point's cached classification.
type cacheEntry struct {
	kind Kind
	prof Profile
	fs   FilesystemProfile
}

// Classifier classifies paths into device kinds, caching results by mount
// point so a directory tree copy pays the syscall cost once per volume.
type Classifier struct {
	mu    sync.RWMutex
	cache map[string]cacheEntry
	probe platformProbe
}

// NewClassifier constructs a Classifier using the host's native probe.
func NewClassifier() *Classifier {
	return &Classifier{
		cache: make(map[string]cacheEntry),
		probe: newPlatformProbe(),
	}
}

// Classify implements the §4.1 contract: resolve path to its mount point,
// consult the cache, and on a miss run the platform-specific
// classification algorithm.
func (c *Classifier) Classify(path string) (Kind, Profile, FilesystemProfile, error) {
	root, err := c.probe.mountRoot(path)
	if err != nil {
		return Unknown, Profile{}, FilesystemProfile{}, ferrors.
			Wrap(ferrors.CodeDeviceDetection, "resolve mount root", err).
			WithComponent("device.classify").WithPath(path)
	}

	c.mu.RLock()
	entry, ok := c.cache[root]
	c.mu.RUnlock()
	if ok {
		return entry.kind, entry.prof, entry.fs, nil
	}

	kind, fs, err := c.probe.classify(path, root)
	if err != nil {
		return Unknown, Profile{}, FilesystemProfile{}, ferrors.
			Wrap(ferrors.CodeDeviceDetection, "classify device", err).
			WithComponent("device.classify").WithPath(path)
	}
	prof := ProfileFor(kind)

	c.mu.Lock()
	c.cache[root] = cacheEntry{kind: kind, prof: prof, fs: fs}
	c.mu.Unlock()

	return kind, prof, fs, nil
}

// platformProbe is implemented per-OS in device_unix.go / device_windows.go.
type platformProbe interface {
	mountRoot(path string) (string, error)
	classify(path, root string) (Kind, FilesystemProfile, error)
}
