//go:build darwin

package zerocopy

import (
	"sync"

	"golang.org/x/sys/unix"
)

type darwinProbe struct {
	once sync.Once
}

func newCapabilityProbe() capabilityProbe { return &darwinProbe{} }

func (p *darwinProbe) capable() bool {
	p.once.Do(func() {})
	return true
}

// preferredMethod only offers APFS clonefile: fcopyfile (the
// cross-volume COPYFILE_ALL path named in §4.4) is a libc call with no
// cgo-free binding in golang.org/x/sys/unix, so cross-volume macOS copies
// fall through to the buffered strategy instead of a fabricated syscall.
func (p *darwinProbe) preferredMethod(srcPath, dstPath string) (Method, bool) {
	sameFS, err := sameFilesystemDarwin(srcPath, dstPath)
	if err == nil && sameFS {
		return MethodAPFSClone, true
	}
	return MethodNone, false
}

func sameFilesystemDarwin(srcPath, dstPath string) (bool, error) {
	var sa unix.Stat_t
	if err := unix.Stat(srcPath, &sa); err != nil {
		return false, err
	}
	var sb unix.Stat_t
	if err := unix.Stat(dstPath, &sb); err != nil {
		if err := unix.Stat(parentDir(dstPath), &sb); err != nil {
			return false, err
		}
	}
	return sa.Dev == sb.Dev, nil
}

// copy dispatches to clonefile: a metadata-only APFS reflink that
// completes instantly regardless of size.
func (p *darwinProbe) copy(srcPath, dstPath string, size int64, method Method) (int64, error) {
	if method != MethodAPFSClone {
		return 0, unix.EINVAL
	}
	if err := unix.Clonefile(srcPath, dstPath, 0); err != nil {
		return 0, err
	}
	return size, nil
}

func isCrossDevice(err error) bool {
	return err == unix.EXDEV
}
