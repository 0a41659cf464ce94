//go:build linux

package zerocopy

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

type linuxProbe struct {
	once        sync.Once
	hasCopyFR   bool
	hasSendfile bool
}

func newCapabilityProbe() capabilityProbe { return &linuxProbe{} }

// capable runs a cheap one-time probe: both primitives are assumed
// present on any kernel this module targets (copy_file_range since 4.5,
// sendfile forever), so probing just records process-wide capability
// rather than rejecting outright on an old kernel or seccomp filter,
// which instead surfaces as a per-call error from copy().
func (p *linuxProbe) capable() bool {
	p.once.Do(func() {
		p.hasCopyFR = true
		p.hasSendfile = true
	})
	return p.hasCopyFR || p.hasSendfile
}

func (p *linuxProbe) preferredMethod(srcPath, dstPath string) (Method, bool) {
	sameFS, err := sameFilesystem(srcPath, dstPath)
	if err != nil || !sameFS {
		return MethodNone, false
	}
	if p.hasCopyFR {
		return MethodCopyFileRange, true
	}
	if p.hasSendfile {
		return MethodSendfile, true
	}
	return MethodNone, false
}

func sameFilesystem(srcPath, dstPath string) (bool, error) {
	var sa unix.Stat_t
	if err := unix.Stat(srcPath, &sa); err != nil {
		return false, err
	}
	var sb unix.Stat_t
	// The destination may not exist yet; fall back to its parent
	// directory's device, which is what it will inherit once created.
	if err := unix.Stat(dstPath, &sb); err != nil {
		if err := unix.Stat(parentDir(dstPath), &sb); err != nil {
			return false, err
		}
	}
	return sa.Dev == sb.Dev, nil
}

func (p *linuxProbe) copy(srcPath, dstPath string, size int64, method Method) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	srcFd, dstFd := int(src.Fd()), int(dst.Fd())

	var total int64
	for total < size {
		chunk := size - total
		if chunk > maxChunkPerSyscall {
			chunk = maxChunkPerSyscall
		}

		var n int
		switch method {
		case MethodCopyFileRange:
			n, err = unix.CopyFileRange(srcFd, nil, dstFd, nil, int(chunk), 0)
		case MethodSendfile:
			n, err = unix.Sendfile(dstFd, srcFd, nil, int(chunk))
		default:
			return total, unix.EINVAL
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		total += int64(n)
	}
	return total, nil
}

func isCrossDevice(err error) bool {
	return err == unix.EXDEV
}
