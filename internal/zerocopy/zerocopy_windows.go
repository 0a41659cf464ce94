//go:build windows

package zerocopy

import (
	"os"
	"strings"
	"sync"

	"golang.org/x/sys/windows"
)

type windowsProbe struct {
	once sync.Once
}

func newCapabilityProbe() capabilityProbe { return &windowsProbe{} }

func (p *windowsProbe) capable() bool {
	p.once.Do(func() {})
	return true
}

// preferredMethod only offers a hardlink: ReFS block cloning requires the
// FSCTL_DUPLICATE_EXTENTS_TO_FILE IOCTL, which changes the destination's
// allocation in ways a plain DeviceIoControl wrapper here cannot safely
// validate (extent alignment, copy-on-write semantics); until that IOCTL
// is wired, same-volume dispatch uses a hardlink instead.
func (p *windowsProbe) preferredMethod(srcPath, dstPath string) (Method, bool) {
	sameVol, err := sameVolume(srcPath, dstPath)
	if err != nil || !sameVol {
		return MethodNone, false
	}
	return MethodHardlink, true
}

// sameVolume compares the first two characters of each path (the drive
// letter) and no volume serial numbers; sufficient for the hardlink
// eligibility check since cross-drive hardlinks always fail regardless.
func sameVolume(srcPath, dstPath string) (bool, error) {
	return volumeOf(srcPath) == volumeOf(dstPath), nil
}

func volumeOf(path string) string {
	if len(path) < 2 {
		return ""
	}
	return strings.ToUpper(path[:2])
}

func (p *windowsProbe) copy(srcPath, dstPath string, size int64, method Method) (int64, error) {
	if method != MethodHardlink {
		return 0, windows.ERROR_NOT_SUPPORTED
	}
	if _, err := os.Stat(dstPath); err == nil {
		return 0, os.ErrExist
	}

	to, err := windows.UTF16PtrFromString(dstPath)
	if err != nil {
		return 0, err
	}
	from, err := windows.UTF16PtrFromString(srcPath)
	if err != nil {
		return 0, err
	}
	if err := windows.CreateHardLink(to, from, 0); err != nil {
		return 0, err
	}
	return size, nil
}

func isCrossDevice(err error) bool {
	return err == windows.ERROR_NOT_SAME_DEVICE
}
