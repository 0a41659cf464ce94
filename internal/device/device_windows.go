//go:build windows

package device

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"
)

type windowsProbe struct{}

func newPlatformProbe() platformProbe { return windowsProbe{} }

// mountRoot resolves path to its drive root (C:\) or, for a UNC path, the
// \\server\share prefix, which is the coarsest classification unit
// Windows exposes.
func (windowsProbe) mountRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(abs, `\\`) {
		parts := strings.SplitN(strings.TrimPrefix(abs, `\\`), `\`, 3)
		if len(parts) >= 2 {
			return `\\` + parts[0] + `\` + parts[1], nil
		}
		return abs, nil
	}
	vol := filepath.VolumeName(abs)
	if vol == "" {
		return abs, nil
	}
	return vol + `\`, nil
}

func (windowsProbe) classify(path, root string) (Kind, FilesystemProfile, error) {
	if strings.HasPrefix(root, `\\`) {
		return Network, FilesystemProfile{FilesystemType: "unc"}, nil
	}

	rootPtr, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return Unknown, FilesystemProfile{}, fmt.Errorf("encode root %s: %w", root, err)
	}

	driveType := windows.GetDriveType(rootPtr)

	var volNameBuf, fsNameBuf [windows.MAX_PATH + 1]uint16
	var serial, maxComponentLen, fsFlags uint32
	if err := windows.GetVolumeInformation(
		rootPtr,
		&volNameBuf[0], uint32(len(volNameBuf)),
		&serial, &maxComponentLen, &fsFlags,
		&fsNameBuf[0], uint32(len(fsNameBuf)),
	); err != nil {
		return Unknown, FilesystemProfile{}, fmt.Errorf("GetVolumeInformation %s: %w", root, err)
	}
	fsType := strings.ToLower(windows.UTF16ToString(fsNameBuf[:]))

	var freeBytesAvail, totalBytes, totalFreeBytes uint64
	_ = windows.GetDiskFreeSpaceEx(rootPtr, &freeBytesAvail, &totalBytes, &totalFreeBytes)

	fs := FilesystemProfile{
		FilesystemType: fsType,
		TotalBytes:     totalBytes,
		FreeBytes:      freeBytesAvail,
		BlockSize:      4096,
		ReadOnly:       fsFlags&windows.FILE_READ_ONLY_VOLUME != 0,
	}

	switch driveType {
	case windows.DRIVE_REMOTE:
		return Network, fs, nil
	case windows.DRIVE_RAMDISK:
		return RamDisk, fs, nil
	}

	switch fsType {
	case "refs":
		return SSD, fs, nil
	case "ntfs":
		return SSD, fs, nil
	default:
		return Unknown, fs, nil
	}
}

