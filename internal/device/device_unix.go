//go:build linux || darwin

package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

var networkFilesystems = map[string]bool{
	"nfs": true, "nfs4": true, "cifs": true, "smb": true,
	"smbfs": true, "sshfs": true, "davfs": true, "ceph": true,
}

var ramFilesystems = map[string]bool{
	"tmpfs": true, "ramfs": true, "devtmpfs": true,
}

type unixProbe struct{}

func newPlatformProbe() platformProbe { return unixProbe{} }

// mountRoot walks up from path until the containing device (st_dev)
// changes, which is the cheapest mount-point approximation available
// without parsing /proc/mounts on every call.
func (unixProbe) mountRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	start := abs
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		start = filepath.Dir(abs)
	}

	var st unix.Stat_t
	if err := unix.Stat(start, &st); err != nil {
		return "", fmt.Errorf("stat %s: %w", start, err)
	}
	dev := st.Dev

	cur := start
	for {
		parent := filepath.Dir(cur)
		if parent == cur {
			return cur, nil
		}
		var pst unix.Stat_t
		if err := unix.Stat(parent, &pst); err != nil {
			return cur, nil
		}
		if pst.Dev != dev {
			return cur, nil
		}
		cur = parent
	}
}

func (p unixProbe) classify(path, root string) (Kind, FilesystemProfile, error) {
	fs, err := statfsProfile(root)
	if err != nil {
		return Unknown, FilesystemProfile{}, err
	}
	fsType := fs.FilesystemType

	if networkFilesystems[fsType] {
		return Network, fs, nil
	}
	if ramFilesystems[fsType] {
		return RamDisk, fs, nil
	}

	var st unix.Stat_t
	if err := unix.Stat(root, &st); err == nil {
		if kind, ok := rotationalKind(st.Dev); ok {
			return kind, fs, nil
		}
	}
	return Unknown, fs, nil
}

// rotationalKind resolves a device number to /sys/block/<dev>/queue/rotational.
// An unreadable rotational attribute falls back to a device-name-prefix
// guess; if the device number cannot be resolved to a name under
// /sys/dev/block (containers, non-Linux, missing permissions), no kind is
// determined.
func rotationalKind(devNum uint64) (Kind, bool) {
	major := unix.Major(devNum)
	minor := unix.Minor(devNum)

	link := fmt.Sprintf("/sys/dev/block/%d:%d", major, minor)
	target, err := os.Readlink(link)
	if err != nil {
		return Unknown, false
	}
	name := filepath.Base(target)
	// Partitions (sda1, nvme0n1p1) report rotational under their parent disk.
	diskName := stripPartitionSuffix(name)

	data, err := os.ReadFile(filepath.Join("/sys/block", diskName, "queue", "rotational"))
	if err != nil {
		return kindFromNamePrefix(diskName)
	}
	switch strings.TrimSpace(string(data)) {
	case "1":
		return HDD, true
	case "0":
		return SSD, true
	default:
		return Unknown, false
	}
}

func stripPartitionSuffix(name string) string {
	// nvme0n1p1 -> nvme0n1
	if i := strings.Index(name, "p"); strings.HasPrefix(name, "nvme") && i > 0 {
		if _, err := strconv.Atoi(name[i+1:]); err == nil {
			return name[:i]
		}
	}
	// sda1 -> sda
	trimmed := strings.TrimRight(name, "0123456789")
	if trimmed != "" {
		return trimmed
	}
	return name
}

func kindFromNamePrefix(name string) (Kind, bool) {
	switch {
	case strings.HasPrefix(name, "nvme"):
		return SSD, true
	case strings.HasPrefix(name, "sd"):
		return SSD, true
	default:
		return Unknown, false
	}
}
