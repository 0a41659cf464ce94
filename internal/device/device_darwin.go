//go:build darwin

package device

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

func statfsProfile(root string) (FilesystemProfile, error) {
	var sfs unix.Statfs_t
	if err := unix.Statfs(root, &sfs); err != nil {
		return FilesystemProfile{}, fmt.Errorf("statfs %s: %w", root, err)
	}

	fsType := cString(sfs.Fstypename[:])
	switch fsType {
	case "nfs", "smbfs", "afpfs", "webdav":
		if fsType == "smbfs" {
			fsType = "smb"
		}
	}

	return FilesystemProfile{
		FilesystemType: fsType,
		TotalBytes:     sfs.Blocks * uint64(sfs.Bsize),
		FreeBytes:      sfs.Bavail * uint64(sfs.Bsize),
		BlockSize:      uint64(sfs.Bsize),
		ReadOnly:       sfs.Flags&unix.MNT_RDONLY != 0,
	}, nil
}

func cString(b []int8) string {
	buf := make([]byte, 0, len(b))
	for _, c := range b {
		if c == 0 {
			break
		}
		buf = append(buf, byte(c))
	}
	return strings.ToLower(string(buf))
}
