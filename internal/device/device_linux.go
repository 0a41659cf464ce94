//go:build linux

package device

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// linuxFsTypes maps the f_type magic numbers we care about (network and
// memory-backed filesystems) to their canonical name; everything else
// reports "unknown" since only those two buckets drive classification.
var linuxFsTypes = map[int64]string{
	0x6969:     "nfs",
	0xFF534D42: "cifs",
	0x01021994: "tmpfs",
	0x858458f6: "ramfs",
	0x9fa0:     "devtmpfs",
}

func statfsProfile(root string) (FilesystemProfile, error) {
	var sfs unix.Statfs_t
	if err := unix.Statfs(root, &sfs); err != nil {
		return FilesystemProfile{}, fmt.Errorf("statfs %s: %w", root, err)
	}

	fsType, ok := linuxFsTypes[sfs.Type]
	if !ok {
		fsType = "unknown"
	}

	return FilesystemProfile{
		FilesystemType: fsType,
		TotalBytes:     uint64(sfs.Blocks) * uint64(sfs.Bsize),
		FreeBytes:      uint64(sfs.Bavail) * uint64(sfs.Bsize),
		BlockSize:      uint64(sfs.Bsize),
		ReadOnly:       sfs.Flags&unix.ST_RDONLY != 0,
	}, nil
}
