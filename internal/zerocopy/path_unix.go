//go:build linux || darwin

package zerocopy

import "path/filepath"

func parentDir(path string) string {
	return filepath.Dir(path)
}
