//go:build unix

package walker

import (
	"os"
	"syscall"
)

// dirKey identifies a directory by device+inode so a symlink cycle can be
// detected regardless of which path reached it first.
type dirKey struct {
	dev uint64
	ino uint64
}

func statDirKey(path string) (dirKey, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return dirKey{}, false
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return dirKey{}, false
	}
	return dirKey{dev: uint64(stat.Dev), ino: stat.Ino}, true
}
