//go:build unix

package dedupeapply

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// orphanedTmpMaxAge is the minimum age for a .bioscan.tmp file to be
// considered orphaned rather than part of an in-flight operation.
const orphanedTmpMaxAge = 1 * time.Minute

// createHardlink creates a hardlink atomically by linking to a temp file
// then renaming over target. If the temp file exists and is orphaned, it
// is cleaned up and the link retried.
func createHardlink(source, target string) error {
	tmp := target + ".bioscan.tmp"

	err := os.Link(source, tmp)
	if errors.Is(err, syscall.EEXIST) {
		if cleanupErr := tryCleanupOrphanedTmp(tmp, orphanedTmpMaxAge); cleanupErr != nil {
			return fmt.Errorf("tmp file exists and cannot be cleaned: %w", cleanupErr)
		}
		err = os.Link(source, tmp)
	}
	if err != nil {
		return err
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// createSymlink creates a symlink atomically, verifying source still
// exists first (so a dangling symlink is never created if source
// vanished after verification).
func createSymlink(source, target string) error {
	if _, err := os.Stat(source); err != nil {
		return fmt.Errorf("source missing before symlink creation: %w", err)
	}

	tmp := target + ".bioscan.tmp"

	relPath, err := filepath.Rel(filepath.Dir(target), source)
	if err != nil {
		relPath = source
	}

	err = os.Symlink(relPath, tmp)
	if errors.Is(err, syscall.EEXIST) {
		if cleanupErr := tryCleanupOrphanedTmp(tmp, orphanedTmpMaxAge); cleanupErr != nil {
			return fmt.Errorf("tmp file exists and cannot be cleaned: %w", cleanupErr)
		}
		err = os.Symlink(relPath, tmp)
	}
	if err != nil {
		return err
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// tryCleanupOrphanedTmp removes path only if it is old enough to be safely
// considered abandoned, and either a symlink or a regular file with other
// hardlinks still pointing at its data (nlink > 1). A regular file with
// nlink == 1 is never removed: it may be the only copy of its data.
func tryCleanupOrphanedTmp(path string, maxAge time.Duration) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("lstat: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	if info.ModTime().After(cutoff) {
		return fmt.Errorf("file too recent (mtime %v, cutoff %v)", info.ModTime(), cutoff)
	}

	mode := info.Mode()
	if mode&os.ModeSymlink != 0 {
		return os.Remove(path)
	}
	if !mode.IsRegular() {
		return fmt.Errorf("not a regular file or symlink (mode %v)", mode)
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("cannot get syscall.Stat_t")
	}
	if stat.Nlink <= 1 {
		return fmt.Errorf("nlink=%d, may be only copy of data", stat.Nlink)
	}

	return os.Remove(path)
}
