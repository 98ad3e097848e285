//go:build unix

package dedupeapply

import (
	"errors"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/ivoronin/bioscan/internal/bioscan"
)

// Options configures Apply.
type Options struct {
	PathPriority    []string // preferred source paths; first prefix match wins
	DryRun          bool
	SymlinkFallback bool // fall back to symlinks across device boundaries
}

// Apply hardlinks every duplicate group's members together, choosing one
// source per group and replacing the rest. It never touches groups of
// size < 2 and never deletes the chosen source. Each target is locked and
// its mtime re-checked between opening it and linking, so a write that
// races with that window is skipped. Changes made between the Scan and
// Apply are not detected: the groups carry no scan-time mtimes.
func Apply(groups []bioscan.DuplicateGroup, opts Options) []*Result {
	var results []*Result
	for _, group := range groups {
		if group.Count < 2 || len(group.Paths) < 2 {
			continue
		}
		paths := append([]string(nil), group.Paths...)
		sort.Strings(paths)

		source := selectSource(paths, opts.PathPriority)
		for _, target := range paths {
			if target == source {
				continue
			}
			if sameFile(source, target) {
				continue // already hardlinked to source
			}
			results = append(results, dedupeFile(source, target, opts))
		}
	}
	return results
}

func sameFile(a, b string) bool {
	sa, errA := os.Stat(a)
	sb, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false
	}
	statA, okA := sa.Sys().(*syscall.Stat_t)
	statB, okB := sb.Sys().(*syscall.Stat_t)
	if !okA || !okB {
		return false
	}
	return statA.Dev == statB.Dev && statA.Ino == statB.Ino
}

// selectSource picks the source path for a group: first prefix match in
// pathPriority wins; otherwise the sibling with the highest existing nlink
// (preserving a pre-existing hardlink set), falling back to the
// lexicographically first path on ties or stat failure.
func selectSource(paths []string, pathPriority []string) string {
	for _, pref := range pathPriority {
		for _, p := range paths {
			if strings.HasPrefix(p, pref) {
				return p
			}
		}
	}

	best := paths[0]
	bestNlink := nlinkOf(best)
	for _, p := range paths[1:] {
		n := nlinkOf(p)
		if n > bestNlink {
			best, bestNlink = p, n
		}
	}
	return best
}

func nlinkOf(path string) uint64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return uint64(stat.Nlink)
}

func dedupeFile(source, target string, opts Options) *Result {
	f, err := os.Open(target)
	if err != nil {
		return &Result{Source: source, Target: target, Action: ActionSkipped, Err: err}
	}
	defer func() { _ = f.Close() }()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return &Result{Source: source, Target: target, Action: ActionSkipped,
			Err: errors.New("file in use (locked by another process)")}
	}

	info, err := f.Stat()
	if err != nil {
		return &Result{Source: source, Target: target, Action: ActionSkipped, Err: err}
	}
	size := info.Size()
	mtimeBeforeLink := info.ModTime()

	if opts.DryRun {
		return &Result{Source: source, Target: target, Action: ActionHardlink, BytesSaved: size}
	}

	// Re-stat immediately before the link to catch a write that raced with
	// opening the fd above.
	if info2, err := os.Stat(target); err == nil && !info2.ModTime().Equal(mtimeBeforeLink) {
		return &Result{Source: source, Target: target, Action: ActionSkipped,
			Err: errors.New("file modified just before linking")}
	}

	if err := createHardlink(source, target); err == nil {
		return &Result{Source: source, Target: target, Action: ActionHardlink, BytesSaved: size}
	} else if errors.Is(err, syscall.EXDEV) {
		if !opts.SymlinkFallback {
			return &Result{Source: source, Target: target, Action: ActionSkipped,
				Err: errors.New("cannot hardlink across device boundaries (use --symlink-fallback)")}
		}
		if err := createSymlink(source, target); err == nil {
			return &Result{Source: source, Target: target, Action: ActionSymlink, BytesSaved: size}
		} else {
			return &Result{Source: source, Target: target, Action: ActionSkipped, Err: err}
		}
	} else {
		return &Result{Source: source, Target: target, Action: ActionSkipped, Err: err}
	}
}
