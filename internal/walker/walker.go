// Package walker implements the depth-first metadata acquisition walk:
// TreeWalker from spec.md §4.4. Grounded on dupedog's internal/scanner
// (batched ReadDir, files/subdirs split, skip non-regular) with the
// concurrency stripped out, since spec.md §5 reserves parallelism for the
// duplicate detector's Tier1/Tier2 hashing, not the walk itself.
package walker

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ivoronin/bioscan/internal/bioscan"
	"github.com/ivoronin/bioscan/internal/extnorm"
	"github.com/ivoronin/bioscan/internal/sniffer"
)

// ErrRootMissing is returned when root cannot be canonicalized to an
// existing directory (spec.md §7: RootMissing).
var ErrRootMissing = errors.New("root path does not exist or is not a directory")

// progressInterval is how often (in files scanned) a "classify" progress
// event is emitted, per spec.md §4.4.
const progressInterval = 100

// batchSize bounds memory when listing very large directories.
const batchSize = 1000

// Walk recursively enumerates regular files beneath root, producing one
// FileMeta per readable file. Per-file errors are absorbed (the file is
// dropped). cancel is checked per file and per directory; when set, Walk
// returns the meta list collected so far along with a nil error. progress
// receives "classify" events every progressInterval files and once more
// at completion.
func Walk(root string, excludes []string, cancel *atomic.Bool, progress bioscan.ProgressFunc) ([]bioscan.FileMeta, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, ErrRootMissing
	}
	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return nil, ErrRootMissing
	}

	total := countFiles(absRoot, excludes, cancel)

	w := &walkState{
		excludes: excludes,
		cancel:   cancel,
		progress: progress,
		total:    total,
		visited:  make(map[dirKey]bool),
	}
	w.walkDir(absRoot)
	w.emit(absRoot)

	return w.results, nil
}

type walkState struct {
	excludes []string
	cancel   *atomic.Bool
	progress bioscan.ProgressFunc
	total    int
	scanned  int
	results  []bioscan.FileMeta
	visited  map[dirKey]bool // dev+ino of the directories on the current descent path, guards symlink cycles
}

func (w *walkState) isCancelled() bool {
	return w.cancel != nil && w.cancel.Load()
}

func (w *walkState) emit(path string) {
	if w.progress == nil {
		return
	}
	safeEmit(w.progress, bioscan.Event{
		Stage:   bioscan.StageClassify,
		Scanned: w.scanned,
		Total:   w.total,
		Path:    path,
	})
}

// safeEmit calls fn and swallows any panic, per spec.md §7's CallbackFailure.
func safeEmit(fn bioscan.ProgressFunc, ev bioscan.Event) {
	defer func() { _ = recover() }()
	fn(ev)
}

func (w *walkState) walkDir(dir string) {
	if w.isCancelled() {
		return
	}

	if key, ok := statDirKey(dir); ok {
		if w.visited[key] {
			return
		}
		w.visited[key] = true
		defer delete(w.visited, key)
	}

	entries, err := readDirSorted(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if w.isCancelled() {
			return
		}

		full := filepath.Join(dir, entry.Name())

		if entry.Type()&os.ModeSymlink != 0 {
			w.walkSymlink(full)
			continue
		}

		if entry.IsDir() {
			if w.shouldExclude(full) {
				continue
			}
			w.walkDir(full)
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}
		if w.shouldExclude(full) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		w.addFile(full, info)
	}
}

// walkSymlink follows a symlink entry and treats it as whatever it resolves
// to: a directory to recurse into (cycle-guarded via walkDir's visited set)
// or a regular file to classify. A dangling or otherwise unstatable symlink
// is dropped (PerFileIOError, absorbed per spec).
func (w *walkState) walkSymlink(full string) {
	info, err := os.Stat(full)
	if err != nil {
		return
	}

	if info.IsDir() {
		if w.shouldExclude(full) {
			return
		}
		w.walkDir(full)
		return
	}

	if !info.Mode().IsRegular() {
		return
	}
	if w.shouldExclude(full) {
		return
	}
	w.addFile(full, info)
}

func (w *walkState) addFile(path string, info os.FileInfo) {
	meta, ok := buildFileMeta(path, info)
	if !ok {
		return
	}
	w.results = append(w.results, meta)
	w.scanned++
	if w.scanned%progressInterval == 0 {
		w.emit(path)
	}
}

func (w *walkState) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		if matched, _ := doublestar.Match(pattern, path); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}

// buildFileMeta sniffs and normalizes a single regular file given its
// already-resolved FileInfo (Lstat for a plain file, Stat for a followed
// symlink). Returns ok=false on any read failure (PerFileIOError, absorbed).
func buildFileMeta(path string, info os.FileInfo) (bioscan.FileMeta, bool) {
	f, err := os.Open(path)
	if err != nil {
		return bioscan.FileMeta{}, false
	}
	_ = f.Close()

	extFull, extContainer, extLogical := extnorm.Normalize(path)
	header := sniffer.Sniff(path)

	return bioscan.FileMeta{
		Path:         path,
		Size:         info.Size(),
		ModTimeNs:    info.ModTime().UnixNano(),
		HeaderType:   header,
		ExtFull:      extFull,
		ExtContainer: extContainer,
		ExtLogical:   extLogical,
	}, true
}

// countFiles performs the pre-pass count walk spec.md §4.4 mandates ("the
// two-pass design is mandatory for meaningful progress reporting").
func countFiles(root string, excludes []string, cancel *atomic.Bool) int {
	count := 0
	visited := make(map[dirKey]bool)
	var walk func(dir string)
	walk = func(dir string) {
		if cancel != nil && cancel.Load() {
			return
		}
		if key, ok := statDirKey(dir); ok {
			if visited[key] {
				return
			}
			visited[key] = true
			defer delete(visited, key)
		}
		entries, err := readDirSorted(dir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())

			if entry.Type()&os.ModeSymlink != 0 {
				info, err := os.Stat(full)
				if err != nil {
					continue
				}
				if info.IsDir() {
					if !matchesAny(excludes, full) {
						walk(full)
					}
					continue
				}
				if info.Mode().IsRegular() && !matchesAny(excludes, full) {
					count++
				}
				continue
			}

			if entry.IsDir() {
				if matchesAny(excludes, full) {
					continue
				}
				walk(full)
				continue
			}
			if !entry.Type().IsRegular() || matchesAny(excludes, full) {
				continue
			}
			count++
		}
	}
	walk(root)
	return count
}

func matchesAny(excludes []string, path string) bool {
	for _, pattern := range excludes {
		if matched, _ := doublestar.Match(pattern, path); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}

// readDirSorted reads a directory's entries in batches (bounding memory on
// very large directories) and returns them sorted by name for deterministic
// traversal order.
func readDirSorted(dir string) ([]os.DirEntry, error) {
	d, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = d.Close() }()

	var all []os.DirEntry
	for {
		batch, err := d.ReadDir(batchSize)
		all = append(all, batch...)
		if err != nil {
			if errors.Is(err, io.EOF) || len(batch) == 0 {
				break
			}
			return all, err
		}
		if len(batch) == 0 {
			break
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })
	return all, nil
}
