//go:build unix

package dedupeapply

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/ivoronin/bioscan/internal/bioscan"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func inode(t *testing.T, path string) uint64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		t.Fatal("not a syscall.Stat_t")
	}
	return stat.Ino
}

func TestApplyHardlinksGroup(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bam")
	b := filepath.Join(dir, "b.bam")
	writeFile(t, a, []byte("identical content"))
	writeFile(t, b, []byte("identical content"))

	groups := []bioscan.DuplicateGroup{
		{SHA256: "deadbeef", TotalSize: 34, Count: 2, Paths: []string{a, b}},
	}

	results := Apply(groups, Options{})
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Action != ActionHardlink {
		t.Fatalf("Action = %v, want ActionHardlink, err=%v", results[0].Action, results[0].Err)
	}

	if inode(t, a) != inode(t, b) {
		t.Error("a and b should share an inode after hardlinking")
	}
}

func TestApplySkipsGroupsBelowTwo(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bam")
	writeFile(t, a, []byte("solo"))

	groups := []bioscan.DuplicateGroup{
		{SHA256: "x", Count: 1, Paths: []string{a}},
	}
	if results := Apply(groups, Options{}); len(results) != 0 {
		t.Errorf("expected no results for a singleton group, got %v", results)
	}
}

func TestApplyAlreadyLinkedSkipped(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bam")
	b := filepath.Join(dir, "b.bam")
	writeFile(t, a, []byte("shared"))
	if err := os.Link(a, b); err != nil {
		t.Fatalf("Link: %v", err)
	}

	groups := []bioscan.DuplicateGroup{
		{SHA256: "x", Count: 2, Paths: []string{a, b}},
	}
	results := Apply(groups, Options{})
	if len(results) != 0 {
		t.Errorf("expected no relinking work for already-linked files, got %v", results)
	}
}

func TestApplyPathPrioritySelectsSource(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "primary", "a.bam")
	secondary := filepath.Join(dir, "secondary", "a.bam")
	writeFile(t, primary, []byte("shared content"))
	writeFile(t, secondary, []byte("shared content"))

	groups := []bioscan.DuplicateGroup{
		{SHA256: "x", Count: 2, Paths: []string{primary, secondary}},
	}
	results := Apply(groups, Options{PathPriority: []string{filepath.Join(dir, "primary")}})
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Source != primary {
		t.Errorf("Source = %q, want %q (path priority)", results[0].Source, primary)
	}
	if results[0].Target != secondary {
		t.Errorf("Target = %q, want %q", results[0].Target, secondary)
	}
}

func TestApplyDryRunDoesNotModify(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bam")
	b := filepath.Join(dir, "b.bam")
	writeFile(t, a, []byte("shared"))
	writeFile(t, b, []byte("shared"))

	inoBefore := inode(t, b)
	groups := []bioscan.DuplicateGroup{{SHA256: "x", Count: 2, Paths: []string{a, b}}}
	results := Apply(groups, Options{DryRun: true})
	if len(results) != 1 || results[0].Action != ActionHardlink {
		t.Fatalf("results = %+v", results)
	}
	if inode(t, b) != inoBefore {
		t.Error("dry run should not modify the filesystem")
	}
}
