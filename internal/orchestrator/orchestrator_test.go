package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ivoronin/bioscan/internal/bioscan"
)

func mustWrite(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestScanEndToEndDuplicates(t *testing.T) {
	root := t.TempDir()
	content := []byte("identical read content for duplicate detection test")
	mustWrite(t, filepath.Join(root, "a", "x.fastq.gz"), append([]byte{0x1F, 0x8B, 0x08}, content...))
	mustWrite(t, filepath.Join(root, "b", "x.fastq.gz"), append([]byte{0x1F, 0x8B, 0x08}, content...))

	s := New(DefaultOptions())
	report, err := s.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if report.NFiles != 2 {
		t.Errorf("NFiles = %d, want 2", report.NFiles)
	}
	if len(report.DuplicateGroups) != 1 || report.DuplicateGroups[0].Count != 2 {
		t.Errorf("DuplicateGroups = %+v, want one group of 2", report.DuplicateGroups)
	}
}

func TestScanEndToEndMismatch(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.bam"), []byte("BAM\x01"))
	mustWrite(t, filepath.Join(root, "y.bam"), []byte(">seq\nACGT\n"))

	s := New(DefaultOptions())
	report, err := s.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(report.Mismatches) != 1 || filepath.Base(report.Mismatches[0].Path) != "y.bam" {
		t.Fatalf("Mismatches = %+v, want exactly y.bam", report.Mismatches)
	}
	if report.Mismatches[0].HeaderType != bioscan.FASTA {
		t.Errorf("HeaderType = %s, want FASTA", report.Mismatches[0].HeaderType)
	}
}

func TestScanRootMissing(t *testing.T) {
	s := New(DefaultOptions())
	_, err := s.Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestScanEmitsDoneEvent(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.txt"), []byte("x"))

	var sawDone bool
	s := New(DefaultOptions())
	s.SetProgressCallback(func(ev bioscan.Event) {
		if ev.Stage == bioscan.StageDone {
			sawDone = true
			if ev.Result == nil {
				t.Error("done event missing Result")
			}
		}
	})
	if _, err := s.Scan(root); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !sawDone {
		t.Error("expected a done event")
	}
}

func TestScanTypeCountsTally(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.bam"), []byte("BAM\x01pad"))
	mustWrite(t, filepath.Join(root, "b.bam"), []byte("BAM\x01pad"))
	mustWrite(t, filepath.Join(root, "c.vcf"), []byte("##fileformat=VCFv4.2\n"))

	s := New(DefaultOptions())
	report, err := s.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	bamStat, ok := report.TypeCounts["BAM"]
	if !ok || bamStat.Count != 2 {
		t.Errorf("TypeCounts[BAM] = %+v, want Count=2", bamStat)
	}
	vcfStat, ok := report.TypeCounts["VCF"]
	if !ok || vcfStat.Count != 1 {
		t.Errorf("TypeCounts[VCF] = %+v, want Count=1", vcfStat)
	}
}

func TestScanStatsTotalBytes(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.txt"), []byte("12345"))
	mustWrite(t, filepath.Join(root, "b.txt"), []byte("1234567890"))

	s := New(DefaultOptions())
	report, err := s.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.Stats.TotalBytes != 15 {
		t.Errorf("TotalBytes = %d, want 15", report.Stats.TotalBytes)
	}
}

func TestScanCancelMidDedupSkipsHashing(t *testing.T) {
	root := t.TempDir()
	content := []byte("identical content that would otherwise form a duplicate group")
	mustWrite(t, filepath.Join(root, "a.bam"), content)
	mustWrite(t, filepath.Join(root, "b.bam"), content)

	s := New(DefaultOptions())
	s.SetProgressCallback(func(ev bioscan.Event) {
		if ev.Stage == bioscan.StageDedupTier0 {
			s.RequestCancel()
		}
	})

	report, err := s.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.NFiles != 2 {
		t.Errorf("NFiles = %d, want 2 (walk completes before dedup is cancelled)", report.NFiles)
	}
	if len(report.DuplicateGroups) != 0 {
		t.Errorf("DuplicateGroups = %+v, want none once cancelled before Tier1/Tier2 hashing runs",
			report.DuplicateGroups)
	}
}

func TestScanCancelReturnsPartialReport(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.txt"), []byte("x"))

	s := New(DefaultOptions())
	s.RequestCancel()
	report, err := s.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.NFiles != 0 {
		t.Errorf("NFiles = %d, want 0 for pre-cancelled scan", report.NFiles)
	}
}
