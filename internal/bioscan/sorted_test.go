package bioscan

import (
	"testing"
	"time"
)

// =============================================================================
// Section 1: Sorted[T, K] tests
// =============================================================================

func TestSortedBasic(t *testing.T) {
	items := []string{"charlie", "alpha", "bravo"}
	sorted := NewSorted(items, func(s string) string { return s })

	if sorted.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", sorted.Len())
	}
	expected := []string{"alpha", "bravo", "charlie"}
	for i, item := range sorted.Items() {
		if item != expected[i] {
			t.Errorf("Items()[%d] = %q, want %q", i, item, expected[i])
		}
	}
}

func TestSortedFirst(t *testing.T) {
	sorted := NewSorted([]int{30, 10, 20}, func(i int) int { return i })
	if sorted.First() != 10 {
		t.Errorf("First() = %d, want 10", sorted.First())
	}
}

func TestSortedFirstEmpty(t *testing.T) {
	sorted := NewSorted([]string{}, func(s string) string { return s })
	if sorted.First() != "" {
		t.Errorf("First() on empty = %q, want empty string", sorted.First())
	}
}

func TestSortedDoesNotMutateInput(t *testing.T) {
	original := []string{"charlie", "alpha", "bravo"}
	originalCopy := append([]string(nil), original...)

	NewSorted(original, func(s string) string { return s })

	for i, v := range original {
		if v != originalCopy[i] {
			t.Fatalf("input mutated at index %d: got %q, want %q", i, v, originalCopy[i])
		}
	}
}

func TestSortedByKeyFunc(t *testing.T) {
	type named struct {
		name string
		age  int
	}
	items := []named{{"bob", 40}, {"amy", 20}, {"cid", 30}}
	sorted := NewSorted(items, func(n named) int { return n.age })

	got := sorted.First()
	if got.name != "amy" {
		t.Errorf("First().name = %q, want %q", got.name, "amy")
	}
}

// =============================================================================
// Section 2: Semaphore tests
// =============================================================================

func TestSemaphoreBoundsConcurrency(t *testing.T) {
	sem := NewSemaphore(2)
	var active int
	var maxActive int
	var mu chan struct{} = make(chan struct{}, 1)
	mu <- struct{}{}

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			sem.Acquire()
			defer sem.Release()

			<-mu
			active++
			if active > maxActive {
				maxActive = active
			}
			mu <- struct{}{}

			time.Sleep(5 * time.Millisecond)

			<-mu
			active--
			mu <- struct{}{}

			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}

	if maxActive > 2 {
		t.Errorf("observed %d concurrent holders, want <= 2", maxActive)
	}
}

func TestNewSemaphoreClampsToOne(t *testing.T) {
	sem := NewSemaphore(0)
	sem.Acquire()
	select {
	case sem <- struct{}{}:
		t.Fatal("semaphore with n<1 should behave as capacity 1")
	default:
	}
	sem.Release()
}

// =============================================================================
// Section 3: FileMeta tests
// =============================================================================

func TestFileMetaModTime(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fm := FileMeta{ModTimeNs: want.UnixNano()}

	if got := fm.ModTime().UTC(); !got.Equal(want) {
		t.Errorf("ModTime() = %v, want %v", got, want)
	}
}

func TestHeaderKindIsBio(t *testing.T) {
	for _, k := range []HeaderKind{BAM, CRAM, BCF, VCF, SAM, FASTQ, FASTA} {
		if !k.IsBio() {
			t.Errorf("%s.IsBio() = false, want true", k)
		}
	}
	for _, k := range []HeaderKind{GZIP, UNKNOWN, HeaderKind("")} {
		if k.IsBio() {
			t.Errorf("%s.IsBio() = true, want false", k)
		}
	}
}

func TestIsBioContainer(t *testing.T) {
	if !IsBioContainer("GZIP") || !IsBioContainer("BGZF") {
		t.Error("GZIP/BGZF should be bio containers")
	}
	if IsBioContainer("") || IsBioContainer("ZIP") {
		t.Error("empty/ZIP should not be bio containers")
	}
}
