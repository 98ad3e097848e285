// Package orchestrator implements ScanOrchestrator from spec.md §4.8: it
// drives the metadata walk, fans the resulting table out to the
// duplicate detector, mismatch reporter, and erasability reasoner, and
// assembles the final Report. Grounded on dupedog's cmd/dupedog/dedupe.go
// runDedupe pipeline (scan -> screen -> verify -> dedupe becomes
// walk -> dedup -> mismatch -> erasability) and its shared errCh idiom.
package orchestrator

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ivoronin/bioscan/internal/bioscan"
	"github.com/ivoronin/bioscan/internal/dedup"
	"github.com/ivoronin/bioscan/internal/erasability"
	"github.com/ivoronin/bioscan/internal/hashcache"
	"github.com/ivoronin/bioscan/internal/mismatch"
	"github.com/ivoronin/bioscan/internal/walker"
)

// Options configures a Scanner, mirroring spec.md §6's new_scanner args
// plus the policy flags §4.7 defines as process-wide constants.
type Options struct {
	Strict                  bool
	ChunkSizeBytes          int
	IncludeNonBioMismatches bool
	Workers                 int
	Excludes                []string
	CacheFile               string
	Policy                  erasability.Policy
}

// DefaultOptions mirrors spec.md §6's new_scanner defaults.
func DefaultOptions() Options {
	return Options{
		Strict:         true,
		ChunkSizeBytes: 4 * 1024 * 1024,
		Workers:        4,
		Policy:         erasability.DefaultPolicy(),
	}
}

// Scanner drives a single scan. Create with New, optionally call
// SetProgressCallback and RequestCancel, then call Scan once.
type Scanner struct {
	opts     Options
	progress bioscan.ProgressFunc
	cancel   atomic.Bool
	errCh    chan error
}

// New creates a Scanner. Mirrors spec.md §6's new_scanner.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts, errCh: make(chan error, 100)}
}

// SetProgressCallback registers fn to receive Events during Scan. A nil
// callback (the default) is a no-op.
func (s *Scanner) SetProgressCallback(fn bioscan.ProgressFunc) {
	s.progress = fn
}

// RequestCancel asks an in-progress Scan to stop at the next file or
// directory boundary and return a partial Report (spec.md §5, §7).
func (s *Scanner) RequestCancel() {
	s.cancel.Store(true)
}

// Errors returns the channel non-fatal per-file/hash errors are sent to.
// The caller is responsible for draining it (e.g. dupedog's drainErrors
// idiom); an undrained channel blocks the scan once its buffer fills.
func (s *Scanner) Errors() <-chan error {
	return s.errCh
}

// Scan walks root and returns the assembled Report. Fails with
// walker.ErrRootMissing if root cannot be canonicalized to an existing
// directory (spec.md §7).
func (s *Scanner) Scan(root string) (bioscan.Report, error) {
	start := time.Now()
	samp, haveSampler := startSampler()

	cache, err := hashcache.Open(s.opts.CacheFile)
	if err != nil {
		return bioscan.Report{}, fmt.Errorf("open cache: %w", err)
	}
	defer func() { _ = cache.Close() }()

	files, err := walker.Walk(root, s.opts.Excludes, &s.cancel, s.emit)
	if err != nil {
		s.emit(bioscan.Event{Stage: bioscan.StageError, Err: err.Error()})
		return bioscan.Report{}, err
	}

	groups := dedup.Detect(files, dedup.Options{
		Workers:  s.opts.Workers,
		Cache:    cache,
		Progress: s.emit,
		ErrCh:    s.errCh,
		Cancel:   &s.cancel,
	})

	mismatches := mismatch.Find(files, s.opts.IncludeNonBioMismatches)
	candidates := erasability.Reason(files, s.opts.Policy)
	typeCounts := tally(files)

	report := bioscan.Report{
		NFiles:             len(files),
		Mismatches:         mismatches,
		Files:              files,
		DuplicateGroups:    groups,
		ErasableCandidates: candidates,
		TypeCounts:         typeCounts,
	}
	report.Stats = s.buildStats(start, samp, haveSampler)
	for _, f := range files {
		report.Stats.TotalBytes += f.Size
	}

	s.emit(bioscan.Event{Stage: bioscan.StageDone, Scanned: len(files), Total: len(files), Result: &report})

	return report, nil
}

func (s *Scanner) buildStats(start time.Time, samp *sampler, haveSampler bool) bioscan.Stats {
	stats := bioscan.Stats{WallClockS: time.Since(start).Seconds()}
	if !haveSampler {
		return stats
	}
	avg, peak, rssMB := samp.stop()
	stats.CPUAvg = &avg
	stats.CPUPeak = &peak
	stats.PeakRSSMB = &rssMB
	return stats
}

// emit forwards an Event to the registered callback, swallowing panics
// (CallbackFailure, spec.md §7).
func (s *Scanner) emit(ev bioscan.Event) {
	if s.progress == nil {
		return
	}
	defer func() { _ = recover() }()
	s.progress(ev)
}

// tally summarizes file counts/sizes per ext_logical type (falling back to
// "unknown" when unset), answering spec.md §1's "what kinds of files are
// present" question. Additive beyond spec.md's closed Report shape; see
// SPEC_FULL.md.
func tally(files []bioscan.FileMeta) map[string]bioscan.TypeStat {
	counts := make(map[string]int)
	sizes := make(map[string]int64)
	var total int64
	for _, f := range files {
		key := f.ExtLogical
		if key == "" {
			key = "unknown"
		}
		counts[key]++
		sizes[key] += f.Size
		total += f.Size
	}

	result := make(map[string]bioscan.TypeStat, len(counts))
	for key, count := range counts {
		pct := 0.0
		if total > 0 {
			pct = float64(sizes[key]) / float64(total) * 100
		}
		result[key] = bioscan.TypeStat{
			Count:          count,
			TotalSize:      sizes[key],
			PercentOfTotal: pct,
		}
	}
	return result
}
