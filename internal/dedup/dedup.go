// Package dedup implements the tiered duplicate detector from spec.md
// §4.5: size bucketing (Tier 0) -> sampled fingerprint partitioning
// (Tier 1) -> streaming SHA-256 verification (Tier 2). Grounded on
// dupedog's internal/screener (Tier0 size bucketing) and
// internal/verifier (worker-pool/semaphore fan-out for hashing stages).
package dedup

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ivoronin/bioscan/internal/bioscan"
	"github.com/ivoronin/bioscan/internal/fingerprint"
	"github.com/ivoronin/bioscan/internal/hashcache"
)

// Options configures the detector's concurrency and optional cache.
type Options struct {
	Workers  int
	Cache    *hashcache.Cache
	Progress bioscan.ProgressFunc
	ErrCh    chan<- error
	Cancel   *atomic.Bool // checked between buckets/partitions and by each hashing worker
}

// Detect runs the three-tier cascade over files and returns duplicate
// groups sorted by (total_size desc, count desc), members sorted
// lexicographically (spec.md §4.5).
func Detect(files []bioscan.FileMeta, opts Options) []bioscan.DuplicateGroup {
	sendErr := func(err error) {
		if opts.ErrCh != nil && err != nil {
			opts.ErrCh <- err
		}
	}
	emit := func(ev bioscan.Event) {
		if opts.Progress != nil {
			safeEmit(opts.Progress, ev)
		}
	}
	cancelled := func() bool {
		return opts.Cancel != nil && opts.Cancel.Load()
	}

	// Tier 0: size bucketing.
	emit(bioscan.Event{Stage: bioscan.StageDedupTier0})
	bySize := make(map[int64][]bioscan.FileMeta)
	for _, f := range files {
		if f.Size == 0 {
			continue
		}
		bySize[f.Size] = append(bySize[f.Size], f)
	}

	var sizeBuckets [][]bioscan.FileMeta
	for _, bucket := range bySize {
		if len(bucket) >= 2 {
			sizeBuckets = append(sizeBuckets, bucket)
		}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	sem := bioscan.NewSemaphore(workers)

	// Tier 1: sampled fingerprint partitioning, per surviving size bucket.
	var tier1Partitions [][]bioscan.FileMeta
	for _, bucket := range sizeBuckets {
		if cancelled() {
			break
		}

		type sampledResult struct {
			file   bioscan.FileMeta
			digest string // "" (ERR bucket, or cancelled before hashing) on failure
		}
		results := make([]sampledResult, len(bucket))
		var wg sync.WaitGroup
		for i, f := range bucket {
			wg.Add(1)
			go func(i int, f bioscan.FileMeta) {
				defer wg.Done()
				sem.Acquire()
				defer sem.Release()
				if cancelled() {
					results[i] = sampledResult{file: f, digest: ""}
					return
				}
				digest, err := fingerprint.Sampled(f.Path)
				if err != nil {
					sendErr(err)
					results[i] = sampledResult{file: f, digest: ""}
					return
				}
				results[i] = sampledResult{file: f, digest: digest}
			}(i, f)
		}
		wg.Wait()

		byKey := make(map[string][]bioscan.FileMeta)
		for _, r := range results {
			if r.digest == "" {
				continue // sentinel ERR bucket: dropped, cannot form duplicates
			}
			byKey[r.digest] = append(byKey[r.digest], r.file)
		}
		for _, part := range byKey {
			if len(part) >= 2 {
				tier1Partitions = append(tier1Partitions, part)
			}
		}
	}

	// Tier 2: full streaming verification.
	emit(bioscan.Event{Stage: bioscan.StageDedupTier2})
	var groups []bioscan.DuplicateGroup
	for _, partition := range tier1Partitions {
		if cancelled() {
			break
		}

		type streamResult struct {
			file bioscan.FileMeta
			hash string // "" on failure or cancellation, excluded from its partition
		}
		results := make([]streamResult, len(partition))
		var wg sync.WaitGroup
		for i, f := range partition {
			wg.Add(1)
			go func(i int, f bioscan.FileMeta) {
				defer wg.Done()
				sem.Acquire()
				defer sem.Release()

				if cancelled() {
					results[i] = streamResult{file: f, hash: ""}
					return
				}

				if opts.Cache != nil {
					if cached, err := opts.Cache.Lookup(f); err == nil && cached != "" {
						results[i] = streamResult{file: f, hash: cached}
						return
					}
				}

				hash, err := fingerprint.Stream(f.Path, 0)
				if err != nil {
					sendErr(err)
					results[i] = streamResult{file: f, hash: ""}
					return
				}
				if opts.Cache != nil {
					_ = opts.Cache.Store(f, hash)
				}
				results[i] = streamResult{file: f, hash: hash}
			}(i, f)
		}
		wg.Wait()

		byHash := make(map[string][]bioscan.FileMeta)
		for _, r := range results {
			if r.hash == "" {
				continue
			}
			byHash[r.hash] = append(byHash[r.hash], r.file)
		}

		for hash, members := range byHash {
			if len(members) < 2 {
				continue
			}
			ordered := bioscan.NewSorted(members, func(m bioscan.FileMeta) string { return m.Path }).Items()
			paths := make([]string, len(ordered))
			for i, m := range ordered {
				paths[i] = m.Path
			}
			groups = append(groups, bioscan.DuplicateGroup{
				SHA256:    hash,
				TotalSize: members[0].Size * int64(len(members)),
				Count:     len(members),
				Paths:     paths,
			})
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].TotalSize != groups[j].TotalSize {
			return groups[i].TotalSize > groups[j].TotalSize
		}
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Paths[0] < groups[j].Paths[0]
	})

	return groups
}

func safeEmit(fn bioscan.ProgressFunc, ev bioscan.Event) {
	defer func() { _ = recover() }()
	fn(ev)
}
