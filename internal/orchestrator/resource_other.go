//go:build !unix

package orchestrator

// sampler is a no-op stub on platforms without getrusage (spec.md §4.8:
// CPU/RSS sampling is best-effort and null when unavailable).
type sampler struct{}

func startSampler() (*sampler, bool) { return nil, false }

func (s *sampler) stop() (avg, peak float64, rssMB int64) { return 0, 0, 0 }
