//go:build !unix

package walker

// dirKey is a no-op on platforms without a Stat_t dev/ino pair; symlink
// cycle detection is unavailable there (same best-effort stance as the
// orchestrator's CPU/RSS sampler).
type dirKey struct{}

func statDirKey(path string) (dirKey, bool) { return dirKey{}, false }
