package main

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// validateGlobPatterns checks that all patterns are valid doublestar
// patterns, matching the walker's own exclude matching (full path and
// basename, recursive ** segments included).
func validateGlobPatterns(patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("pattern %q: invalid doublestar pattern", pattern)
		}
	}
	return nil
}

// defaultWorkers clamps a worker count to a usable minimum, mirroring
// dupedog's runtime.NumCPU() default.
func defaultWorkers(numCPU int) int {
	if numCPU < 1 {
		return 1
	}
	return numCPU
}
