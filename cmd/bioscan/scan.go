package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ivoronin/bioscan/internal/dedupeapply"
	"github.com/ivoronin/bioscan/internal/erasability"
	"github.com/ivoronin/bioscan/internal/orchestrator"
	"github.com/ivoronin/bioscan/internal/progress"
)

// scanOptions holds CLI flags for the scan command.
type scanOptions struct {
	jsonPath                string
	excludes                []string
	workers                 int
	noProgress              bool
	strict                  bool
	includeNonBioMismatches bool
	cacheFile               string
	applyDedupe             bool
	allowSamRegen           bool
	preferSraOverFastq      bool
	symlinkFallback         bool
}

// newScanCmd creates the scan subcommand.
func newScanCmd() *cobra.Command {
	opts := &scanOptions{
		workers:       defaultWorkers(runtime.NumCPU()),
		strict:        true,
		allowSamRegen: true,
	}

	cmd := &cobra.Command{
		Use:   "scan <root>",
		Short: "Catalog a directory tree of bioinformatics artifacts",
		Long: `Walks a directory tree, classifies every file by sniffed header and by
extension, finds exact duplicates via a three-tier cascade (size, sampled
fingerprint, full hash), flags extension/content mismatches, and suggests
files that are safely regenerable.

This never deletes or mutates files unless --apply-dedupe is given, in
which case confirmed duplicate groups are hardlinked together (the source
is the member with the most existing hardlinks, ties going to the
lexicographically first path).`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runScan(args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.jsonPath, "json", "", "Write the report as JSON to this path (default: stdout)")
	cmd.Flags().StringSliceVarP(&opts.excludes, "exclude", "e", nil, "Doublestar glob patterns to exclude")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", opts.workers, "Worker count for Tier1/Tier2 hashing")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable the terminal progress bar")
	cmd.Flags().BoolVar(&opts.strict, "strict", opts.strict, "Fail the scan on a missing root instead of warning")
	cmd.Flags().BoolVar(&opts.includeNonBioMismatches, "include-non-bio-mismatches", false,
		"Widen the mismatch reporter to non-bioinformatics files")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", "", "Path to a persistent Tier2 hash cache (BoltDB)")
	cmd.Flags().BoolVar(&opts.applyDedupe, "apply-dedupe", false,
		"After scanning, hardlink duplicate_groups members together")
	cmd.Flags().BoolVar(&opts.allowSamRegen, "allow-sam-regen", opts.allowSamRegen,
		"Allow erasability rules R1a/R1b (SAM regenerable from BAM/CRAM)")
	cmd.Flags().BoolVar(&opts.preferSraOverFastq, "prefer-sra-over-fastq", opts.preferSraOverFastq,
		"Prefer keeping the SRA container over raw FASTQ in rule R3")
	cmd.Flags().BoolVar(&opts.symlinkFallback, "symlink-fallback", false,
		"When applying dedupe, fall back to symlinks across device boundaries")

	return cmd
}

// drainErrors consumes non-fatal errors from a channel and writes them to
// stderr, clearing the progress bar line first to avoid visual collision.
func drainErrors(errs <-chan error) {
	for err := range errs {
		fmt.Fprintf(os.Stderr, "\r\033[Kerror: %v\n", err)
	}
}

func runScan(root string, opts *scanOptions) error {
	if err := validateGlobPatterns(opts.excludes); err != nil {
		return fmt.Errorf("invalid --exclude: %w", err)
	}

	scanOpts := orchestrator.DefaultOptions()
	scanOpts.Strict = opts.strict
	scanOpts.IncludeNonBioMismatches = opts.includeNonBioMismatches
	scanOpts.Workers = opts.workers
	scanOpts.Excludes = opts.excludes
	scanOpts.CacheFile = opts.cacheFile
	scanOpts.Policy = erasability.Policy{
		AllowSamRegen:      opts.allowSamRegen,
		PreferSraOverFastq: opts.preferSraOverFastq,
	}

	s := orchestrator.New(scanOpts)

	bar := progress.New(!opts.noProgress)
	s.SetProgressCallback(bar.Handle)

	go drainErrors(s.Errors())

	report, err := s.Scan(root)
	if err != nil {
		if opts.strict {
			return err
		}
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	if opts.applyDedupe {
		results := dedupeapply.Apply(report.DuplicateGroups, dedupeapply.Options{
			SymlinkFallback: opts.symlinkFallback,
		})
		for _, r := range results {
			fmt.Fprintln(os.Stderr, r.String())
		}
	}

	out := os.Stdout
	if opts.jsonPath != "" {
		f, err := os.Create(opts.jsonPath)
		if err != nil {
			return fmt.Errorf("create --json output: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
