// Package erasability implements ErasabilityReasoner from spec.md §4.7:
// group files by a loose sample stem, then apply a small ordered rule set
// (R1a/R1b/R2/R3a/R3b/R4) identifying intermediates reconstructable from
// other retained files. Grounded on original_source/code/file_scanner.py's
// classify_file ordered-priority-list idiom, generalized from "one bucket
// per file" to "N independent rules per group".
package erasability

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ivoronin/bioscan/internal/bioscan"
)

// Policy carries the process-wide policy flags spec.md §4.7 defines.
type Policy struct {
	AllowSamRegen      bool // default true
	PreferSraOverFastq bool // default false
}

// DefaultPolicy returns spec.md §4.7's stated defaults.
func DefaultPolicy() Policy {
	return Policy{AllowSamRegen: true, PreferSraOverFastq: false}
}

// processingTokens is the closed, case-insensitive set of tokens stripped
// when deriving a sample stem (spec.md §3).
var processingTokens = map[string]bool{
	"r1": true, "r2": true, "read1": true, "read2": true,
	"paired": true, "unpaired": true, "trimmed": true,
	"sorted": true, "unsorted": true, "collated": true,
}

// Stem derives the base sample key for path per spec.md §3: strip all
// dotted suffixes, split the basename on '.', '-', '_', discard
// processing tokens, rejoin with '.', lowercase.
func Stem(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}

	fields := strings.FieldsFunc(base, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})

	kept := fields[:0:0]
	for _, f := range fields {
		if processingTokens[strings.ToLower(f)] {
			continue
		}
		kept = append(kept, f)
	}

	return strings.ToLower(strings.Join(kept, "."))
}

// Reason groups files by sample stem and applies the rule table, returning
// candidates in the deterministic order spec.md §5 requires: groups in
// sorted stem order, rule order within a group, then lexicographic path
// order within ties.
func Reason(files []bioscan.FileMeta, policy Policy) []bioscan.ErasableCandidate {
	groups := make(map[string][]bioscan.FileMeta)
	var stems []string
	for _, f := range files {
		stem := Stem(f.Path)
		if _, ok := groups[stem]; !ok {
			stems = append(stems, stem)
		}
		groups[stem] = append(groups[stem], f)
	}
	sort.Strings(stems)

	var candidates []bioscan.ErasableCandidate
	for _, stem := range stems {
		candidates = append(candidates, reasonGroup(groups[stem], policy)...)
	}
	return candidates
}

func reasonGroup(files []bioscan.FileMeta, policy Policy) []bioscan.ErasableCandidate {
	g := classify(files)
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f.Path] = true
	}
	var out []bioscan.ErasableCandidate

	// R1a: SAM present AND BAM present (any compression) AND ALLOW_SAM_REGEN.
	if len(g.sam) > 0 && len(g.bamAnyCompression) > 0 && policy.AllowSamRegen {
		bam := g.bamAnyCompression[0]
		for _, s := range sortedPaths(g.sam) {
			out = append(out, bioscan.ErasableCandidate{
				Path:      s,
				Reason:    "SAM is losslessly regenerable from the retained BAM",
				Fidelity:  "content-equivalent (order may differ)",
				DependsOn: []string{bam.Path},
				RegenCmd:  fmt.Sprintf("samtools view -h -o %s %s", shQuote(s), shQuote(bam.Path)),
			})
		}
	} else if len(g.sam) > 0 && len(g.bamAnyCompression) == 0 && len(g.cram) > 0 && policy.AllowSamRegen {
		// R1b: SAM present AND BAM absent AND CRAM present AND ALLOW_SAM_REGEN.
		cram := g.cram[0]
		for _, s := range sortedPaths(g.sam) {
			out = append(out, bioscan.ErasableCandidate{
				Path:      s,
				Reason:    "SAM is losslessly regenerable from the retained CRAM plus its reference",
				Fidelity:  "content-equivalent (requires reference)",
				DependsOn: []string{cram.Path, "<ref.fa>"},
				RegenCmd:  fmt.Sprintf("samtools view -h -T <ref.fa> -o %s %s", shQuote(s), shQuote(cram.Path)),
			})
		}
	}

	// R2: uncompressed BAM present AND CRAM present.
	if len(g.uncompressedBam) > 0 && len(g.cram) > 0 {
		cram := g.cram[0]
		for _, b := range sortedPaths(g.uncompressedBam) {
			out = append(out, bioscan.ErasableCandidate{
				Path:      b,
				Reason:    "uncompressed BAM is losslessly regenerable from the retained CRAM plus its reference",
				Fidelity:  "content-equivalent (coordinate order preserved if CRAM is sorted)",
				DependsOn: []string{cram.Path, "<ref.fa>"},
				RegenCmd:  fmt.Sprintf("samtools view -b -T <ref.fa> -o %s %s", shQuote(b), shQuote(cram.Path)),
			})
		}
	}

	// R3a / R3b: SRA present AND FASTQ present.
	if len(g.sra) > 0 && len(g.fastqRaw) > 0 {
		if policy.PreferSraOverFastq {
			accession := strings.TrimSuffix(filepath.Base(g.sra[0].Path), filepath.Ext(g.sra[0].Path))
			for _, fq := range sortedPaths(g.fastqRaw) {
				out = append(out, bioscan.ErasableCandidate{
					Path:      fq,
					Reason:    "FASTQ is tool-deterministically regenerable from the retained SRA archive",
					Fidelity:  "tool-deterministic (fasterq-dump + pigz)",
					DependsOn: []string{"<" + accession + " accession>"},
					RegenCmd:  fmt.Sprintf("fasterq-dump %s && pigz %s", accession, shQuote(fq)),
				})
			}
		} else {
			sra := g.sra[0]
			deps := sortedPaths(g.fastqRaw)
			out = append(out, bioscan.ErasableCandidate{
				Path:      sra.Path,
				Reason:    "SRA archive is redundant: its reads are already present in the retained FASTQ",
				Fidelity:  "content-equivalent (tool-dependent container)",
				DependsOn: deps,
				RegenCmd:  fmt.Sprintf("prefetch %s", strings.TrimSuffix(filepath.Base(sra.Path), filepath.Ext(sra.Path))),
			})
		}
	}

	// R4: any raw FASTQ present AND any trimmed FASTQ present.
	if len(g.fastqRaw) > 0 && len(g.fastqTrimmed) > 0 {
		raw := g.fastqRaw[0]
		for _, t := range sortedPaths(g.fastqTrimmed) {
			deps := append([]string{raw.Path}, manifestSiblings(t, present)...)
			out = append(out, bioscan.ErasableCandidate{
				Path:      t,
				Reason:    "trimmed FASTQ is regenerable from the retained raw FASTQ given pinned trimming parameters",
				Fidelity:  "content-equivalent given pinned tool and params",
				DependsOn: deps,
				RegenCmd:  fmt.Sprintf("fastp -i %s -o %s", shQuote(raw.Path), shQuote(t)),
			})
		}
	}

	return out
}

// grouped holds the classification of one sample group's files into the
// predicates the rule table needs.
type grouped struct {
	sam               []bioscan.FileMeta
	bamAnyCompression []bioscan.FileMeta
	uncompressedBam   []bioscan.FileMeta
	cram              []bioscan.FileMeta
	sra               []bioscan.FileMeta
	fastqRaw          []bioscan.FileMeta
	fastqTrimmed      []bioscan.FileMeta
}

func classify(files []bioscan.FileMeta) grouped {
	var g grouped
	for _, f := range files {
		isSAM := f.HeaderType == bioscan.SAM || f.ExtLogical == "SAM"
		isBAM := f.HeaderType == bioscan.BAM || f.ExtLogical == "BAM"
		isCRAM := f.HeaderType == bioscan.CRAM || f.ExtLogical == "CRAM"
		compressed := f.ExtContainer == "GZIP" || f.ExtContainer == "BGZF"

		if isSAM {
			g.sam = append(g.sam, f)
		}
		if isBAM {
			g.bamAnyCompression = append(g.bamAnyCompression, f)
			if !compressed {
				g.uncompressedBam = append(g.uncompressedBam, f)
			}
		}
		if isCRAM {
			g.cram = append(g.cram, f)
		}
		if isSRA(f) {
			g.sra = append(g.sra, f)
		}
		if f.HeaderType == bioscan.FASTQ || f.ExtLogical == "FASTQ" {
			if isTrimmed(f.Path) {
				g.fastqTrimmed = append(g.fastqTrimmed, f)
			} else {
				g.fastqRaw = append(g.fastqRaw, f)
			}
		}
	}
	return g
}

// isSRA reports whether path's final dotted suffix is "sra". SRA has no
// HeaderSniffer kind (spec.md's header enum has no SRA entry) and no
// ExtensionNormalizer logical alias, so detection is name-based here only.
func isSRA(f bioscan.FileMeta) bool {
	return strings.EqualFold(filepath.Ext(f.Path), ".sra")
}

func isTrimmed(path string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(path)), "trimmed")
}

// manifestSiblings returns the *.manifest.json paths of the group (present)
// that sit in the same directory as fastqPath, in lexicographic order.
func manifestSiblings(fastqPath string, present map[string]bool) []string {
	dir := filepath.Dir(fastqPath)
	var out []string
	for p := range present {
		if filepath.Dir(p) == dir && strings.HasSuffix(strings.ToLower(filepath.Base(p)), ".manifest.json") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// sortedPaths returns files' paths in the lexicographic tie-break order
// spec.md §5 requires, via bioscan.Sorted[T,K] keyed on Path.
func sortedPaths(files []bioscan.FileMeta) []string {
	ordered := bioscan.NewSorted(files, func(f bioscan.FileMeta) string { return f.Path }).Items()
	paths := make([]string, len(ordered))
	for i, f := range ordered {
		paths[i] = f.Path
	}
	return paths
}

// shQuote produces a minimal single-quoted shell token. regen_cmd is a
// template for operator review, never executed by the core (spec.md §4.7).
func shQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
