// Package extnorm parses a path's dotted suffix chain into a full
// extension string plus container/logical classification, per spec.md §4.2.
package extnorm

import (
	"path/filepath"
	"strings"
)

// containerAliases maps a final suffix to a canonical container name.
var containerAliases = map[string]string{
	"gz":   "GZIP",
	"gzip": "GZIP",
	"bgz":  "BGZF",
	"bgzf": "BGZF",
}

// logicalAliases maps a suffix to its canonical logical type.
var logicalAliases = map[string]string{
	"bam":   "BAM",
	"cram":  "CRAM",
	"bcf":   "BCF",
	"vcf":   "VCF",
	"sam":   "SAM",
	"fastq": "FASTQ",
	"fq":    "FASTQ",
	"fasta": "FASTA",
	"fa":    "FASTA",
}

// Normalize splits path's basename into dotted suffixes and resolves the
// container/logical classification. extFull is the uppercased dot-joined
// suffix chain (e.g. "FASTQ.GZ").
func Normalize(path string) (extFull, extContainer, extLogical string) {
	base := filepath.Base(path)
	suffixes := suffixChain(base)
	if len(suffixes) == 0 {
		return "", "", ""
	}

	extFull = strings.ToUpper(strings.Join(suffixes, "."))

	last := suffixes[len(suffixes)-1]
	extContainer = containerAliases[last]

	var logicalSource string
	if extContainer != "" && len(suffixes) > 1 {
		logicalSource = suffixes[len(suffixes)-2]
	} else if extContainer == "" {
		logicalSource = last
	}

	if logicalSource != "" {
		extLogical = logicalAliases[logicalSource]
	}

	return extFull, extContainer, extLogical
}

// suffixChain collects the lowercased dotted suffixes of a basename, e.g.
// "sample.vcf.gz" -> ["vcf", "gz"]. A leading-dot dotfile with no further
// suffix (".bashrc") yields no suffixes.
func suffixChain(base string) []string {
	parts := strings.Split(strings.TrimLeft(base, "."), ".")
	if len(parts) <= 1 {
		return nil
	}
	suffixes := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		suffixes = append(suffixes, strings.ToLower(p))
	}
	return suffixes
}
