// Package sniffer identifies the symbolic content type of a file from its
// first kilobyte, independent of its name. It is the ground truth that
// internal/mismatch checks extension-derived types against.
package sniffer

import (
	"bytes"
	"os"

	"github.com/ivoronin/bioscan/internal/bioscan"
)

// peekSize is the maximum number of bytes read from a file to sniff it.
const peekSize = 1024

// vcfPragma is searched for within the first 256 bytes (spec.md §4.1 rule 5).
const vcfPragma = "##fileformat=VCF"
const vcfScanWindow = 256

// Sniff reads up to peekSize bytes from path and returns the symbolic
// header kind. Any read error yields UNKNOWN; the sniffer never falls
// back to name-based inference.
func Sniff(path string) bioscan.HeaderKind {
	f, err := os.Open(path)
	if err != nil {
		return bioscan.UNKNOWN
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, peekSize)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return bioscan.UNKNOWN
	}
	buf = buf[:n]

	return classify(buf)
}

// classify applies the ordered magic-byte match table from spec.md §4.1.
// First match wins.
func classify(buf []byte) bioscan.HeaderKind {
	switch {
	case hasPrefix(buf, []byte{0x1F, 0x8B, 0x08}):
		return bioscan.GZIP
	case hasPrefix(buf, []byte("BAM\x01")):
		return bioscan.BAM
	case hasPrefix(buf, []byte("CRAM")):
		return bioscan.CRAM
	case hasPrefix(buf, []byte("BCF")):
		return bioscan.BCF
	case bytes.Contains(window(buf, vcfScanWindow), []byte(vcfPragma)):
		return bioscan.VCF
	case hasPrefix(buf, []byte("@HD\t")):
		return bioscan.SAM
	case len(buf) > 0 && buf[0] == '@':
		return bioscan.FASTQ
	case len(buf) > 0 && buf[0] == '>':
		return bioscan.FASTA
	default:
		return bioscan.UNKNOWN
	}
}

func hasPrefix(buf, prefix []byte) bool {
	return len(buf) >= len(prefix) && bytes.Equal(buf[:len(prefix)], prefix)
}

func window(buf []byte, n int) []byte {
	if len(buf) < n {
		return buf
	}
	return buf[:n]
}
