// Package mismatch implements MismatchReporter from spec.md §4.6: files
// whose sniffed content contradicts their name, restricted to the bio
// domain unless the caller opts into the wider report.
package mismatch

import "github.com/ivoronin/bioscan/internal/bioscan"

// Find returns one MismatchRecord per file whose header contradicts its
// name, per spec.md §4.6's rule table.
func Find(files []bioscan.FileMeta, includeNonBio bool) []bioscan.MismatchRecord {
	var records []bioscan.MismatchRecord
	for _, f := range files {
		if f.HeaderType == bioscan.UNKNOWN || f.HeaderType == "" {
			continue
		}
		if !includeNonBio && !isBioRelevant(f) {
			continue
		}
		if !isMismatch(f) {
			continue
		}
		records = append(records, bioscan.MismatchRecord{
			Path:               f.Path,
			Extension:          f.ExtFull,
			ExtensionContainer: f.ExtContainer,
			ExtensionLogical:   f.ExtLogical,
			HeaderType:         f.HeaderType,
		})
	}
	return records
}

func isBioRelevant(f bioscan.FileMeta) bool {
	if f.HeaderType.IsBio() {
		return true
	}
	if bioscan.HeaderKind(f.ExtLogical).IsBio() {
		return true
	}
	return bioscan.IsBioContainer(f.ExtContainer)
}

func isMismatch(f bioscan.FileMeta) bool {
	switch f.HeaderType {
	case bioscan.GZIP:
		return f.ExtContainer != "GZIP" && f.ExtContainer != "BGZF"
	default:
		if f.ExtContainer == "GZIP" || f.ExtContainer == "BGZF" {
			return true
		}
		return string(f.HeaderType) != f.ExtLogical
	}
}
