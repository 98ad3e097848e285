// Package bioscan holds the record shapes shared across the scan pipeline:
// FileMeta, the report it assembles into, and the progress event stream.
package bioscan

import "time"

// HeaderKind is the symbolic content type HeaderSniffer assigns to a file.
type HeaderKind string

const (
	GZIP    HeaderKind = "GZIP"
	BAM     HeaderKind = "BAM"
	CRAM    HeaderKind = "CRAM"
	BCF     HeaderKind = "BCF"
	VCF     HeaderKind = "VCF"
	SAM     HeaderKind = "SAM"
	FASTQ   HeaderKind = "FASTQ"
	FASTA   HeaderKind = "FASTA"
	UNKNOWN HeaderKind = "UNKNOWN"
)

// bioKinds is the set of header/extension kinds considered bio-domain by
// MismatchReporter's bio filter (spec.md §4.6).
var bioKinds = map[HeaderKind]bool{
	BAM: true, CRAM: true, BCF: true, VCF: true, SAM: true, FASTQ: true, FASTA: true,
}

// IsBio reports whether k is one of the bio-domain header kinds.
func (k HeaderKind) IsBio() bool { return bioKinds[k] }

// bioContainers is the set of container kinds considered bio-relevant.
var bioContainers = map[string]bool{"GZIP": true, "BGZF": true}

// IsBioContainer reports whether the extension-container string is bio-relevant.
func IsBioContainer(container string) bool { return bioContainers[container] }

// FileMeta is an immutable record produced once per enumerated regular file.
type FileMeta struct {
	Path         string     `json:"path"`
	Size         int64      `json:"size"`
	ModTimeNs    int64      `json:"-"`
	HeaderType   HeaderKind `json:"header_type"`
	ExtFull      string     `json:"extension"`
	ExtContainer string     `json:"extension_container"`
	ExtLogical   string     `json:"extension_logical"`
}

// DuplicateGroup is a set of files confirmed byte-for-byte identical.
type DuplicateGroup struct {
	SHA256    string   `json:"sha256"`
	TotalSize int64    `json:"total_size"`
	Count     int      `json:"count"`
	Paths     []string `json:"files"`
}

// MismatchRecord flags a file whose sniffed content contradicts its name.
type MismatchRecord struct {
	Path               string     `json:"path"`
	Extension          string     `json:"extension"`
	ExtensionContainer string     `json:"extension_container"`
	ExtensionLogical   string     `json:"extension_logical"`
	HeaderType         HeaderKind `json:"header_type"`
}

// ErasableCandidate is a suggested-but-not-executed deletion.
type ErasableCandidate struct {
	Path      string   `json:"path"`
	Reason    string   `json:"reason"`
	Fidelity  string   `json:"fidelity"`
	DependsOn []string `json:"depends_on"`
	RegenCmd  string   `json:"regen_cmd"`
}

// TypeStat summarizes how much of the tree one logical type occupies.
// Added beyond spec.md's closed Report shape to answer "what kinds of
// files are present" (spec.md §1); see SPEC_FULL.md.
type TypeStat struct {
	Count          int     `json:"count"`
	TotalSize      int64   `json:"total_size"`
	PercentOfTotal float64 `json:"percent_of_total"`
}

// Stats holds scan timing/resource figures. CPU/RSS are best-effort and
// may be nil when the sampler is unavailable (spec.md §4.8). TotalBytes is
// additive beyond spec.md's closed shape (see SPEC_FULL.md's human-readable
// rollup supplement).
type Stats struct {
	WallClockS float64  `json:"wall_clock_s"`
	CPUAvg     *float64 `json:"cpu_avg"`
	CPUPeak    *float64 `json:"cpu_peak"`
	PeakRSSMB  *int64   `json:"peak_rss_mb"`
	TotalBytes int64    `json:"total_bytes"`
}

// Report is the final, closed-shape output of a scan.
type Report struct {
	NFiles             int                 `json:"n_files"`
	Stats              Stats               `json:"stats"`
	Mismatches         []MismatchRecord    `json:"mismatches"`
	Files              []FileMeta          `json:"files"`
	DuplicateGroups    []DuplicateGroup    `json:"duplicate_groups"`
	ErasableCandidates []ErasableCandidate `json:"erasable_candidates"`
	TypeCounts         map[string]TypeStat `json:"type_counts"`
}

// Stage is one of the fixed stages of a scan, used in progress Events.
type Stage string

const (
	StageClassify   Stage = "classify"
	StageDedupTier0 Stage = "dedup_tier0"
	StageDedupTier2 Stage = "dedup_tier2"
	StageDone       Stage = "done"
	StageError      Stage = "error"
)

// Event is a single progress notification, pushed to the registered
// callback. Fixed schema per spec.md §6.
type Event struct {
	Stage   Stage   `json:"stage"`
	Scanned int     `json:"scanned"`
	Total   int     `json:"total"`
	Path    string  `json:"path,omitempty"`
	Result  *Report `json:"result,omitempty"`
	Err     string  `json:"error,omitempty"`
}

// ProgressFunc is the callback signature accepted by Scanner.SetProgressCallback.
// A nil callback is a no-op; a callback that panics is recovered and
// swallowed by the caller (CallbackFailure, spec.md §7).
type ProgressFunc func(Event)

// ModTime converts ModTimeNs back to a time.Time for display/comparison.
func (f FileMeta) ModTime() time.Time {
	return time.Unix(0, f.ModTimeNs)
}
