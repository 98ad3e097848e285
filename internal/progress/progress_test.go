package progress

import (
	"testing"

	"github.com/ivoronin/bioscan/internal/bioscan"
)

func TestDisabledBarIsNoop(t *testing.T) {
	b := New(false)
	// Should not panic even though no bar has been created.
	b.Handle(bioscan.Event{Stage: bioscan.StageClassify, Total: 10, Scanned: 1})
	b.Handle(bioscan.Event{Stage: bioscan.StageDone})
}

func TestHandleClassifyCreatesBar(t *testing.T) {
	b := New(true)
	b.Handle(bioscan.Event{Stage: bioscan.StageClassify, Total: 10, Scanned: 1})
	if b.bar == nil {
		t.Fatal("expected bar to be created on first classify event")
	}
}

func TestHandleStageTransitionRestartsBar(t *testing.T) {
	b := New(true)
	b.Handle(bioscan.Event{Stage: bioscan.StageClassify, Total: 10, Scanned: 10})
	first := b.bar
	b.Handle(bioscan.Event{Stage: bioscan.StageDedupTier0})
	if b.bar == first {
		t.Error("expected a new bar instance on stage transition")
	}
}

func TestDescribeDoneSummarizesReport(t *testing.T) {
	report := &bioscan.Report{
		NFiles:             5,
		DuplicateGroups:    []bioscan.DuplicateGroup{{}},
		Mismatches:         []bioscan.MismatchRecord{{}, {}},
		ErasableCandidates: []bioscan.ErasableCandidate{{}},
	}
	msg := describeDone(bioscan.Event{Stage: bioscan.StageDone, Result: report})
	if msg == "" {
		t.Error("describeDone returned empty string")
	}
}

func TestDescribeDoneNilResult(t *testing.T) {
	msg := describeDone(bioscan.Event{Stage: bioscan.StageDone})
	if msg != "scan complete" {
		t.Errorf("describeDone(nil result) = %q, want %q", msg, "scan complete")
	}
}
