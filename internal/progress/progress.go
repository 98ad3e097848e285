// Package progress renders a Scanner's Event stream as a terminal
// progress bar/spinner. Adapted from dupedog's internal/progress.Bar
// (enabled/disabled no-op split, spinner vs determinate mode), re-targeted
// from a fmt.Stringer stats struct to bioscan.Event.
package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/ivoronin/bioscan/internal/bioscan"
)

const updateThrottle = 50 * time.Millisecond

// Bar wraps progressbar with enabled/disabled handling. All methods are
// no-ops when disabled.
type Bar struct {
	enabled bool
	bar     *progressbar.ProgressBar
	stage   bioscan.Stage
}

// New creates a Bar. If enabled is false, Handle is a no-op.
func New(enabled bool) *Bar {
	return &Bar{enabled: enabled}
}

// Handle renders one progress Event. Pass this as the callback registered
// via Scanner.SetProgressCallback.
func (b *Bar) Handle(ev bioscan.Event) {
	if !b.enabled {
		return
	}

	if b.bar == nil || ev.Stage != b.stage {
		b.start(ev)
	}

	switch ev.Stage {
	case bioscan.StageClassify:
		if ev.Total > 0 {
			_ = b.bar.Set64(int64(ev.Scanned))
		}
		b.bar.Describe(describeClassify(ev))
	case bioscan.StageDedupTier0, bioscan.StageDedupTier2:
		b.bar.Describe(string(ev.Stage))
	case bioscan.StageDone:
		_ = b.bar.Finish()
		fmt.Fprintln(os.Stderr, "done: "+describeDone(ev))
	case bioscan.StageError:
		_ = b.bar.Finish()
		fmt.Fprintln(os.Stderr, "error: "+ev.Err)
	}
}

func (b *Bar) start(ev bioscan.Event) {
	b.stage = ev.Stage
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateThrottle),
		progressbar.OptionClearOnFinish(),
	}

	if ev.Stage == bioscan.StageClassify && ev.Total > 0 {
		opts = append(opts, progressbar.OptionSetWidth(40))
		b.bar = progressbar.NewOptions64(int64(ev.Total), opts...)
		return
	}

	opts = append(opts, progressbar.OptionSpinnerType(14), progressbar.OptionSetElapsedTime(false))
	b.bar = progressbar.NewOptions(-1, opts...)
}

func describeClassify(ev bioscan.Event) string {
	if ev.Total > 0 {
		return fmt.Sprintf("classifying %d/%d files", ev.Scanned, ev.Total)
	}
	return fmt.Sprintf("classifying (%d files so far)", ev.Scanned)
}

func describeDone(ev bioscan.Event) string {
	if ev.Result == nil {
		return "scan complete"
	}
	r := ev.Result

	var dupBytes uint64
	for _, g := range r.DuplicateGroups {
		dupBytes += uint64(g.TotalSize)
	}

	return fmt.Sprintf("%d files (%s), %d duplicate groups (%s), %d mismatches, %d erasable candidates (%.1fs)",
		r.NFiles, humanize.IBytes(uint64(r.Stats.TotalBytes)), len(r.DuplicateGroups), humanize.Bytes(dupBytes),
		len(r.Mismatches), len(r.ErasableCandidates), r.Stats.WallClockS)
}
