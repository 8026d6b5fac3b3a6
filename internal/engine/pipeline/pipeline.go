// Package pipeline composes multi-phase operations into one schedulable unit
// with weighted overall progress and scoped temporary-resource cleanup.
package pipeline

import (
	"context"
	"fmt"

	"github.com/barge-dl/barge/internal/scheduler"
)

// Sink receives a phase's own progress in [0,1]. The composer maps it into
// the phase's slice of the overall progress.
type Sink func(fraction float64)

// Phase is one step of a composite operation. Weight is its share of the
// overall progress; weights are normalized over their sum, so any positive
// scale works. A zero weight marks an instantaneous phase.
type Phase struct {
	Name   string
	Weight float64
	Run    func(ctx context.Context, report Sink) error
}

// Run executes the phases in order against one TaskContext. Each phase's
// [0,1] progress lands in [sum(previous weights), +weight] of the overall
// value, and the overall value snaps to the boundary when a phase finishes,
// so it is monotonically non-decreasing whenever each phase's own progress
// is. Cancellation is checked before every phase; the first phase error
// aborts the composite wrapped with the phase name.
func Run(ctx context.Context, tc *scheduler.TaskContext, phases ...Phase) error {
	var total float64
	for _, p := range phases {
		if p.Weight > 0 {
			total += p.Weight
		}
	}

	var done float64
	for _, p := range phases {
		if ctx.Err() != nil || (tc != nil && tc.IsCancelled()) {
			return context.Canceled
		}

		base, span := 0.0, 0.0
		if total > 0 {
			base = done / total
			if p.Weight > 0 {
				span = p.Weight / total
			}
		}

		sink := func(fraction float64) {
			if fraction < 0 {
				fraction = 0
			}
			if fraction > 1 {
				fraction = 1
			}
			if tc != nil {
				tc.ReportProgress(base + fraction*span)
			}
		}

		if err := p.Run(ctx, sink); err != nil {
			return fmt.Errorf("phase %s: %w", p.Name, err)
		}

		if p.Weight > 0 {
			done += p.Weight
		}
		if tc != nil {
			tc.ReportProgress(base + span)
		}
	}

	return nil
}
