package pipeline

import (
	"fmt"

	"github.com/dvloznov/artifact-engine/internal/record"
)

// Stage is one phase of a per-kind run.
type Stage int

const (
	Fabricating Stage = iota
	Rendering
	Rasterizing
	Degrading
	Exporting
	Done
)

// Stages lists every stage in run order.
var Stages = []Stage{Fabricating, Rendering, Rasterizing, Degrading, Exporting, Done}

func (s Stage) String() string {
	switch s {
	case Fabricating:
		return "fabricating"
	case Rendering:
		return "rendering"
	case Rasterizing:
		return "rasterizing"
	case Degrading:
		return "degrading"
	case Exporting:
		return "exporting"
	case Done:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// run tracks the state machine for one kind. Stages only move forward.
type run struct {
	kind  record.Kind
	stage Stage
}

func newRun(kind record.Kind) *run {
	return &run{kind: kind, stage: Fabricating}
}

// advance moves to next, refusing backward or repeated transitions.
func (r *run) advance(next Stage) error {
	if next <= r.stage {
		return fmt.Errorf("advance: %s run cannot move from %s to %s", r.kind, r.stage, next)
	}
	r.stage = next
	return nil
}
