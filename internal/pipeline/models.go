package pipeline

import (
	"errors"
	"time"

	"github.com/dvloznov/artifact-engine/internal/export"
	"github.com/dvloznov/artifact-engine/internal/record"
)

// ErrNothingRequested is returned when a run asks for zero documents.
var ErrNothingRequested = errors.New("no documents requested")

// ItemResult is the outcome for one record.
type ItemResult struct {
	ID string
	// Stage is Done for items that made it through every per-item stage,
	// otherwise the stage that failed.
	Stage  Stage
	Images []string
	Err    error
}

// Failed reports whether the item dropped out of the run.
func (r ItemResult) Failed() bool { return r.Err != nil }

// Report summarises one per-kind run.
type Report struct {
	Kind      record.Kind
	Requested int
	Records   []record.Record
	Items     []ItemResult
	Durations map[Stage]time.Duration
	Export    export.Paths
	// ExportErr is set when the export for this kind failed.
	ExportErr error
	// PublishErr is set when a configured Publisher failed.
	PublishErr error
}

// Succeeded counts items with degraded output.
func (r *Report) Succeeded() int {
	n := 0
	for _, it := range r.Items {
		if !it.Failed() {
			n++
		}
	}
	return n
}

// Dropped returns the items that failed mid-run.
func (r *Report) Dropped() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Failed() {
			out = append(out, it)
		}
	}
	return out
}

// Total is the wall-clock time across all stages.
func (r *Report) Total() time.Duration {
	var d time.Duration
	for _, v := range r.Durations {
		d += v
	}
	return d
}
