// Package pipeline sequences fabrication, rendering, rasterization,
// degradation and export for each document kind.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/artifact-engine/internal/degrade"
	"github.com/dvloznov/artifact-engine/internal/errs"
	"github.com/dvloznov/artifact-engine/internal/logger"
	"github.com/dvloznov/artifact-engine/internal/record"
	"github.com/rs/zerolog"
)

// DefaultProgressEvery is how often per-stage progress is logged.
const DefaultProgressEvery = 10

// Layout names the output directories for one kind.
type Layout struct {
	Root string
	Kind record.Kind
}

func (l Layout) PDFDir() string      { return filepath.Join(l.Root, l.Kind.Plural()+"_pdfs") }
func (l Layout) CleanDir() string    { return filepath.Join(l.Root, l.Kind.Plural()+"_images_clean") }
func (l Layout) DegradedDir() string { return filepath.Join(l.Root, l.Kind.Plural()+"_images_degraded") }

// Options controls a run.
type Options struct {
	OutputDir string
	Profile   degrade.Profile
	// KeepClean retains the pre-degradation images.
	KeepClean bool
	// Template forces one template name for every item; empty picks at random.
	Template      string
	ProgressEvery int
}

// Deps are the collaborators a Coordinator drives. Publisher may be nil.
type Deps struct {
	Fabricator Fabricator
	Renderer   Renderer
	Rasterizer Rasterizer
	Degrader   Degrader
	Exporter   Exporter
	Publisher  Publisher
}

// Coordinator runs the per-kind state machine.
type Coordinator struct {
	deps Deps
	opts Options
	now  func() time.Time
}

// NewCoordinator checks that every required collaborator is present.
func NewCoordinator(deps Deps, opts Options) (*Coordinator, error) {
	switch {
	case deps.Fabricator == nil:
		return nil, errs.Configf("pipeline", "no fabricator")
	case deps.Renderer == nil:
		return nil, errs.Configf("pipeline", "no renderer")
	case deps.Rasterizer == nil:
		return nil, errs.Configf("pipeline", "no rasterizer")
	case deps.Degrader == nil:
		return nil, errs.Configf("pipeline", "no degrader")
	case deps.Exporter == nil:
		return nil, errs.Configf("pipeline", "no exporter")
	}
	if opts.OutputDir == "" {
		return nil, errs.Configf("output", "empty output directory")
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	if opts.Profile.Tier == "" {
		opts.Profile = degrade.ProfileFor(string(degrade.Medium))
	}
	return &Coordinator{deps: deps, opts: opts, now: time.Now}, nil
}

// Run fabricates count records of kind and drives them through every
// stage. Setup, fabrication and validation errors abort the run. A failure
// while rendering, rasterizing or degrading one item drops that item and
// the run continues. The returned report is non-nil once setup succeeded;
// an export failure is returned alongside it.
func (c *Coordinator) Run(ctx context.Context, kind record.Kind, count int) (*Report, error) {
	if count <= 0 {
		return nil, fmt.Errorf("Run: %s: %w", kind, ErrNothingRequested)
	}
	layout := Layout{Root: c.opts.OutputDir, Kind: kind}
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"kind":       string(kind),
		"output_dir": layout.Root,
	})
	ctx = logger.WithContext(ctx, log)

	if err := c.setup(kind, layout); err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}

	report := &Report{Kind: kind, Requested: count, Durations: make(map[Stage]time.Duration)}
	state := newRun(kind)

	log.Info().Str("stage", Fabricating.String()).Int("count", count).Msg("Stage started")
	start := c.now()
	items := make([]*ItemState, 0, count)
	for i := range count {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("Run: %w", err)
		}
		rec, err := c.deps.Fabricator.Fabricate(kind)
		if err != nil {
			return report, fmt.Errorf("Run: fabricate %s %d of %d: %w", kind, i+1, count, err)
		}
		items = append(items, &ItemState{Record: rec})
		report.Records = append(report.Records, rec)
		c.progress(log, Fabricating, i+1, count)
	}
	report.Durations[Fabricating] = c.now().Sub(start)

	steps := []ItemStep{
		&RenderStep{Renderer: c.deps.Renderer, OutDir: layout.PDFDir(), Template: c.opts.Template},
		&RasterizeStep{Rasterizer: c.deps.Rasterizer, OutDir: layout.CleanDir()},
		&DegradeStep{Degrader: c.deps.Degrader, Profile: c.opts.Profile, OutDir: layout.DegradedDir()},
	}
	for _, step := range steps {
		if err := state.advance(step.Stage()); err != nil {
			return report, fmt.Errorf("Run: %w", err)
		}
		start := c.now()
		if err := c.execute(ctx, log, step, items); err != nil {
			return report, fmt.Errorf("Run: %w", err)
		}
		if step.Stage() == Degrading && !c.opts.KeepClean {
			c.removeClean(log, items, layout)
		}
		report.Durations[step.Stage()] = c.now().Sub(start)
	}
	report.Items = results(items)

	if err := state.advance(Exporting); err != nil {
		return report, fmt.Errorf("Run: %w", err)
	}
	start = c.now()
	paths, exportErr := c.deps.Exporter.Export(ctx, report.Records, imageIndex(report.Items), c.opts.OutputDir)
	if exportErr != nil {
		report.ExportErr = exportErr
		log.Error().Err(exportErr).Msg("Export failed")
	} else {
		report.Export = paths
		if c.deps.Publisher != nil {
			if err := c.deps.Publisher.Publish(ctx, kind, report.Records); err != nil {
				report.PublishErr = err
				log.Error().Err(err).Msg("Publish failed")
			}
		}
	}
	report.Durations[Exporting] = c.now().Sub(start)

	if err := state.advance(Done); err != nil {
		return report, fmt.Errorf("Run: %w", err)
	}

	dropped := len(report.Dropped())
	ev := log.Info()
	if dropped > 0 {
		ev = log.Warn()
	}
	ev.Int("requested", count).
		Int("succeeded", report.Succeeded()).
		Int("dropped", dropped).
		Dur("elapsed", report.Total()).
		Msg("Run finished")

	if exportErr != nil {
		return report, fmt.Errorf("Run: export %s: %w", kind, exportErr)
	}
	return report, nil
}

// setup creates the output directories and checks that templates exist.
func (c *Coordinator) setup(kind record.Kind, layout Layout) error {
	if _, err := c.deps.Renderer.Discover(kind); err != nil {
		return err
	}
	dirs := []string{layout.PDFDir(), layout.CleanDir(), layout.DegradedDir()}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Configf("output", "create %s: %v", dir, err)
		}
	}
	return nil
}

// execute runs step for every item still alive. Item failures are logged and
// recorded on the item; only cancellation stops the loop.
func (c *Coordinator) execute(ctx context.Context, log zerolog.Logger, step ItemStep, items []*ItemState) error {
	stage := step.Stage()
	alive := 0
	for _, it := range items {
		if it.Alive() {
			alive++
		}
	}
	log.Info().Str("stage", stage.String()).Int("count", alive).Msg("Stage started")

	done := 0
	for _, it := range items {
		if !it.Alive() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.Execute(ctx, it); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			it.Err = &errs.ItemError{ID: it.Record.RecordID(), Stage: stage.String(), Err: err}
			it.FailedAt = stage
			log.Error().Err(err).
				Str("stage", stage.String()).
				Str("id", it.Record.RecordID()).
				Msg("Item dropped")
		}
		done++
		c.progress(log, stage, done, alive)
	}
	return nil
}

// removeClean deletes every clean image the run produced.
func (c *Coordinator) removeClean(log zerolog.Logger, items []*ItemState, layout Layout) {
	removed := 0
	for _, it := range items {
		for _, p := range it.CleanImages {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn().Err(err).Str("path", p).Msg("Failed to remove clean image")
				continue
			}
			removed++
		}
		it.CleanImages = nil
	}
	// Only succeeds when nothing else lives there.
	_ = os.Remove(layout.CleanDir())
	log.Debug().Int("removed", removed).Msg("Removed clean images")
}

func (c *Coordinator) progress(log zerolog.Logger, stage Stage, done, total int) {
	if done%c.opts.ProgressEvery != 0 && done != total {
		return
	}
	log.Info().
		Str("stage", stage.String()).
		Int("done", done).
		Int("total", total).
		Msg("Progress")
}

func results(items []*ItemState) []ItemResult {
	out := make([]ItemResult, len(items))
	for i, it := range items {
		r := ItemResult{ID: it.Record.RecordID(), Stage: it.FailedAt, Err: it.Err}
		if it.Alive() {
			r.Stage = Done
			r.Images = it.DegradedImages
		}
		out[i] = r
	}
	return out
}

// imageIndex maps each surviving record to its degraded images.
func imageIndex(items []ItemResult) map[string][]string {
	idx := make(map[string][]string, len(items))
	for _, it := range items {
		if !it.Failed() {
			idx[it.ID] = it.Images
		}
	}
	return idx
}

// RunAll runs each kind with a positive count in pipeline order. Fatal
// errors stop immediately. A kind whose export fails does not block the
// others; those failures are joined into the returned error.
func (c *Coordinator) RunAll(ctx context.Context, counts map[record.Kind]int) ([]*Report, error) {
	total := 0
	for _, n := range counts {
		if n > 0 {
			total += n
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("RunAll: %w", ErrNothingRequested)
	}

	var reports []*Report
	var failures []error
	for _, kind := range record.Kinds {
		n := counts[kind]
		if n <= 0 {
			continue
		}
		report, err := c.Run(ctx, kind, n)
		if report != nil {
			reports = append(reports, report)
		}
		if err == nil {
			continue
		}
		if report == nil || report.ExportErr == nil {
			return reports, fmt.Errorf("RunAll: %w", err)
		}
		failures = append(failures, err)
	}
	if len(failures) > 0 {
		return reports, fmt.Errorf("RunAll: %w", errors.Join(failures...))
	}
	return reports, nil
}
