package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dvloznov/artifact-engine/internal/degrade"
	"github.com/dvloznov/artifact-engine/internal/logger"
	"github.com/dvloznov/artifact-engine/internal/record"
)

// ItemStep is one per-item stage of a run.
type ItemStep interface {
	Stage() Stage
	Execute(ctx context.Context, item *ItemState) error
}

// ItemState holds everything produced for one record so far.
type ItemState struct {
	Record         record.Record
	PDFPath        string
	CleanImages    []string
	DegradedImages []string

	// Err is set once the item has dropped out; FailedAt names the stage.
	Err      error
	FailedAt Stage
}

// Alive reports whether the item is still flowing through the run.
func (s *ItemState) Alive() bool { return s.Err == nil }

// RenderStep renders the record into OutDir. An empty Template picks one at
// random for each item.
type RenderStep struct {
	Renderer Renderer
	OutDir   string
	Template string
}

func (s *RenderStep) Stage() Stage { return Rendering }

func (s *RenderStep) Execute(ctx context.Context, item *ItemState) error {
	path, err := s.Renderer.Render(ctx, item.Record, s.OutDir, s.Template)
	if err != nil {
		return err
	}
	item.PDFPath = path
	return nil
}

// RasterizeStep converts the rendered document into clean page images.
type RasterizeStep struct {
	Rasterizer Rasterizer
	OutDir     string
}

func (s *RasterizeStep) Stage() Stage { return Rasterizing }

func (s *RasterizeStep) Execute(ctx context.Context, item *ItemState) error {
	if item.PDFPath == "" {
		return fmt.Errorf("no rendered document for %s", item.Record.RecordID())
	}
	paths, err := s.Rasterizer.Rasterize(ctx, item.PDFPath, s.OutDir)
	// Pages moved before a failure are kept so clean-up can reach them.
	item.CleanImages = paths
	return err
}

// DegradeStep writes a degraded copy of every clean page image. When one
// page fails, the pages already written for that item are removed.
type DegradeStep struct {
	Degrader Degrader
	Profile  degrade.Profile
	OutDir   string
}

func (s *DegradeStep) Stage() Stage { return Degrading }

func (s *DegradeStep) Execute(ctx context.Context, item *ItemState) error {
	if len(item.CleanImages) == 0 {
		return fmt.Errorf("no clean images for %s", item.Record.RecordID())
	}
	for _, src := range item.CleanImages {
		dst, err := s.Degrader.Degrade(ctx, src, s.Profile, s.OutDir)
		if err != nil {
			discard(ctx, item.DegradedImages)
			item.DegradedImages = nil
			return err
		}
		item.DegradedImages = append(item.DegradedImages, dst)
	}
	return nil
}

func discard(ctx context.Context, paths []string) {
	log := logger.FromContext(ctx)
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", p).Msg("Failed to remove partial output")
		}
	}
}
