package export

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dvloznov/artifact-engine/internal/logger"
	"github.com/dvloznov/artifact-engine/internal/record"
)

// Paths are the two files written for one kind.
type Paths struct {
	GroundTruth string
	Summary     string
}

// Exporter writes the denormalized and summary views of a collection.
type Exporter struct {
	Writer     Writer
	Aggregator Aggregator
}

// NewExporter returns an Exporter for the given writer whose image_filename
// column uses imageExt.
func NewExporter(w Writer, imageExt string) *Exporter {
	return &Exporter{Writer: w, Aggregator: Aggregator{ImageExt: imageExt}}
}

// Export writes <plural>_ground_truth.<ext> and <plural>_summary.<ext> into
// outDir. images lists the degraded files per record ID; nil predicts them
// from the ID. It refuses an empty collection with errs.ErrEmptyExport.
func (e *Exporter) Export(ctx context.Context, records []record.Record, images map[string][]string, outDir string) (Paths, error) {
	log := logger.FromContext(ctx)

	agg := e.Aggregator
	if images != nil {
		agg.Images = images
	}
	gt, err := agg.Denormalized(records)
	if err != nil {
		return Paths{}, fmt.Errorf("Export: %w", err)
	}
	sum, err := agg.Summary(records)
	if err != nil {
		return Paths{}, fmt.Errorf("Export: %w", err)
	}

	paths := Paths{
		GroundTruth: filepath.Join(outDir, gt.Name+"."+e.Writer.Ext()),
		Summary:     filepath.Join(outDir, sum.Name+"."+e.Writer.Ext()),
	}
	if err := e.Writer.Write(ctx, gt, paths.GroundTruth); err != nil {
		return Paths{}, fmt.Errorf("Export: ground truth: %w", err)
	}
	if err := e.Writer.Write(ctx, sum, paths.Summary); err != nil {
		return Paths{}, fmt.Errorf("Export: summary: %w", err)
	}

	log.Info().
		Str("kind", string(records[0].Kind())).
		Int("records", len(sum.Rows)).
		Int("rows", len(gt.Rows)).
		Str("ground_truth", paths.GroundTruth).
		Str("summary", paths.Summary).
		Msg("Exported ground truth")
	return paths, nil
}
