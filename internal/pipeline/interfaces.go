package pipeline

import (
	"context"

	"github.com/dvloznov/artifact-engine/internal/degrade"
	"github.com/dvloznov/artifact-engine/internal/export"
	"github.com/dvloznov/artifact-engine/internal/record"
)

// Fabricator produces validated records. A *fabricate.Engine satisfies it.
type Fabricator interface {
	Fabricate(kind record.Kind) (record.Record, error)
}

// Renderer turns a record into a document file and stamps the template it
// used. A *render.Renderer satisfies it.
type Renderer interface {
	Discover(kind record.Kind) ([]string, error)
	Render(ctx context.Context, rec record.Record, outDir, name string) (string, error)
}

// Rasterizer converts a document into one image per page.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error)
}

// Degrader writes a degraded copy of a clean image under outDir.
type Degrader interface {
	Degrade(ctx context.Context, src string, p degrade.Profile, outDir string) (string, error)
}

// Exporter writes the ground truth and summary views for one kind. images
// maps record IDs to the degraded image files written for them.
type Exporter interface {
	Export(ctx context.Context, records []record.Record, images map[string][]string, outDir string) (export.Paths, error)
}

// Publisher pushes a finished kind's records somewhere outside the output
// tree, such as a warehouse table. Optional.
type Publisher interface {
	Publish(ctx context.Context, kind record.Kind, records []record.Record) error
}
