// Package rasterize converts PDF documents to page images with poppler's
// pdftoppm.
package rasterize

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/dvloznov/artifact-engine/internal/errs"
)

// DefaultDPI is the resolution used when none is configured.
const DefaultDPI = 300

// Format is an output image format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// Rasterizer renders every page of a PDF to an image.
type Rasterizer struct {
	DPI    int
	Format Format
	// Command is the pdftoppm binary; empty means "pdftoppm" on PATH.
	Command string
}

// New returns a Rasterizer after checking its settings.
func New(dpi int, format Format) (*Rasterizer, error) {
	if dpi <= 0 {
		return nil, errs.Configf("dpi", "%d is not a positive resolution", dpi)
	}
	switch format {
	case PNG, JPEG:
	case "":
		format = PNG
	default:
		return nil, errs.Configf("format", "unsupported image format %q (want png or jpeg)", format)
	}
	return &Rasterizer{DPI: dpi, Format: format}, nil
}

// CheckAvailable reports a configuration error when the converter binary
// cannot be found.
func (r *Rasterizer) CheckAvailable() error {
	if _, err := exec.LookPath(r.command()); err != nil {
		return errs.Configf("rasterizer", "%s not found on PATH (install poppler-utils)", r.command())
	}
	return nil
}

func (r *Rasterizer) command() string {
	if r.Command == "" {
		return "pdftoppm"
	}
	return r.Command
}

func (r *Rasterizer) format() Format {
	if r.Format == "" {
		return PNG
	}
	return r.Format
}

// Rasterize writes one image per page into outDir and returns their paths
// in page order. A one-page document yields <stem>.<ext>; longer documents
// yield <stem>_page<N>.<ext>.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("Rasterize: PDF not found: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("Rasterize: create %s: %w", outDir, err)
	}

	// Work next to the destination so the final moves are plain renames.
	work, err := os.MkdirTemp(outDir, ".raster-")
	if err != nil {
		return nil, fmt.Errorf("Rasterize: temp dir: %w", err)
	}
	defer os.RemoveAll(work)

	formatFlag := "-png"
	if r.format() == JPEG {
		formatFlag = "-jpeg"
	}
	dpi := r.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	prefix := filepath.Join(work, "page")
	cmd := exec.CommandContext(ctx, r.command(), "-r", strconv.Itoa(dpi), formatFlag, pdfPath, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("Rasterize: %s %s: %w: %s", r.command(), filepath.Base(pdfPath), err, strings.TrimSpace(stderr.String()))
	}

	pages, err := collectPages(work)
	if err != nil {
		return nil, fmt.Errorf("Rasterize: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("Rasterize: no images generated from %s", pdfPath)
	}

	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	ext := string(r.format())
	out := make([]string, 0, len(pages))
	for i, p := range pages {
		name := fmt.Sprintf("%s.%s", stem, ext)
		if len(pages) > 1 {
			name = fmt.Sprintf("%s_page%d.%s", stem, i+1, ext)
		}
		dst := filepath.Join(outDir, name)
		if err := os.Rename(p, dst); err != nil {
			return out, fmt.Errorf("Rasterize: move page %d: %w", i+1, err)
		}
		out = append(out, dst)
	}
	return out, nil
}

// collectPages returns pdftoppm's page files ordered by page number. The
// tool zero-pads page numbers to the width of the page count.
func collectPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	type page struct {
		n    int
		path string
	}
	var pages []page
	for _, e := range entries {
		name := e.Name()
		base := strings.TrimSuffix(name, filepath.Ext(name))
		num, ok := strings.CutPrefix(base, "page-")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		pages = append(pages, page{n: n, path: filepath.Join(dir, name)})
	}
	slices.SortFunc(pages, func(a, b page) int { return a.n - b.n })

	paths := make([]string, len(pages))
	for i, p := range pages {
		paths[i] = p.path
	}
	return paths, nil
}
