package rasterize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/artifact-engine/internal/errs"
)

// minimalPDF builds a valid PDF with the given number of blank A6 pages and
// one line of text on each.
func minimalPDF(pages int) []byte {
	var objs []string
	kids := make([]string, pages)
	// 1: catalog, 2: pages, 3: font, then a page and content pair per page.
	for i := 0; i < pages; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i := 0; i < pages; i++ {
		stream := fmt.Sprintf("BT /F1 18 Tf 40 300 Td (Page %d) Tj ET", i+1)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 298 420] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func writePDF(t *testing.T, dir, name string, pages int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, minimalPDF(pages), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakePdftoppm writes a shell script that mimics pdftoppm's output naming
// for the given page count.
func fakePdftoppm(t *testing.T, pages int) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	var script strings.Builder
	script.WriteString("#!/bin/sh\nfor a; do prefix=$a; done\next=png\nfor a; do [ \"$a\" = -jpeg ] && ext=jpg; done\n")
	for i := 1; i <= pages; i++ {
		num := fmt.Sprintf("%d", i)
		if pages >= 10 {
			num = fmt.Sprintf("%02d", i)
		}
		fmt.Fprintf(&script, "printf 'page%d' > \"$prefix-%s.$ext\"\n", i, num)
	}
	path := filepath.Join(t.TempDir(), "pdftoppm")
	if err := os.WriteFile(path, []byte(script.String()), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew(t *testing.T) {
	if _, err := New(0, PNG); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("New(0) error = %v, want ErrConfiguration", err)
	}
	if _, err := New(150, "tiff"); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("New(tiff) error = %v, want ErrConfiguration", err)
	}
	r, err := New(150, "")
	if err != nil {
		t.Fatal(err)
	}
	if r.Format != PNG {
		t.Errorf("default format = %s, want png", r.Format)
	}
}

func TestRasterize_NamingWithFakeTool(t *testing.T) {
	tests := []struct {
		name   string
		pages  int
		format Format
		want   []string
	}{
		{"single page", 1, PNG, []string{"doc.png"}},
		{"three pages", 3, PNG, []string{"doc_page1.png", "doc_page2.png", "doc_page3.png"}},
		{"jpeg", 1, JPEG, []string{"doc.jpeg"}},
		{"padded page numbers", 11, PNG, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			pdf := writePDF(t, dir, "doc.pdf", 1)
			r := &Rasterizer{DPI: 150, Format: tt.format, Command: fakePdftoppm(t, tt.pages)}
			outDir := filepath.Join(dir, "clean")

			got, err := r.Rasterize(context.Background(), pdf, outDir)
			if err != nil {
				t.Fatalf("Rasterize() error = %v", err)
			}
			if len(got) != tt.pages {
				t.Fatalf("Rasterize() returned %d paths, want %d", len(got), tt.pages)
			}
			for i, p := range got {
				if tt.want != nil && filepath.Base(p) != tt.want[i] {
					t.Errorf("path %d = %s, want %s", i, filepath.Base(p), tt.want[i])
				}
				data, _ := os.ReadFile(p)
				if want := fmt.Sprintf("page%d", i+1); string(data) != want {
					t.Errorf("%s holds %q, want %q (pages out of order)", p, data, want)
				}
			}

			entries, _ := os.ReadDir(outDir)
			if len(entries) != tt.pages {
				t.Errorf("out dir has %d entries, want %d (temp dir left behind?)", len(entries), tt.pages)
			}
		})
	}
}

func TestRasterize_Errors(t *testing.T) {
	dir := t.TempDir()
	r := &Rasterizer{DPI: 150, Format: PNG, Command: fakePdftoppm(t, 0)}

	if _, err := r.Rasterize(context.Background(), filepath.Join(dir, "missing.pdf"), dir); err == nil {
		t.Error("expected error for missing PDF")
	}

	pdf := writePDF(t, dir, "empty.pdf", 1)
	if _, err := r.Rasterize(context.Background(), pdf, filepath.Join(dir, "out")); err == nil {
		t.Error("expected error when no pages are produced")
	}

	broken := &Rasterizer{DPI: 150, Command: filepath.Join(dir, "no-such-tool")}
	if _, err := broken.Rasterize(context.Background(), pdf, filepath.Join(dir, "out")); err == nil {
		t.Error("expected error for missing tool")
	}
	if err := broken.CheckAvailable(); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("CheckAvailable() error = %v, want ErrConfiguration", err)
	}
}

func TestRasterize_Poppler150DPI(t *testing.T) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		t.Skip("pdftoppm not installed")
	}
	dir := t.TempDir()
	pdf := writePDF(t, dir, "a1b2.pdf", 1)
	r, err := New(150, PNG)
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Rasterize(context.Background(), pdf, filepath.Join(dir, "clean"))
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if len(got) != 1 || filepath.Base(got[0]) != "a1b2.png" {
		t.Fatalf("Rasterize() = %v, want one a1b2.png", got)
	}

	f, err := os.Open(got[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	// 298pt at 150 DPI is about 621px.
	if cfg.Width < 600 || cfg.Width > 640 {
		t.Errorf("width = %d, want about 621 at 150 DPI", cfg.Width)
	}
}

func TestRasterize_PopplerMultiPage(t *testing.T) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		t.Skip("pdftoppm not installed")
	}
	dir := t.TempDir()
	pdf := writePDF(t, dir, "multi.pdf", 2)
	got, err := (&Rasterizer{DPI: 72, Format: PNG}).Rasterize(context.Background(), pdf, filepath.Join(dir, "clean"))
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if len(got) != 2 || filepath.Base(got[1]) != "multi_page2.png" {
		t.Errorf("Rasterize() = %v", got)
	}
}
