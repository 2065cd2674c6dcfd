// Package render fills HTML templates with record data and converts the
// result to PDF.
package render

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dvloznov/artifact-engine/internal/errs"
	"github.com/dvloznov/artifact-engine/internal/record"
	"github.com/flosch/pongo2/v6"
)

const templateExt = ".html"

// Renderer renders records with templates found under
// <dir>/<kind plural>/*.html.
type Renderer struct {
	mu sync.Mutex

	dir       string
	conv      Converter
	rng       *rand.Rand
	stamper   *record.Stamper
	set       *pongo2.TemplateSet
	templates map[string]*pongo2.Template
	available map[record.Kind][]string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSeed makes template selection reproducible.
func WithSeed(seed int64) Option {
	return func(r *Renderer) {
		r.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	}
}

// NewRenderer builds a renderer rooted at dir. The directory must exist;
// per-kind template discovery happens in Discover.
func NewRenderer(dir string, conv Converter, opts ...Option) (*Renderer, error) {
	if conv == nil {
		return nil, errs.Configf("templates", "no PDF converter")
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errs.Configf("templates", "template directory %s not found", dir)
	}
	loader, err := pongo2.NewLocalFileSystemLoader(dir)
	if err != nil {
		return nil, errs.Configf("templates", "create loader for %s: %v", dir, err)
	}
	registerFilters()

	r := &Renderer{
		dir:       dir,
		conv:      conv,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		stamper:   record.NewStamper(),
		set:       pongo2.NewSet("artifact-engine", loader),
		templates: make(map[string]*pongo2.Template),
		available: make(map[record.Kind][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Discover lists the template names available for kind, without the .html
// extension and sorted. A missing or empty directory is a configuration
// error.
func (r *Renderer) Discover(kind record.Kind) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discoverLocked(kind)
}

func (r *Renderer) discoverLocked(kind record.Kind) ([]string, error) {
	if names, ok := r.available[kind]; ok {
		return names, nil
	}
	kindDir := filepath.Join(r.dir, kind.Plural())
	matches, err := filepath.Glob(filepath.Join(kindDir, "*"+templateExt))
	if err != nil {
		return nil, errs.Configf("templates", "scan %s: %v", kindDir, err)
	}
	if len(matches) == 0 {
		return nil, errs.Configf("templates", "no %s templates found in %s", templateExt, kindDir)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), templateExt))
	}
	slices.Sort(names)
	r.available[kind] = names
	return names, nil
}

// Render writes <outDir>/<id>.pdf and stamps the record with the template
// used. An empty templateName picks one uniformly at random.
func (r *Renderer) Render(ctx context.Context, rec record.Record, outDir, templateName string) (string, error) {
	tmpl, name, err := r.choose(rec.Kind(), templateName)
	if err != nil {
		return "", fmt.Errorf("Render: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(viewContext(rec), &buf); err != nil {
		return "", fmt.Errorf("Render: execute template %s: %w", name, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("Render: create %s: %w", outDir, err)
	}
	dst := filepath.Join(outDir, rec.RecordID()+".pdf")
	if err := r.conv.Convert(ctx, buf.Bytes(), dst); err != nil {
		return "", fmt.Errorf("Render: %w", err)
	}
	if err := r.stamper.Stamp(rec, name); err != nil {
		return "", fmt.Errorf("Render: stamp %s: %w", rec.RecordID(), err)
	}
	return dst, nil
}

// RenderHTML executes a template without conversion. It backs previews and
// tests.
func (r *Renderer) RenderHTML(rec record.Record, templateName string) ([]byte, error) {
	tmpl, name, err := r.choose(rec.Kind(), templateName)
	if err != nil {
		return nil, fmt.Errorf("RenderHTML: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(viewContext(rec), &buf); err != nil {
		return nil, fmt.Errorf("RenderHTML: execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) choose(kind record.Kind, name string) (*pongo2.Template, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	names, err := r.discoverLocked(kind)
	if err != nil {
		return nil, "", err
	}
	name = strings.TrimSuffix(name, templateExt)
	if name == "" {
		name = names[r.rng.IntN(len(names))]
	} else if !slices.Contains(names, name) {
		return nil, "", fmt.Errorf("template %q not found, available: %s", name, strings.Join(names, ", "))
	}

	path := filepath.Join(kind.Plural(), name+templateExt)
	if tmpl, ok := r.templates[path]; ok {
		return tmpl, name, nil
	}
	tmpl, err := r.set.FromFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("load template %s: %w", path, err)
	}
	r.templates[path] = tmpl
	return tmpl, name, nil
}

// viewContext exposes the record as doc plus values templates cannot
// compute themselves.
func viewContext(rec record.Record) pongo2.Context {
	ctx := pongo2.Context{
		"doc":  rec,
		"kind": string(rec.Kind()),
	}
	switch r := rec.(type) {
	case *record.Invoice:
		ctx["tax_percent"] = r.TaxRate.Shift(2).String()
	case *record.Receipt:
		ctx["tax_percent"] = r.TaxRate.Shift(2).String()
		ctx["items"] = r.Items
	case *record.Statement:
		ctx["total_debits"] = r.TotalDebits()
		ctx["total_credits"] = r.TotalCredits()
	}
	return ctx
}
