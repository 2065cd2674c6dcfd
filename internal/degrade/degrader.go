package degrade

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"maps"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"

	"github.com/disintegration/imaging"
)

type effectFunc func(img *image.NRGBA, params map[string]float64, rng *rand.Rand) (*image.NRGBA, error)

var effects = map[string]effectFunc{
	InkBleed:            inkBleed,
	LowInkPeriodicLines: lowInkPeriodicLines,
	NoiseTexturize:      noiseTexturize,
	DirtyRollers:        dirtyRollers,
	Geometric:           geometric,
	Jpeg:                jpegRoundTrip,
}

// Degrader applies a Profile to clean images. It owns its random source so
// seeded runs reproduce byte-identical output.
type Degrader struct {
	rng *rand.Rand
}

// Option configures a Degrader.
type Option func(*degraderConfig)

type degraderConfig struct {
	seed   uint64
	seeded bool
}

// WithSeed makes the degrader reproducible.
func WithSeed(seed int64) Option {
	return func(c *degraderConfig) {
		c.seed = uint64(seed)
		c.seeded = true
	}
}

// NewDegrader builds a Degrader.
func NewDegrader(opts ...Option) *Degrader {
	var cfg degraderConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.seeded {
		cfg.seed = rand.Uint64()
	}
	return &Degrader{rng: rand.New(rand.NewPCG(cfg.seed, cfg.seed^0x9e3779b97f4a7c15))}
}

// Degrade reads src, applies every effect of p that fires, and writes the
// result under outDir with the same file name. When no effect fires, the
// first paper effect is applied at its mildest settings so the output never
// equals the input.
func (d *Degrader) Degrade(ctx context.Context, src string, p Profile, outDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img, err := imaging.Open(src)
	if err != nil {
		return "", fmt.Errorf("Degrade: open %s: %w", src, err)
	}

	out := imaging.Clone(img)
	applied := 0
	for _, phase := range p.Phases() {
		for _, e := range phase {
			if d.rng.Float64() >= e.Probability {
				continue
			}
			if out, err = d.apply(e, out, false); err != nil {
				return "", fmt.Errorf("Degrade: %s: %w", e.Name, err)
			}
			applied++
		}
	}
	if applied == 0 {
		if e, ok := mildest(p); ok {
			if out, err = d.apply(e, out, true); err != nil {
				return "", fmt.Errorf("Degrade: %s: %w", e.Name, err)
			}
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("Degrade: create %s: %w", outDir, err)
	}
	dst := filepath.Join(outDir, filepath.Base(src))
	if err := imaging.Save(out, dst); err != nil {
		return "", fmt.Errorf("Degrade: save %s: %w", dst, err)
	}
	return dst, nil
}

// apply draws the effect's parameters, in key order so a seeded source is
// consumed identically every run, and runs it. atMin pins every parameter to
// its lower bound.
func (d *Degrader) apply(e Effect, img *image.NRGBA, atMin bool) (*image.NRGBA, error) {
	fn, ok := effects[e.Name]
	if !ok {
		return nil, fmt.Errorf("unknown effect %q", e.Name)
	}
	params := make(map[string]float64, len(e.Params))
	for _, k := range slices.Sorted(maps.Keys(e.Params)) {
		r := e.Params[k]
		if atMin {
			params[k] = r.Min
			continue
		}
		params[k] = r.Min + d.rng.Float64()*(r.Max-r.Min)
	}
	return fn(img, params, d.rng)
}

func mildest(p Profile) (Effect, bool) {
	if len(p.Paper) > 0 {
		return p.Paper[0], true
	}
	all := p.Effects()
	if len(all) == 0 {
		return Effect{}, false
	}
	return all[0], true
}

// inkBleed spreads dark strokes into their neighbourhood: a blur of the
// image, darkest-of per channel, blended back at the severity opacity.
func inkBleed(img *image.NRGBA, p map[string]float64, _ *rand.Rand) (*image.NRGBA, error) {
	sigma := math.Max(0.3, p["kernel"]*p["intensity"])
	blurred := imaging.Blur(img, sigma)
	bleed := imaging.Clone(img)
	for i := 0; i < len(bleed.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			if blurred.Pix[i+c] < bleed.Pix[i+c] {
				bleed.Pix[i+c] = blurred.Pix[i+c]
			}
		}
	}
	return imaging.Overlay(img, bleed, image.Pt(0, 0), p["severity"]), nil
}

// lowInkPeriodicLines fades evenly spaced horizontal bands, as from a
// starved print head.
func lowInkPeriodicLines(img *image.NRGBA, p map[string]float64, rng *rand.Rand) (*image.NRGBA, error) {
	out := imaging.Clone(img)
	b := out.Bounds()
	count := max(1, int(math.Round(p["count"])))
	period := max(1, b.Dy()/count)
	offset := rng.IntN(period)
	for y := b.Min.Y + offset; y < b.Max.Y; y += period {
		for dy := 0; dy < 2 && y+dy < b.Max.Y; dy++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				i := out.PixOffset(x, y+dy)
				for c := 0; c < 3; c++ {
					v := out.Pix[i+c]
					out.Pix[i+c] = v + uint8(float64(255-v)*0.6)
				}
			}
		}
	}
	return out, nil
}

// noiseTexturize adds grey noise in square cells whose edge is the
// turbulence, giving paper grain rather than per-pixel static.
func noiseTexturize(img *image.NRGBA, p map[string]float64, rng *rand.Rand) (*image.NRGBA, error) {
	out := imaging.Clone(img)
	b := out.Bounds()
	sigma := p["sigma"]
	cell := max(1, int(math.Round(p["turbulence"])))
	for cy := b.Min.Y; cy < b.Max.Y; cy += cell {
		for cx := b.Min.X; cx < b.Max.X; cx += cell {
			n := rng.NormFloat64() * sigma
			// A cell that rounds to no change still darkens by one level.
			if math.Abs(n) < 1 {
				n = -1
			}
			for y := cy; y < min(cy+cell, b.Max.Y); y++ {
				for x := cx; x < min(cx+cell, b.Max.X); x++ {
					i := out.PixOffset(x, y)
					for c := 0; c < 3; c++ {
						out.Pix[i+c] = clamp(float64(out.Pix[i+c]) + n)
					}
				}
			}
		}
	}
	return out, nil
}

// dirtyRollers darkens a few vertical bands of the given width, repeated at
// a fixed pitch like marks left by a soiled feed roller.
func dirtyRollers(img *image.NRGBA, p map[string]float64, rng *rand.Rand) (*image.NRGBA, error) {
	out := imaging.Clone(img)
	b := out.Bounds()
	width := max(1, int(math.Round(p["line_width"])))
	pitch := max(width*4, b.Dx()/(3+rng.IntN(4)))
	shade := 0.75 + rng.Float64()*0.15
	for x0 := b.Min.X + rng.IntN(pitch); x0 < b.Max.X; x0 += pitch {
		for x := x0; x < min(x0+width, b.Max.X); x++ {
			for y := b.Min.Y; y < b.Max.Y; y++ {
				i := out.PixOffset(x, y)
				for c := 0; c < 3; c++ {
					out.Pix[i+c] = clamp(float64(out.Pix[i+c]) * shade)
				}
			}
		}
	}
	return out, nil
}

// geometric rotates on a white background and crops back to the original
// size.
func geometric(img *image.NRGBA, p map[string]float64, _ *rand.Rand) (*image.NRGBA, error) {
	b := img.Bounds()
	rotated := imaging.Rotate(img, p["rotate"], color.White)
	return imaging.CropCenter(rotated, b.Dx(), b.Dy()), nil
}

// jpegRoundTrip introduces compression artefacts by encoding and decoding
// at the given quality.
func jpegRoundTrip(img *image.NRGBA, p map[string]float64, _ *rand.Rand) (*image.NRGBA, error) {
	var buf bytes.Buffer
	q := int(math.Round(p["quality"]))
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	decoded, err := imaging.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}
	return imaging.Clone(decoded), nil
}

func clamp(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}
