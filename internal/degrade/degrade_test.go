package degrade

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/dvloznov/artifact-engine/internal/errs"
)

// writeClean draws a white page with a few black "text" strokes.
func writeClean(t *testing.T, dir, name string) string {
	t.Helper()
	img := imaging.New(240, 160, color.White)
	for y := 20; y < 140; y += 20 {
		for x := 20; x < 200; x++ {
			img.Set(x, y, color.Black)
			img.Set(x, y+1, color.Black)
		}
	}
	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save clean image: %v", err)
	}
	return path
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{"light", Light, false},
		{"MEDIUM", Medium, false},
		{" heavy ", Heavy, false},
		{"extreme", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTier(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTier(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errs.ErrConfiguration) {
				t.Errorf("ParseTier(%q) error = %v, want ErrConfiguration", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTier(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestProfileFor_UnknownFallsBackToMedium(t *testing.T) {
	for _, name := range []string{"", "extreme", "lite"} {
		if got := ProfileFor(name).Tier; got != Medium {
			t.Errorf("ProfileFor(%q).Tier = %s, want medium", name, got)
		}
	}
}

// Every shared effect gets more likely, and its ranges do not get milder,
// from light to heavy.
func TestProfiles_SeverityIsMonotonic(t *testing.T) {
	prev := map[string]Effect{}
	for _, tier := range Tiers {
		p := ProfileFor(string(tier))
		if p.Tier != tier {
			t.Fatalf("ProfileFor(%s).Tier = %s", tier, p.Tier)
		}
		cur := map[string]Effect{}
		for _, e := range p.Effects() {
			cur[e.Name] = e
		}
		for name, before := range prev {
			now, ok := cur[name]
			if !ok {
				t.Errorf("%s drops effect %s present in a milder tier", tier, name)
				continue
			}
			if now.Probability < before.Probability {
				t.Errorf("%s: %s probability %.1f < %.1f", tier, name, now.Probability, before.Probability)
			}
			for k, r := range before.Params {
				if k == "rotate" {
					if now.Params[k].Max < r.Max || now.Params[k].Min > r.Min {
						t.Errorf("%s: %s rotation narrowed", tier, name)
					}
					continue
				}
				if k == "quality" {
					if now.Params[k].Max > r.Max {
						t.Errorf("%s: %s quality rose", tier, name)
					}
					continue
				}
				if now.Params[k].Max < r.Max {
					t.Errorf("%s: %s %s max %.2f < %.2f", tier, name, k, now.Params[k].Max, r.Max)
				}
			}
		}
		if len(cur) < len(prev) {
			t.Errorf("%s has fewer effects than the tier before it", tier)
		}
		prev = cur
	}
}

func TestProfiles_LightMatchesReference(t *testing.T) {
	p := ProfileFor("light")
	if len(p.Ink) != 1 || len(p.Paper) != 1 || len(p.Post) != 1 {
		t.Fatalf("light phases = %d/%d/%d, want 1/1/1", len(p.Ink), len(p.Paper), len(p.Post))
	}
	if p.Ink[0].Name != InkBleed || p.Ink[0].Probability != 0.3 {
		t.Errorf("light ink = %+v", p.Ink[0])
	}
	if r := p.Post[0].Params["rotate"]; r.Min != -2 || r.Max != 2 {
		t.Errorf("light rotate = %+v", r)
	}
}

func TestDescribe(t *testing.T) {
	lines := Describe(ProfileFor("heavy"))
	if len(lines) != 6 {
		t.Fatalf("heavy describes %d effects, want 6", len(lines))
	}
	if want := "InkBleed p=0.7 intensity=0.3..0.5 kernel=5 severity=0.5..0.8"; lines[0] != want {
		t.Errorf("Describe()[0] = %q, want %q", lines[0], want)
	}
}

func TestDegrade_LightKeepsNameChangesBytes(t *testing.T) {
	dir := t.TempDir()
	clean := writeClean(t, dir, "abc.png")
	outDir := filepath.Join(dir, "degraded")

	got, err := NewDegrader(WithSeed(1)).Degrade(context.Background(), clean, ProfileFor("light"), outDir)
	if err != nil {
		t.Fatalf("Degrade() error = %v", err)
	}
	if got != filepath.Join(outDir, "abc.png") {
		t.Errorf("Degrade() path = %s", got)
	}

	before, _ := os.ReadFile(clean)
	after, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("read degraded: %v", err)
	}
	if bytes.Equal(before, after) {
		t.Error("degraded image is byte-identical to the clean image")
	}
}

func TestDegrade_NothingFiresStillChangesImage(t *testing.T) {
	dir := t.TempDir()
	clean := writeClean(t, dir, "quiet.png")

	p := ProfileFor("light")
	for _, phase := range [][]Effect{p.Ink, p.Paper, p.Post} {
		for i := range phase {
			phase[i].Probability = 0
		}
	}

	got, err := NewDegrader(WithSeed(3)).Degrade(context.Background(), clean, p, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("Degrade() error = %v", err)
	}
	a, _ := imaging.Open(clean)
	b, _ := imaging.Open(got)
	if samePixels(a, b) {
		t.Error("no effect fired and the image was left untouched")
	}
}

func TestDegrade_SeededIsReproducible(t *testing.T) {
	dir := t.TempDir()
	clean := writeClean(t, dir, "seed.png")

	run := func(sub string) []byte {
		out, err := NewDegrader(WithSeed(42)).Degrade(context.Background(), clean, ProfileFor("heavy"), filepath.Join(dir, sub))
		if err != nil {
			t.Fatalf("Degrade() error = %v", err)
		}
		data, _ := os.ReadFile(out)
		return data
	}
	if !bytes.Equal(run("a"), run("b")) {
		t.Error("same seed produced different degraded images")
	}
}

func TestDegrade_Errors(t *testing.T) {
	dir := t.TempDir()
	d := NewDegrader(WithSeed(1))

	if _, err := d.Degrade(context.Background(), filepath.Join(dir, "missing.png"), ProfileFor("light"), dir); err == nil {
		t.Error("expected error for missing source")
	}

	junk := filepath.Join(dir, "junk.png")
	if err := os.WriteFile(junk, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Degrade(context.Background(), junk, ProfileFor("light"), dir); err == nil {
		t.Error("expected error for unreadable source")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	clean := writeClean(t, dir, "ok.png")
	if _, err := d.Degrade(ctx, clean, ProfileFor("light"), dir); !errors.Is(err, context.Canceled) {
		t.Errorf("Degrade(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestEffects_PreserveSize(t *testing.T) {
	src := imaging.New(64, 48, color.White)
	d := NewDegrader(WithSeed(9))
	for _, e := range ProfileFor("heavy").Effects() {
		t.Run(e.Name, func(t *testing.T) {
			out, err := d.apply(e, src, false)
			if err != nil {
				t.Fatalf("apply(%s) error = %v", e.Name, err)
			}
			if out.Bounds().Dx() != 64 || out.Bounds().Dy() != 48 {
				t.Errorf("apply(%s) size = %v", e.Name, out.Bounds())
			}
		})
	}
	if _, err := d.apply(Effect{Name: "Smudge"}, src, false); err == nil {
		t.Error("expected error for unknown effect")
	}
}

func samePixels(a, b image.Image) bool {
	if a.Bounds() != b.Bounds() {
		return false
	}
	r := a.Bounds()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if a.At(x, y) != b.At(x, y) {
				return false
			}
		}
	}
	return true
}
