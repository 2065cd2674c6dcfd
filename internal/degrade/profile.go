// Package degrade maps a severity tier to a concrete set of image effects
// and applies them to clean scans.
package degrade

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dvloznov/artifact-engine/internal/errs"
)

// Tier names a degradation severity.
type Tier string

const (
	Light  Tier = "light"
	Medium Tier = "medium"
	Heavy  Tier = "heavy"
)

// Tiers lists every tier from mildest to harshest.
var Tiers = []Tier{Light, Medium, Heavy}

// Effect names.
const (
	InkBleed            = "InkBleed"
	LowInkPeriodicLines = "LowInkPeriodicLines"
	NoiseTexturize      = "NoiseTexturize"
	DirtyRollers        = "DirtyRollers"
	Geometric           = "Geometric"
	Jpeg                = "Jpeg"
)

// Range is an inclusive parameter range.
type Range struct {
	Min float64
	Max float64
}

// Effect is one probabilistic image operation.
type Effect struct {
	Name        string
	Probability float64
	Params      map[string]Range
}

// Profile is the effect set for one tier, grouped in application order.
type Profile struct {
	Tier  Tier
	Ink   []Effect
	Paper []Effect
	Post  []Effect
}

// Phases returns the effects in the order they are applied.
func (p Profile) Phases() [][]Effect {
	return [][]Effect{p.Ink, p.Paper, p.Post}
}

// Effects returns every effect of the profile in application order.
func (p Profile) Effects() []Effect {
	var out []Effect
	for _, ph := range p.Phases() {
		out = append(out, ph...)
	}
	return out
}

// ParseTier accepts a tier name case-insensitively and rejects anything else.
// Use it to validate user input; ProfileFor is the lenient lookup.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tiers {
		if t == known {
			return t, nil
		}
	}
	return "", errs.Configf("tier", "unknown degradation tier %q (want light, medium or heavy)", s)
}

// ProfileFor returns the effect profile for a tier name. Unknown names fall
// back to medium.
func ProfileFor(name string) Profile {
	t, err := ParseTier(name)
	if err != nil {
		t = Medium
	}
	switch t {
	case Light:
		return Profile{
			Tier: Light,
			Ink: []Effect{
				{Name: InkBleed, Probability: 0.3, Params: map[string]Range{
					"intensity": {0.1, 0.2}, "kernel": {3, 3}, "severity": {0.2, 0.4},
				}},
			},
			Paper: []Effect{
				{Name: NoiseTexturize, Probability: 0.5, Params: map[string]Range{
					"sigma": {3, 7}, "turbulence": {2, 4},
				}},
			},
			Post: []Effect{
				{Name: Geometric, Probability: 0.6, Params: map[string]Range{"rotate": {-2, 2}}},
			},
		}
	case Heavy:
		return Profile{
			Tier: Heavy,
			Ink: []Effect{
				{Name: InkBleed, Probability: 0.7, Params: map[string]Range{
					"intensity": {0.3, 0.5}, "kernel": {5, 5}, "severity": {0.5, 0.8},
				}},
				{Name: LowInkPeriodicLines, Probability: 0.4, Params: map[string]Range{"count": {3, 6}}},
			},
			Paper: []Effect{
				{Name: NoiseTexturize, Probability: 0.8, Params: map[string]Range{
					"sigma": {7, 15}, "turbulence": {4, 8},
				}},
				{Name: DirtyRollers, Probability: 0.6, Params: map[string]Range{"line_width": {2, 6}}},
			},
			Post: []Effect{
				{Name: Geometric, Probability: 0.9, Params: map[string]Range{"rotate": {-5, 5}}},
				{Name: Jpeg, Probability: 0.7, Params: map[string]Range{"quality": {40, 70}}},
			},
		}
	default:
		return Profile{
			Tier: Medium,
			Ink: []Effect{
				{Name: InkBleed, Probability: 0.5, Params: map[string]Range{
					"intensity": {0.15, 0.3}, "kernel": {3, 5}, "severity": {0.3, 0.6},
				}},
			},
			Paper: []Effect{
				{Name: NoiseTexturize, Probability: 0.6, Params: map[string]Range{
					"sigma": {5, 10}, "turbulence": {3, 6},
				}},
				{Name: DirtyRollers, Probability: 0.4, Params: map[string]Range{"line_width": {1, 4}}},
			},
			Post: []Effect{
				{Name: Geometric, Probability: 0.7, Params: map[string]Range{"rotate": {-3, 3}}},
				{Name: Jpeg, Probability: 0.5, Params: map[string]Range{"quality": {60, 85}}},
			},
		}
	}
}

// Describe renders a one-line summary per effect in application order.
func Describe(p Profile) []string {
	var out []string
	for _, e := range p.Effects() {
		out = append(out, describeEffect(e))
	}
	return out
}

func describeEffect(e Effect) string {
	parts := make([]string, 0, len(e.Params))
	for _, k := range slices.Sorted(maps.Keys(e.Params)) {
		r := e.Params[k]
		if r.Min == r.Max {
			parts = append(parts, fmt.Sprintf("%s=%g", k, r.Min))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%g..%g", k, r.Min, r.Max))
	}
	return fmt.Sprintf("%s p=%.1f %s", e.Name, e.Probability, strings.Join(parts, " "))
}
