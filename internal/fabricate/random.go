package fabricate

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/dvloznov/artifact-engine/internal/vocab"
	"github.com/shopspring/decimal"
)

const postcodeLetters = "ABDEFGHJLNPQRSTUWXYZ"

// pick returns a uniformly chosen element. Profiles are validated to hold no
// empty lists, so xs is never empty here.
func pick[T any](r *rand.Rand, xs []T) T {
	return xs[r.IntN(len(xs))]
}

// between draws an integer from the inclusive range.
func between(r *rand.Rand, ir vocab.IntRange) int {
	return ir.Min + r.IntN(ir.Max-ir.Min+1)
}

// uniform draws a decimal from the inclusive range in steps of 10^-places.
func uniform(r *rand.Rand, dr vocab.DecRange, places int32) decimal.Decimal {
	lo := dr.Min.Shift(places).Ceil().IntPart()
	hi := dr.Max.Shift(places).Floor().IntPart()
	if hi <= lo {
		return decimal.New(lo, -places)
	}
	return decimal.New(lo+r.Int64N(hi-lo+1), -places)
}

// precision is the number of decimal places needed to express both bounds,
// never fewer than two.
func precision(dr vocab.DecRange) int32 {
	p := int32(2)
	for _, d := range []decimal.Decimal{dr.Min.Decimal, dr.Max.Decimal} {
		if e := -d.Exponent(); e > p {
			p = e
		}
	}
	return p
}

// chance returns true with probability p.
func chance(r *rand.Rand, p vocab.Dec) bool {
	return r.Float64() < p.InexactFloat64()
}

// weighted returns an index drawn in proportion to weights.
func weighted(r *rand.Rand, weights []int) int {
	total := 0
	for _, w := range weights {
		total += w
	}
	n := r.IntN(total)
	for i, w := range weights {
		if n < w {
			return i
		}
		n -= w
	}
	return len(weights) - 1
}

// bothify replaces '#' with a random digit and '?' with a random upper-case
// letter.
func bothify(r *rand.Rand, pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))
	for _, c := range pattern {
		switch c {
		case '#':
			b.WriteByte(byte('0' + r.IntN(10)))
		case '?':
			b.WriteByte(byte('A' + r.IntN(26)))
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func (e *Engine) personName() string {
	p := e.profile.People
	return pick(e.rng, p.FirstNames) + " " + pick(e.rng, p.LastNames)
}

func (e *Engine) companyName() string {
	c := e.profile.Companies
	if e.rng.IntN(3) == 0 {
		last := e.profile.People.LastNames
		return fmt.Sprintf("%s & %s %s", pick(e.rng, last), pick(e.rng, last), pick(e.rng, c.Suffixes))
	}
	return pick(e.rng, c.Words) + " " + pick(e.rng, c.Suffixes)
}

func (e *Engine) postcode() string {
	area := pick(e.rng, e.profile.Addresses.PostcodeAreas)
	district := 1 + e.rng.IntN(20)
	return fmt.Sprintf("%s%d %d%c%c", area, district, e.rng.IntN(10),
		postcodeLetters[e.rng.IntN(len(postcodeLetters))],
		postcodeLetters[e.rng.IntN(len(postcodeLetters))])
}

func (e *Engine) address() string {
	a := e.profile.Addresses
	return fmt.Sprintf("%d %s, %s, %s", 1+e.rng.IntN(250), pick(e.rng, a.Streets), pick(e.rng, a.Towns), e.postcode())
}

func (e *Engine) phone() string {
	if e.profile.Addresses.PhonePattern == "" {
		return ""
	}
	return bothify(e.rng, e.profile.Addresses.PhonePattern)
}
