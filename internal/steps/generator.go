// Package steps generates the submission value for the current time of day.
//
// A small ordered table of anchor hours maps parts of the day to step
// ranges. The anchor nearest to the current hour is selected (ties go to
// the anchor defined first) and a uniform random value is drawn from its
// inclusive range. The default table ramps up over the day; FixedBand
// builds a single narrow band instead for a near-constant target.
package steps

import (
	"math/rand"
	"time"
)

// FallbackValue is submitted when the generator has no anchors to pick
// from. Kept odd on purpose so it does not look machine-generated.
const FallbackValue = 29889

// Anchor pairs an hour of day with an inclusive step range.
type Anchor struct {
	Hour int
	Min  int
	Max  int
}

// RampAnchors is the default table: ranges grow through the day, flattening
// after 22:00.
func RampAnchors() []Anchor {
	return []Anchor{
		{Hour: 8, Min: 6000, Max: 10000},
		{Hour: 12, Min: 8000, Max: 14000},
		{Hour: 16, Min: 10000, Max: 18000},
		{Hour: 20, Min: 12000, Max: 22000},
		{Hour: 22, Min: 15000, Max: 24000},
	}
}

// FixedBand returns a one-anchor table so every hour maps to [min,max].
func FixedBand(min, max int) []Anchor {
	if max < min {
		min, max = max, min
	}
	return []Anchor{{Hour: 12, Min: min, Max: max}}
}

// Generator draws submission values from an anchor table. The random
// source is injectable so tests can seed it and assert range membership.
type Generator struct {
	anchors []Anchor
	rng     *rand.Rand
}

// NewGenerator builds a generator over the given table. A nil rng gets a
// time-seeded source.
func NewGenerator(anchors []Anchor, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{anchors: anchors, rng: rng}
}

// Generate returns a step count for the given hour of day. The result is
// always within the nearest anchor's inclusive range; with no anchors
// configured it falls back to FallbackValue.
func (g *Generator) Generate(hour int) int {
	a, ok := g.nearest(hour)
	if !ok {
		return FallbackValue
	}
	if a.Max <= a.Min {
		return a.Min
	}
	return a.Min + g.rng.Intn(a.Max-a.Min+1)
}

func (g *Generator) nearest(hour int) (Anchor, bool) {
	if len(g.anchors) == 0 {
		return Anchor{}, false
	}
	best := g.anchors[0]
	bestDiff := absInt(hour - best.Hour)
	for _, a := range g.anchors[1:] {
		if d := absInt(hour - a.Hour); d < bestDiff {
			best, bestDiff = a, d
		}
	}
	return best, true
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
