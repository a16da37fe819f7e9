// Package candidates implements the candidate generator (spec component
// C8): for the current pin, produce an ordered list of up to ~50
// candidate end pins — edge-aligned top-K plus Fisher-Yates random-K —
// respecting the region-dependent effective_min_skip.
package candidates

import (
	"math"
	"math/rand"
	"sort"

	"github.com/your-org/stringart/internal/edges"
	"github.com/your-org/stringart/internal/faces"
	"github.com/your-org/stringart/internal/models"
)

// alignedPin pairs a candidate pin index with its edge-alignment score.
type alignedPin struct {
	idx   uint32
	score float64
}

// KEdge and KRand are the spec.md §4.8 ranges; callers pick a concrete
// value from each set (quality-preset dependent, e.g. higher presets use
// the larger K).
const (
	KEdgeLow   = 25
	KEdgeHigh  = 35
	KRandLow   = 10
	KRandHigh  = 15
	sampleCount = 5 // evenly-spaced points sampled along a candidate line
)

// Params bundles what Generate needs beyond the pin/state buffers.
type Params struct {
	KEdge  int
	KRand  int
	Policy faces.Policy
}

// Generate returns up to KEdge+KRand distinct candidate pin indices for a
// thread starting at `from`, excluding pins that violate
// effective_min_skip. rng drives both the Fisher-Yates sample and the
// degenerate-input fallback (spec.md §9: fall back to uniform random,
// required by property P3). Returns nil only when no pin in the entire
// layout satisfies effective_min_skip against `from` — a truly degenerate
// configuration the stage driver must treat as "stage exhausted."
func Generate(pinsList []models.Pin, from models.Pin, em *edges.Map, masks *faces.Masks, p Params, rng *rand.Rand) []uint32 {
	pinCount := uint32(len(pinsList))
	if pinCount < 2 {
		return nil
	}

	var valid []uint32
	var alignScores []alignedPin

	for _, to := range pinsList {
		if to.Index == from.Index {
			continue
		}
		if !validSkip(from, to, pinCount, masks, p.Policy) {
			continue
		}
		valid = append(valid, to.Index)
		alignScores = append(alignScores, alignedPin{idx: to.Index, score: edgeAlignmentScore(from, to, em)})
	}

	if len(valid) == 0 {
		return nil
	}

	kEdge := p.KEdge
	if kEdge > len(alignScores) {
		kEdge = len(alignScores)
	}
	sort.Slice(alignScores, func(i, j int) bool { return alignScores[i].score > alignScores[j].score })

	selected := make(map[uint32]struct{}, kEdge+p.KRand)
	out := make([]uint32, 0, kEdge+p.KRand)
	for i := 0; i < kEdge; i++ {
		idx := alignScores[i].idx
		if _, dup := selected[idx]; dup {
			continue
		}
		selected[idx] = struct{}{}
		out = append(out, idx)
	}

	remaining := make([]uint32, 0, len(valid))
	for _, idx := range valid {
		if _, dup := selected[idx]; !dup {
			remaining = append(remaining, idx)
		}
	}
	fisherYatesShuffle(remaining, rng)

	kRand := p.KRand
	if kRand > len(remaining) {
		kRand = len(remaining)
	}
	for i := 0; i < kRand; i++ {
		idx := remaining[i]
		if _, dup := selected[idx]; dup {
			continue
		}
		selected[idx] = struct{}{}
		out = append(out, idx)
	}

	if len(out) == 0 {
		// Degenerate but non-empty valid pool (e.g. kEdge/kRand both 0):
		// fall back to one uniform-random valid pin, per spec.md §9.
		out = append(out, valid[rng.Intn(len(valid))])
	}
	return out
}

// validSkip reports whether the pin pair satisfies
// faces.EffectiveMinSkip's circular-distance floor.
func validSkip(a, b models.Pin, pinCount uint32, masks *faces.Masks, policy faces.Policy) bool {
	dist := models.CircularDistance(a.Index, b.Index, pinCount)
	skip := regionSkip(a, b, masks, policy)
	return dist >= uint32(skip)
}

func regionSkip(a, b models.Pin, masks *faces.Masks, policy faces.Policy) int {
	if masks == nil {
		return policy.BackgroundMinSkip
	}
	return faces.EffectiveMinSkip(masks, int(a.X), int(a.Y), int(b.X), int(b.Y), policy)
}

// edgeAlignmentScore samples sampleCount evenly-spaced points along the
// line from a to b, projects each point's edge tangent onto the line
// direction, and weights by local edge magnitude (spec.md §4.8 step 1).
func edgeAlignmentScore(a, b models.Pin, em *edges.Map) float64 {
	if em == nil {
		return 0
	}
	dx := float64(b.X) - float64(a.X)
	dy := float64(b.Y) - float64(a.Y)
	length := math.Hypot(dx, dy)
	if length < 1e-9 {
		return 0
	}
	dirX, dirY := dx/length, dy/length

	var total float64
	for i := 0; i < sampleCount; i++ {
		t := float64(i) / float64(sampleCount-1)
		x := int(math.Round(float64(a.X) + dx*t))
		y := int(math.Round(float64(a.Y) + dy*t))
		if x < 0 || y < 0 || x >= em.Width || y >= em.Height {
			continue
		}
		idx := y*em.Width + x
		projection := math.Abs(float64(em.TangentX[idx])*dirX + float64(em.TangentY[idx])*dirY)
		magnitude := float64(em.Magnitude[idx]) / 255
		total += projection * magnitude
	}
	return total
}

// fisherYatesShuffle performs a true uniform in-place Fisher-Yates
// shuffle (spec.md §4.8 step 2).
func fisherYatesShuffle(s []uint32, rng *rand.Rand) {
	for i := len(s) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
