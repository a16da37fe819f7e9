package engine

import (
	"sort"

	"github.com/your-org/stringart/internal/candidates"
	"github.com/your-org/stringart/internal/compositor"
	"github.com/your-org/stringart/internal/edges"
	"github.com/your-org/stringart/internal/faces"
	"github.com/your-org/stringart/internal/models"
	"github.com/your-org/stringart/internal/observability"
	"github.com/your-org/stringart/internal/pyramid"
	"github.com/your-org/stringart/internal/raster"
	"github.com/your-org/stringart/internal/scoring"
)

// maxRefinementFraction and maxRefinementCount bound spec.md §4.11's local
// refinement pass: the worst-scoring 10% of placed connections, capped at
// 300, are reverted and re-placed against the current canvas. Skipped
// entirely in LAB-color mode (§4.11: "skip this pass; reverting a
// subtractive composite on a shared RGB canvas can't be done exactly").
const (
	maxRefinementFraction = 0.10
	maxRefinementCount    = 300
)

// runLocalRefinement implements spec component C11. It scores every
// placed connection in its final position, reverts the worst decile
// (capped), and re-runs candidate generation + scoring from each
// reverted connection's from-pin to pick a (possibly different)
// replacement.
func runLocalRefinement(r *run) {
	if len(r.connections) == 0 {
		return
	}

	type scored struct {
		index int
		score float64
	}

	thicknessPx := raster.ThreadWidthPx(r.params.ThreadWidth)
	opacity := r.params.ThreadOpacity

	entries := make([]scored, len(r.connections))
	for i, c := range r.connections {
		from := r.pinsList[c.FromPin]
		to := r.pinsList[c.ToPin]
		pixels := raster.Line(r.st.LineCache, from, to, thicknessPx, r.width, r.height)
		entries[i] = scored{index: i, score: connectionScore(r, from, to, pixels, opacity)}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].score < entries[j].score })

	n := int(float64(len(entries)) * maxRefinementFraction)
	if n > maxRefinementCount {
		n = maxRefinementCount
	}
	if n == 0 {
		return
	}

	targetPyramid := pyramid.BuildTargetPair(r.targetGray, r.width, r.height)
	for i := 0; i < n; i++ {
		select {
		case <-r.ctx.Done():
			return
		default:
		}
		refineOne(r, entries[i].index, thicknessPx, opacity, targetPyramid)
	}
}

// connectionScore evaluates one already-placed connection's current
// contribution using the same perceptual scorer candidates are judged by,
// so refinement and placement agree on what "good" means.
func connectionScore(r *run, from, to models.Pin, pixels []int, opacity float64) float64 {
	var em *edges.Map = r.edgeMap
	alignment := 0.0
	if em != nil {
		alignment = lineEdgeAlignment(pixels, em)
	}
	overlap := faces.LineFaceOverlap(r.masks, pixels)
	meanFaceDensity := meanDensityOver(r.st.Density, pixels, r.masks)
	return scoring.PerceptualLineScore(scoring.PerceptualInput{
		Pixels: pixels, Target: r.targetGray, Current: r.st.ProgressGray,
		Density: r.st.Density, Overdraw: r.st.Overdraw, EdgeMap: em, Alpha: opacity,
		EdgeAlignment: alignment, Width: r.width, Height: r.height, Masks: r.masks,
		UsePinFatigue: r.params.UsePinFatigue,
		FromUsage:     r.st.PinUsage[from.Index], ToUsage: r.st.PinUsage[to.Index],
		FaceOverlap: overlap, MeanFaceDensity: meanFaceDensity,
	})
}

// refinePick is the winner of refineOne's two-direction candidate search:
// either a replacement to-pin (from held fixed) or a replacement from-pin
// (to held fixed).
type refinePick struct {
	pin       uint32
	mutatesTo bool
}

// refineOne reverts connections[idx]'s composite, then re-generates and
// re-scores candidates in both directions spec.md §4.11 requires —
// (from=fixed, to=any) and (from=any, to=fixed) — against the
// now-reverted canvas, replacing it with whichever candidate from either
// direction (possibly the original connection) scores best.
func refineOne(r *run, idx int, thicknessPx int, opacity float64, targetPyramid pyramid.Pair) {
	conn := r.connections[idx]
	from := r.pinsList[conn.FromPin]
	oldTo := r.pinsList[conn.ToPin]
	oldPixels := raster.Line(r.st.LineCache, from, oldTo, thicknessPx, r.width, r.height)
	for _, px := range oldPixels {
		compositor.ReverseGray(r.st.ProgressGray, r.st.Overdraw, px, opacity)
	}

	kEdge, kRand := candidateK(r.params.QualityPreset)
	params := candidates.Params{KEdge: kEdge, KRand: kRand, Policy: r.policy}
	toCandIdx := candidates.Generate(r.pinsList, from, r.edgeMap, r.masks, params, r.rng)
	fromCandIdx := candidates.Generate(r.pinsList, oldTo, r.edgeMap, r.masks, params, r.rng)
	if len(toCandIdx) == 0 && len(fromCandIdx) == 0 {
		// Nothing valid to replace with: restore the original connection.
		for _, px := range oldPixels {
			compositor.ForwardGray(r.st.ProgressGray, r.st.Density, r.st.Overdraw, px, opacity)
		}
		return
	}

	progressPyramid := pyramid.RefreshProgress(r.st.ProgressGray, r.width, r.height)

	scoreLine := func(a, b models.Pin, pixels []int) float64 {
		alignment := 0.0
		if r.edgeMap != nil {
			alignment = lineEdgeAlignment(pixels, r.edgeMap)
		}
		overlap := faces.LineFaceOverlap(r.masks, pixels)
		meanFaceDensity := meanDensityOver(r.st.Density, pixels, r.masks)
		perceptual := scoring.PerceptualLineScore(scoring.PerceptualInput{
			Pixels: pixels, Target: r.targetGray, Current: r.st.ProgressGray,
			Density: r.st.Density, Overdraw: r.st.Overdraw, EdgeMap: r.edgeMap, Alpha: opacity,
			EdgeAlignment: alignment, Width: r.width, Height: r.height, Masks: r.masks,
			UsePinFatigue: r.params.UsePinFatigue,
			FromUsage:     r.st.PinUsage[a.Index], ToUsage: r.st.PinUsage[b.Index],
			FaceOverlap: overlap, MeanFaceDensity: meanFaceDensity,
		})
		return scoring.MultiResScore(targetPyramid, progressPyramid, int(a.X), int(a.Y), int(b.X), int(b.Y), r.width, r.height, opacity, perceptual)
	}

	var bestScore float64
	var bestPixels []int
	var bestPick refinePick
	first := true

	for _, ci := range toCandIdx {
		to := r.pinsList[ci]
		pixels := raster.Line(r.st.LineCache, from, to, thicknessPx, r.width, r.height)
		total := scoreLine(from, to, pixels)
		if first || total > bestScore {
			bestScore, bestPixels = total, pixels
			bestPick = refinePick{pin: to.Index, mutatesTo: true}
			first = false
		}
	}
	for _, ci := range fromCandIdx {
		newFrom := r.pinsList[ci]
		pixels := raster.Line(r.st.LineCache, newFrom, oldTo, thicknessPx, r.width, r.height)
		total := scoreLine(newFrom, oldTo, pixels)
		if first || total > bestScore {
			bestScore, bestPixels = total, pixels
			bestPick = refinePick{pin: newFrom.Index, mutatesTo: false}
			first = false
		}
	}

	for _, px := range bestPixels {
		compositor.ForwardGray(r.st.ProgressGray, r.st.Density, r.st.Overdraw, px, opacity)
	}

	switch {
	case bestPick.mutatesTo && bestPick.pin != conn.ToPin:
		r.st.PinUsage[conn.ToPin]--
		r.st.PinUsage[bestPick.pin]++
		r.connections[idx].ToPin = bestPick.pin
		if idx+1 < len(r.connections) {
			r.connections[idx+1].FromPin = bestPick.pin
		}
		observability.RefinementsApplied.Inc()
	case !bestPick.mutatesTo && bestPick.pin != conn.FromPin:
		r.st.PinUsage[conn.FromPin]--
		r.st.PinUsage[bestPick.pin]++
		r.connections[idx].FromPin = bestPick.pin
		if idx > 0 {
			r.connections[idx-1].ToPin = bestPick.pin
		}
		observability.RefinementsApplied.Inc()
	}
}
