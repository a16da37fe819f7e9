package engine

import (
	"math"

	"github.com/your-org/stringart/internal/candidates"
	"github.com/your-org/stringart/internal/compositor"
	"github.com/your-org/stringart/internal/faces"
	"github.com/your-org/stringart/internal/models"
	"github.com/your-org/stringart/internal/observability"
	"github.com/your-org/stringart/internal/pyramid"
	"github.com/your-org/stringart/internal/raster"
	"github.com/your-org/stringart/internal/scoring"
)

// annealIterationCap and annealInitialTemp are spec.md §4.12's simulated
// annealing schedule: min(0.2N, 1000) iterations, starting temperature
// 150, cooling by 0.97 per iteration.
const (
	annealIterationCap = 1000
	annealInitialTemp  = 150.0
	annealCoolingRate  = 0.97
)

// backtrackWindow and backtrackImprovement are spec.md §4.12's
// backtracking parameters: inspect the last 100 connections, keep a
// removal only if it improves global SSIM by at least 0.001.
const (
	backtrackWindow      = 100
	backtrackImprovement = 0.001
)

// runAnnealing implements spec component C12's simulated-annealing pass
// (monochrome only, gated on use_simulated_annealing): repeatedly try
// swapping one connection's to-pin for a freshly generated candidate,
// accepting worsening moves with probability min(1, exp(delta/T)) so the
// search can escape local optima, cooling T each iteration.
func runAnnealing(r *run) {
	if len(r.connections) == 0 {
		return
	}
	n := int(math.Min(0.2*float64(r.params.MaxThreads), annealIterationCap))
	if n < 1 {
		return
	}

	thicknessPx := raster.ThreadWidthPx(r.params.ThreadWidth)
	opacity := r.params.ThreadOpacity
	targetPyramid := pyramid.BuildTargetPair(r.targetGray, r.width, r.height)
	temp := annealInitialTemp

	for i := 0; i < n; i++ {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		idx := r.rng.Intn(len(r.connections))
		tryAnnealSwap(r, idx, thicknessPx, opacity, targetPyramid, temp)
		temp *= annealCoolingRate
	}
}

// tryAnnealSwap proposes a replacement to-pin for connections[idx],
// scores the delta between the old and new placement, and accepts the
// swap outright if it improves, or probabilistically if it doesn't
// (spec.md §4.12: accept probability min(1, exp(delta/T))).
func tryAnnealSwap(r *run, idx int, thicknessPx int, opacity float64, targetPyramid pyramid.Pair, temp float64) bool {
	conn := r.connections[idx]
	from := r.pinsList[conn.FromPin]
	oldTo := r.pinsList[conn.ToPin]
	oldPixels := raster.Line(r.st.LineCache, from, oldTo, thicknessPx, r.width, r.height)

	kEdge, kRand := candidateK(r.params.QualityPreset)
	candIdx := candidates.Generate(r.pinsList, from, r.edgeMap, r.masks, candidates.Params{KEdge: kEdge, KRand: kRand, Policy: r.policy}, r.rng)
	if len(candIdx) == 0 {
		return false
	}
	proposedIdx := candIdx[r.rng.Intn(len(candIdx))]
	newTo := r.pinsList[proposedIdx]
	if newTo.Index == oldTo.Index {
		return false
	}
	newPixels := raster.Line(r.st.LineCache, from, newTo, thicknessPx, r.width, r.height)

	oldScore := lineScoreAgainstProgress(r, from, oldTo, oldPixels, opacity, targetPyramid)

	for _, px := range oldPixels {
		compositor.ReverseGray(r.st.ProgressGray, r.st.Overdraw, px, opacity)
	}
	progressPyramid := pyramid.RefreshProgress(r.st.ProgressGray, r.width, r.height)
	newScore := lineScoreAgainstProgressPyramid(r, from, newTo, newPixels, opacity, targetPyramid, progressPyramid)

	delta := newScore - oldScore
	accept := delta >= 0
	if !accept && temp > 1e-6 {
		accept = r.rng.Float64() < math.Min(1, math.Exp(delta/temp))
	}

	if !accept {
		for _, px := range oldPixels {
			compositor.ForwardGray(r.st.ProgressGray, r.st.Density, r.st.Overdraw, px, opacity)
		}
		observability.AnnealRejected.Inc()
		return false
	}

	for _, px := range newPixels {
		compositor.ForwardGray(r.st.ProgressGray, r.st.Density, r.st.Overdraw, px, opacity)
	}
	r.st.PinUsage[oldTo.Index]--
	r.st.PinUsage[newTo.Index]++
	r.connections[idx].ToPin = newTo.Index
	if idx+1 < len(r.connections) {
		r.connections[idx+1].FromPin = newTo.Index
	}
	observability.AnnealAccepted.Inc()
	return true
}

func lineScoreAgainstProgress(r *run, from, to models.Pin, pixels []int, opacity float64, targetPyramid pyramid.Pair) float64 {
	progressPyramid := pyramid.RefreshProgress(r.st.ProgressGray, r.width, r.height)
	return lineScoreAgainstProgressPyramid(r, from, to, pixels, opacity, targetPyramid, progressPyramid)
}

func lineScoreAgainstProgressPyramid(r *run, from, to models.Pin, pixels []int, opacity float64, targetPyramid, progressPyramid pyramid.Pair) float64 {
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
		FromUsage:     r.st.PinUsage[from.Index], ToUsage: r.st.PinUsage[to.Index],
		FaceOverlap: overlap, MeanFaceDensity: meanFaceDensity,
	})
	return scoring.MultiResScore(targetPyramid, progressPyramid, int(from.X), int(from.Y), int(to.X), int(to.Y), r.width, r.height, opacity, perceptual)
}

// runBacktracking implements spec component C12's backtracking step,
// gated on the same use_simulated_annealing flag as annealing (Open
// Question decision, recorded in DESIGN.md: the spec groups the two
// under one "optional refinement" toggle with no separate flag for
// backtracking alone). It inspects the last backtrackWindow connections
// and removes any whose removal improves global SSIM by at least
// backtrackImprovement, restoring it otherwise.
func runBacktracking(r *run) {
	start := len(r.connections) - backtrackWindow
	if start < 0 {
		start = 0
	}
	thicknessPx := raster.ThreadWidthPx(r.params.ThreadWidth)
	opacity := r.params.ThreadOpacity

	baseSSIM := globalSSIM(r)
	kept := make([]bool, len(r.connections))
	for i := range kept {
		kept[i] = true
	}

	for i := len(r.connections) - 1; i >= start; i-- {
		select {
		case <-r.ctx.Done():
			return
		default:
		}
		if !kept[i] {
			continue
		}
		conn := r.connections[i]
		from := r.pinsList[conn.FromPin]
		to := r.pinsList[conn.ToPin]
		pixels := raster.Line(r.st.LineCache, from, to, thicknessPx, r.width, r.height)

		for _, px := range pixels {
			compositor.ReverseGray(r.st.ProgressGray, r.st.Overdraw, px, opacity)
		}
		newSSIM := globalSSIM(r)

		if newSSIM >= baseSSIM+backtrackImprovement {
			kept[i] = false
			r.st.PinUsage[from.Index]--
			r.st.PinUsage[to.Index]--
			baseSSIM = newSSIM
		} else {
			for _, px := range pixels {
				compositor.ForwardGray(r.st.ProgressGray, r.st.Density, r.st.Overdraw, px, opacity)
			}
		}
	}

	if allKept(kept) {
		return
	}
	filtered := r.connections[:0:0]
	for i, c := range r.connections {
		if kept[i] {
			filtered = append(filtered, c)
		}
	}
	// Removing a connection can leave filtered[k]'s from-pin pointing at a
	// pin the preceding surviving connection no longer ends on. Re-stitch
	// the chain so c_k.to_pin == c_{k+1}.from_pin holds end to end.
	for k := 1; k < len(filtered); k++ {
		if filtered[k].FromPin != filtered[k-1].ToPin {
			r.st.PinUsage[filtered[k].FromPin]--
			r.st.PinUsage[filtered[k-1].ToPin]++
			filtered[k].FromPin = filtered[k-1].ToPin
		}
	}
	r.connections = filtered
}

func allKept(kept []bool) bool {
	for _, k := range kept {
		if !k {
			return false
		}
	}
	return true
}

// globalSSIM computes the current progress canvas's SSIM against the
// target over the full-resolution buffers directly (no pyramid), since
// backtracking's keep/revert decision is spec'd against "global SSIM",
// not the cheap multi-resolution estimate used during placement.
func globalSSIM(r *run) float64 {
	targetF := make([]float64, len(r.targetGray))
	progressF := make([]float64, len(r.st.ProgressGray))
	for i, v := range r.targetGray {
		targetF[i] = float64(v)
	}
	for i, v := range r.st.ProgressGray {
		progressF[i] = float64(v)
	}
	return scoring.GlobalSSIM(targetF, progressF)
}
