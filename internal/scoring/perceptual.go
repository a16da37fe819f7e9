// perceptual.go implements the monochrome perceptual line score (spec
// component C9, §4.9.a): MSE and SSIM improvement, edge bonus, smoothness
// and overdraw penalties, plus the length/fatigue/face modifiers.
package scoring

import (
	"math"

	"github.com/your-org/stringart/internal/compositor"
	"github.com/your-org/stringart/internal/edges"
	"github.com/your-org/stringart/internal/faces"
)

// PerceptualInput bundles everything PerceptualLineScore needs to
// evaluate one candidate line without mutating shared state.
type PerceptualInput struct {
	Pixels        []int
	Target        []uint8
	Current       []uint8
	Density       []float32 // per-pixel accumulated ink density, indexed like Pixels
	Overdraw      []uint16
	EdgeMap       *edges.Map
	Alpha         float64
	EdgeAlignment float64 // C3's edge_alignment(a,b) scalar
	Width, Height int
	Masks         *faces.Masks // region classification for the overdraw threshold; nil treated as background

	UsePinFatigue   bool
	FromUsage       uint32
	ToUsage         uint32
	FaceOverlap     float64 // line_face_overlap, 0 if face masking is off
	MeanFaceDensity float64 // mean density over face-mask pixels on this line
}

// PerceptualLineScore implements spec.md §4.9.a end to end.
func PerceptualLineScore(in PerceptualInput) float64 {
	n := len(in.Pixels)
	if n == 0 {
		return 0
	}

	targetF := make([]float64, n)
	currentF := make([]float64, n)
	newF := make([]float64, n)
	newVals := make([]uint8, n)

	var mseImprovement, edgeSum, overdrawSum float64
	for i, idx := range in.Pixels {
		t := float64(in.Target[idx])
		c := float64(in.Current[idx])
		newVal := compositor.SimulateForwardGray(in.Current[idx], in.Alpha)
		newVals[i] = newVal
		nf := float64(newVal)

		targetF[i] = t
		currentF[i] = c
		newF[i] = nf

		mseImprovement += (t-c)*(t-c) - (t-nf)*(t-nf)

		if in.EdgeMap != nil {
			edgeSum += float64(in.EdgeMap.Magnitude[idx]) / 255
		}

		region := faces.RegionBackground
		if in.Masks != nil && in.Width > 0 {
			region = in.Masks.RegionAt(idx%in.Width, idx/in.Width)
		}
		threshold := faces.OverdrawThreshold(region)
		density := 0.0
		if idx < len(in.Density) {
			density = float64(in.Density[idx])
		}
		overdrawPenalty := math.Max(0, density-threshold) * 2
		overdrawPenalty += float64(in.Overdraw[idx]) * 0.1
		overdrawSum += overdrawPenalty
	}

	ssim := ssimImprovement(targetF, currentF, newF)
	edgeBonus := edgeSum + in.EdgeAlignment*5

	var smoothness float64
	for i := 1; i < n; i++ {
		smoothness += math.Abs(newF[i]-newF[i-1]) / 255
	}

	nf := float64(n)
	score := 0.40*(ssim/nf) + 0.25*(mseImprovement/nf) + 0.20*(edgeBonus/nf) - 0.10*(smoothness/nf) - 0.05*(overdrawSum/nf)

	// Length preference.
	shortSide := math.Min(float64(in.Width), float64(in.Height))
	if shortSide > 0 {
		length := nf / (0.3 * shortSide)
		switch {
		case length >= 0.2 && length < 1.2:
			score *= 1.15
		case length >= 1.5:
			score *= 0.85
		}
	}

	if in.UsePinFatigue {
		combined := int(in.FromUsage) + int(in.ToUsage) - 50
		if combined > 0 {
			score /= math.Pow(1.005, float64(combined))
		}
	}

	if in.FaceOverlap >= faces.FaceBonusOverlap {
		score += (edgeBonus / nf) * in.FaceOverlap * faces.FaceBonusMultiplier
		if in.MeanFaceDensity > 0.85 {
			score *= 0.3
		}
	}

	return score
}
