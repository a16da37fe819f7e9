// labscore.go implements the LAB-ΔE interleaved-color score (spec
// component C9, §4.9.c): for each CMYK-palette thread color, test its
// effect on the shared RGB canvas and score by ΔE improvement.
package scoring

import (
	"math"

	"github.com/your-org/stringart/internal/compositor"
	"github.com/your-org/stringart/internal/edges"
	"github.com/your-org/stringart/internal/faces"
)

// PaletteColor names one of the four threads in the interleaved-color
// palette (spec.md §4.9.c: "black, cyan, magenta, yellow").
type PaletteColor struct {
	Name  string
	Hex   string
	Linear compositor.ThreadColor
}

// Palette is the fixed thread set scored in color mode, exactly the
// four colors and hex codes spec.md §6 names.
var Palette = []PaletteColor{
	{Name: "black", Hex: "#000000", Linear: compositor.ThreadColor{R: 0, G: 0, B: 0}},
	{Name: "cyan", Hex: "#00BCD4", Linear: compositor.ThreadColor{R: 0, G: 1, B: 1}},
	{Name: "magenta", Hex: "#E91E63", Linear: compositor.ThreadColor{R: 1, G: 0, B: 1}},
	{Name: "yellow", Hex: "#FFEB3B", Linear: compositor.ThreadColor{R: 1, G: 1, B: 0}},
}

// LABScoreInput bundles everything LABLineScore needs for one
// (candidate line, palette color) pair.
type LABScoreInput struct {
	Pixels   []int
	TargetRGB []uint8 // interleaved, 3 bytes/pixel
	CurrentRGB []uint8
	Density  []float32 // per-pixel accumulated ink density, indexed like Pixels
	Overdraw []uint16
	EdgeMap  *edges.Map
	Alpha    float64
	Color    PaletteColor
	Width    int
	Masks    *faces.Masks // region classification for the overdraw threshold; nil treated as background

	UsageOfThisColor int
	ExpectedPerColor float64
	PinUsageTo       uint32

	FaceOverlap     float64
	MeanFaceDensity float64
}

// LABLineScore implements spec.md §4.9.c end to end for one palette
// color on one candidate line.
func LABLineScore(in LABScoreInput) float64 {
	n := len(in.Pixels)
	if n == 0 {
		return 0
	}

	var deltaESum, edgeSum, overdrawSum float64
	for _, idx := range in.Pixels {
		base := 3 * idx
		tr, tg, tb := in.TargetRGB[base], in.TargetRGB[base+1], in.TargetRGB[base+2]
		cr, cg, cb := in.CurrentRGB[base], in.CurrentRGB[base+1], in.CurrentRGB[base+2]
		nr, ng, nb := compositor.SimulateForwardColor(cr, cg, cb, in.Color.Linear, in.Alpha)

		targetLAB := RGBToLAB(tr, tg, tb)
		currentLAB := RGBToLAB(cr, cg, cb)
		newLAB := RGBToLAB(nr, ng, nb)

		deltaESum += DeltaE76(targetLAB, currentLAB) - DeltaE76(targetLAB, newLAB)

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

	nf := float64(n)
	deltaE := deltaESum / nf
	edge := edgeSum / nf
	overdraw := overdrawSum / nf

	var imbalance float64
	if in.ExpectedPerColor > 0 {
		imbalance = math.Max(0, (float64(in.UsageOfThisColor)-in.ExpectedPerColor)/in.ExpectedPerColor)
	}

	score := 0.65*deltaE + 0.20*edge - 0.10*overdraw - 0.05*imbalance
	score *= math.Pow(0.997, float64(in.PinUsageTo))

	if in.FaceOverlap >= faces.FaceBonusOverlap {
		score += edge * in.FaceOverlap * faces.FaceBonusMultiplier
		if in.MeanFaceDensity > 0.85 {
			score *= 0.3
		}
	}

	return score
}
