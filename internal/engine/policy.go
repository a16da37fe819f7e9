package engine

import (
	"math"

	"github.com/your-org/stringart/internal/candidates"
	"github.com/your-org/stringart/internal/faces"
	"github.com/your-org/stringart/pkg/dto"
)

// stage is one row of spec.md §4.10's stage table.
type stage struct {
	Label             string
	ThreadShare       float64
	MinSkipDivisor    float64 // min_skip seed = max(base, pinCount/divisor); 0 means "base only"
	OpacityMultiplier float64
	OpacityCap        float64
}

// threeStages is the spec.md §4.10 stage table, used for the "high"
// quality preset and LAB-color mode.
var threeStages = []stage{
	{Label: "structure", ThreadShare: 0.25, MinSkipDivisor: 6, OpacityMultiplier: 1.3, OpacityCap: 0.5},
	{Label: "mid_detail", ThreadShare: 0.35, MinSkipDivisor: 15, OpacityMultiplier: 1.1, OpacityCap: 0.5},
	{Label: "fine_detail", ThreadShare: 0.40, MinSkipDivisor: 0, OpacityMultiplier: 0.8, OpacityCap: 1},
}

// singleStage is the uniform-opacity single greedy pass non-high,
// non-color presets run (spec.md §4.10: "other presets run a single
// greedy pass with the same scoring but uniform opacity").
var singleStage = []stage{
	{Label: "greedy", ThreadShare: 1.0, MinSkipDivisor: 0, OpacityMultiplier: 1.0, OpacityCap: 1},
}

// stagesFor selects the three-stage policy for the high preset and
// LAB-color mode, and the uniform single pass otherwise.
func stagesFor(p dto.GenerationParams) []stage {
	if p.QualityPreset == dto.QualityHigh || p.ColorMode == dto.ColorModeColor {
		return threeStages
	}
	return singleStage
}

// minSkipSeed resolves one stage's min_skip seed per spec.md §4.10:
// max(base, pinCount/divisor), or base alone when divisor is 0.
func minSkipSeed(s stage, base, pinCount int) int {
	if s.MinSkipDivisor == 0 {
		return base
	}
	seeded := int(math.Ceil(float64(pinCount) / s.MinSkipDivisor))
	if seeded > base {
		return seeded
	}
	return base
}

// stageOpacity applies the stage's multiplier to the configured thread
// opacity, clamped at the stage's cap.
func stageOpacity(s stage, baseOpacity float64) float64 {
	v := baseOpacity * s.OpacityMultiplier
	if v > s.OpacityCap {
		v = s.OpacityCap
	}
	return v
}

// candidateK resolves (K_edge, K_rand) from the {25,35}/{10,15} ranges in
// spec.md §4.8; higher-quality presets use the larger end of each range.
func candidateK(preset dto.QualityPreset) (kEdge, kRand int) {
	if preset == dto.QualityHigh {
		return candidates.KEdgeHigh, candidates.KRandHigh
	}
	return candidates.KEdgeLow, candidates.KRandLow
}

// backgroundPolicy resolves the faces.Policy for a preset and the
// caller's configured min_pin_skip floor.
func backgroundPolicy(preset dto.QualityPreset, minPinSkip int) faces.Policy {
	return faces.Policy{
		BackgroundMinSkip: faces.BackgroundMinSkipForPreset(string(preset)),
		MinPinSkip:        minPinSkip,
	}
}
