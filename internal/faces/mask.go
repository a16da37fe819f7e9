package faces

import "context"

// Region classifies a pin or pixel location for min-skip and overdraw
// policy purposes (spec.md §4.4).
type Region int

const (
	RegionBackground Region = iota
	RegionBody
	RegionFace
)

// Masks holds the boolean face/body masks and boxes produced by Build, at
// the resolution of the preprocessed target image (not the original
// upload — coordinates must match, per spec.md §4.4).
type Masks struct {
	Width, Height int
	Face          []bool // len == Width*Height
	Body          []bool
	FaceBox       Box
	BodyBox       Box
	Detected      bool // true if a real detector found a face (not the fallback box)
}

// Build runs det on the preprocessed image and constructs the face/body
// masks. Detector failure or absence never surfaces as an error: it
// silently falls back to the deterministic centered box (spec.md §7
// category 3), and Masks.Detected reports which path was taken so callers
// can log a warning without failing the job.
func Build(ctx context.Context, det Detector, gray []uint8, width, height int) (*Masks, error) {
	box, ok, err := det.Detect(ctx, gray, width, height)
	detected := ok && err == nil
	if !detected {
		box = DefaultFaceBox(width, height)
	}

	faceBox := box.Scaled(1.1)
	bodyBox := bodyBoxFor(box, width, height)

	m := &Masks{
		Width:    width,
		Height:   height,
		Face:     make([]bool, width*height),
		Body:     make([]bool, width*height),
		FaceBox:  faceBox,
		BodyBox:  bodyBox,
		Detected: detected,
	}
	for y := 0; y < height; y++ {
		fy := float64(y)
		for x := 0; x < width; x++ {
			fx := float64(x)
			idx := y*width + x
			if faceBox.Contains(fx, fy) {
				m.Face[idx] = true
			}
			if bodyBox.Contains(fx, fy) {
				m.Body[idx] = true
			}
		}
	}
	return m, nil
}

// bodyBoxFor builds the ~1.6x-wide, 2.0x-tall body box, horizontally
// centered on the face box and extending down from its top edge, clamped
// to the image bounds.
func bodyBoxFor(face Box, width, height int) Box {
	cx := face.CenterX()
	w := face.W * 1.6
	h := face.H * 2.0
	x := cx - w/2
	y := face.Y // body extends downward from the face's top edge

	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x+w > float64(width) {
		w = float64(width) - x
	}
	if y+h > float64(height) {
		h = float64(height) - y
	}
	return Box{X: x, Y: y, W: w, H: h}
}

// RegionAt classifies a single pixel location. Face takes priority over
// body, as a pixel inside both is scored as face (spec.md §4.4's
// effective_min_skip gives face priority the same way).
func (m *Masks) RegionAt(x, y int) Region {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return RegionBackground
	}
	idx := y*m.Width + x
	if m.Face[idx] {
		return RegionFace
	}
	if m.Body[idx] {
		return RegionBody
	}
	return RegionBackground
}

// Policy carries the quality-preset-dependent background min-skip and the
// caller-configured floor.
type Policy struct {
	BackgroundMinSkip int // one of {6,7,8}, chosen by quality preset
	MinPinSkip        int // configured floor (GenerationParams.MinPinSkip)
}

// BackgroundMinSkipForPreset resolves the background min_skip per spec.md
// §4.4's "{6,7,8} by quality preset" without pinning down which value maps
// to which preset. Decision: higher quality allows
// denser background coverage, so high=6, balanced=7, fast=8.
func BackgroundMinSkipForPreset(preset string) int {
	switch preset {
	case "high":
		return 6
	case "balanced":
		return 7
	default:
		return 8
	}
}

// RegionMinSkip returns the unfloored min_skip policy value for a region.
func RegionMinSkip(r Region, backgroundMinSkip int) int {
	switch r {
	case RegionFace:
		return 2
	case RegionBody:
		return 4
	default:
		return backgroundMinSkip
	}
}

// EffectiveMinSkip implements spec.md §4.4's effective_min_skip: if either
// endpoint is in the face region, the skip collapses to 2 (faces need
// dense, short threads); otherwise it is the max of the two endpoints'
// region policies. The configured MinPinSkip is floored in on both
// branches so invariant P1 (circular_distance >= effective_min_skip)
// always holds regardless of region, which the literal spec text leaves
// ambiguous for the face branch — see DESIGN.md Open Question.
func EffectiveMinSkip(m *Masks, ax, ay, bx, by int, p Policy) int {
	ra := m.RegionAt(ax, ay)
	rb := m.RegionAt(bx, by)

	var skip int
	if ra == RegionFace || rb == RegionFace {
		skip = 2
	} else {
		sa := RegionMinSkip(ra, p.BackgroundMinSkip)
		sb := RegionMinSkip(rb, p.BackgroundMinSkip)
		skip = sa
		if sb > skip {
			skip = sb
		}
	}
	if p.MinPinSkip > skip {
		skip = p.MinPinSkip
	}
	return skip
}

// OverdrawThreshold returns the density threshold beyond which the
// overdraw penalty in the perceptual scorer (C9) kicks in for a region.
func OverdrawThreshold(r Region) float64 {
	switch r {
	case RegionFace:
		return 0.80
	case RegionBody:
		return 0.80
	default:
		return 0.90
	}
}

// LineFaceOverlap returns the fraction of pixelIndices that fall inside
// the face mask.
func LineFaceOverlap(m *Masks, pixelIndices []int) float64 {
	if len(pixelIndices) == 0 {
		return 0
	}
	hits := 0
	for _, idx := range pixelIndices {
		if idx >= 0 && idx < len(m.Face) && m.Face[idx] {
			hits++
		}
	}
	return float64(hits) / float64(len(pixelIndices))
}

const (
	// FaceRelevantOverlap is the §4.4 threshold above which a line is
	// considered "face-relevant" for priority weighting.
	FaceRelevantOverlap = 0.05
	// FaceBonusOverlap is the §4.4 threshold above which a line receives
	// the 5x edge bonus.
	FaceBonusOverlap = 0.30
	// FaceBonusMultiplier is the edge-bonus multiplier applied at
	// FaceBonusOverlap.
	FaceBonusMultiplier = 5.0
)
