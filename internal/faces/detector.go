// Package faces builds the face/body/background region masks the stage
// driver and scorers consult (spec component C4). Face detection itself is
// a black box behind the Detector interface: the engine never trains or
// tunes a model, it only consumes a bounding box.
package faces

import "context"

// Box is an axis-aligned region in pixel coordinates of the preprocessed
// (already-resized) target image — never the original upload.
type Box struct {
	X, Y, W, H float64
}

// CenterX and CenterY are convenience accessors used throughout C2/C4.
func (b Box) CenterX() float64 { return b.X + b.W/2 }
func (b Box) CenterY() float64 { return b.Y + b.H/2 }

// Scaled returns b expanded by factor around its own center.
func (b Box) Scaled(factor float64) Box {
	cx, cy := b.CenterX(), b.CenterY()
	w, h := b.W*factor, b.H*factor
	return Box{X: cx - w/2, Y: cy - h/2, W: w, H: h}
}

// Contains reports whether the pixel (x,y) falls inside b.
func (b Box) Contains(x, y float64) bool {
	return x >= b.X && x < b.X+b.W && y >= b.Y && y < b.Y+b.H
}

// Detection is one detected face plus its confidence.
type Detection struct {
	Box        Box
	Confidence float32
}

// Detector runs face detection on an already-preprocessed grayscale image
// of size W×H. Implementations must never return an error for "no
// face found" — that is reported via the bool return, because a missing
// face is recovered silently (spec §7 category 3), never surfaced as a
// failure.
type Detector interface {
	// Detect returns the highest-confidence face box found in the image,
	// or ok=false if none was found or the detector is unavailable.
	Detect(ctx context.Context, gray []uint8, width, height int) (box Box, ok bool, err error)
}

// DefaultFaceBox is the deterministic centered fallback from spec.md §4.4,
// used whenever detection fails or is unavailable: a box of size
// (0.4W, 0.5H) positioned at (0.3W, 0.15H).
func DefaultFaceBox(width, height int) Box {
	w, h := float64(width), float64(height)
	return Box{X: 0.3 * w, Y: 0.15 * h, W: 0.4 * w, H: 0.5 * h}
}
