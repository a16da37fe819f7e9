// Package pins places the physical nail positions on the frame (spec
// component C2): a circle for circular frames, optionally with angular
// compression around a detected face, or four equally-spaced sides for
// rectangular/square frames.
package pins

import (
	"math"
	"sort"

	"github.com/your-org/stringart/internal/faces"
	"github.com/your-org/stringart/internal/models"
)

// FrameType mirrors dto.FrameType without importing pkg/dto, keeping this
// package's dependency graph one-directional (engine packages depend on
// dto, not the reverse).
type FrameType string

const (
	FrameCircular    FrameType = "circular"
	FrameSquare      FrameType = "square"
	FrameRectangular FrameType = "rectangular"
)

// marginPx is the 5-pixel perimeter margin spec.md §4.2 specifies for
// rectangular frames, and the radius inset for circular frames.
const marginPx = 5.0

// Place builds the pin layout for an image of size width×height. count is
// the requested pin count P; faceBox is nil when no face was detected (or
// frameType is not circular, where the face sector compression does not
// apply).
func Place(frameType FrameType, width, height, count int, faceBox *faces.Box) []models.Pin {
	switch frameType {
	case FrameRectangular, FrameSquare:
		return placeRectangular(width, height, count)
	default:
		return placeCircular(width, height, count, faceBox)
	}
}

type polarPin struct {
	angle float64
	x, y  float64
}

// placeCircular implements spec.md §4.2's circular layout, including the
// face-sector angular compression when faceBox is non-nil.
func placeCircular(width, height, count int, faceBox *faces.Box) []models.Pin {
	cx := float64(width) / 2
	cy := float64(height) / 2
	radius := math.Min(float64(width), float64(height))/2 - marginPx
	if radius < 1 {
		radius = 1
	}

	var polars []polarPin

	if faceBox == nil {
		for i := 0; i < count; i++ {
			a := 2 * math.Pi * float64(i) / float64(count)
			polars = append(polars, polarAt(cx, cy, radius, a))
		}
		return toIndexedPins(polars)
	}

	faceAngle := math.Atan2(faceBox.CenterY()-cy, faceBox.CenterX()-cx)
	sectorHalfWidth := math.Atan2(faceBox.W/2, radius)
	sectorWidth := 2 * sectorHalfWidth
	if sectorWidth <= 0 || sectorWidth >= 2*math.Pi {
		for i := 0; i < count; i++ {
			a := 2 * math.Pi * float64(i) / float64(count)
			polars = append(polars, polarAt(cx, cy, radius, a))
		}
		return toIndexedPins(polars)
	}

	baselineSectorPins := float64(count) * sectorWidth / (2 * math.Pi)
	sectorPins := int(math.Round(1.4 * baselineSectorPins))
	if sectorPins < 1 {
		sectorPins = 1
	}

	maxTotal := int(math.Floor(float64(count) * 1.15))
	total := count + (sectorPins - int(math.Round(baselineSectorPins)))
	if total > maxTotal {
		total = maxTotal
	}
	if total < sectorPins {
		total = sectorPins
	}
	outsidePins := total - sectorPins
	if outsidePins < 0 {
		outsidePins = 0
	}

	sectorStart := faceAngle - sectorHalfWidth
	for i := 0; i < sectorPins; i++ {
		var a float64
		if sectorPins == 1 {
			a = faceAngle
		} else {
			a = sectorStart + sectorWidth*float64(i)/float64(sectorPins-1)
		}
		polars = append(polars, polarAt(cx, cy, radius, a))
	}

	remaining := 2*math.Pi - sectorWidth
	for i := 0; i < outsidePins; i++ {
		a := sectorStart + sectorWidth + remaining*float64(i+1)/float64(outsidePins+1)
		polars = append(polars, polarAt(cx, cy, radius, normalizeAngle(a)))
	}

	return toIndexedPins(polars)
}

func polarAt(cx, cy, radius, angle float64) polarPin {
	return polarPin{
		angle: normalizeAngle(angle),
		x:     cx + radius*math.Cos(angle),
		y:     cy + radius*math.Sin(angle),
	}
}

func normalizeAngle(a float64) float64 {
	twoPi := 2 * math.Pi
	for a < 0 {
		a += twoPi
	}
	for a >= twoPi {
		a -= twoPi
	}
	return a
}

// toIndexedPins sorts polars by angle so index-space adjacency matches
// geometric adjacency, then assigns dense 0..count-1 indices.
func toIndexedPins(polars []polarPin) []models.Pin {
	sort.Slice(polars, func(i, j int) bool { return polars[i].angle < polars[j].angle })
	out := make([]models.Pin, len(polars))
	for i, p := range polars {
		out[i] = models.Pin{
			Index: uint32(i),
			X:     clampCoord(p.x),
			Y:     clampCoord(p.y),
		}
	}
	return out
}

// placeRectangular divides the perimeter into four equal sides, each
// carrying floor(P/4) equally spaced pins with a marginPx inset, in
// perimeter-traversal order (top, right, bottom, left) so index-space
// adjacency matches geometric adjacency.
func placeRectangular(width, height, count int) []models.Pin {
	perSide := count / 4
	if perSide < 1 {
		perSide = 1
	}

	left := marginPx
	top := marginPx
	right := float64(width) - marginPx
	bottom := float64(height) - marginPx

	var polars []struct{ x, y float64 }
	side := func(x0, y0, x1, y1 float64) {
		for i := 0; i < perSide; i++ {
			t := float64(i) / float64(perSide)
			polars = append(polars, struct{ x, y float64 }{
				x: x0 + (x1-x0)*t,
				y: y0 + (y1-y0)*t,
			})
		}
	}
	side(left, top, right, top)      // top edge, left to right
	side(right, top, right, bottom)  // right edge, top to bottom
	side(right, bottom, left, bottom) // bottom edge, right to left
	side(left, bottom, left, top)    // left edge, bottom to top

	out := make([]models.Pin, len(polars))
	for i, p := range polars {
		out[i] = models.Pin{Index: uint32(i), X: clampCoord(p.x), Y: clampCoord(p.y)}
	}
	return out
}

func clampCoord(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(math.Round(v))
}
