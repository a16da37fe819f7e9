package pins

import (
	"math"
	"testing"

	"github.com/your-org/stringart/internal/faces"
)

func TestPlaceCircularNoFaceEvenSpacing(t *testing.T) {
	got := Place(FrameCircular, 200, 200, 16, nil)
	if len(got) != 16 {
		t.Fatalf("count: got %d, want 16", len(got))
	}
	for i, p := range got {
		if p.Index != uint32(i) {
			t.Fatalf("pin %d has index %d, want dense 0..n-1", i, p.Index)
		}
	}
	cx, cy := 100.0, 100.0
	radius := math.Min(200, 200)/2 - marginPx
	for _, p := range got {
		dx := float64(p.X) - cx
		dy := float64(p.Y) - cy
		dist := math.Hypot(dx, dy)
		if math.Abs(dist-radius) > 1.5 {
			t.Fatalf("pin %d distance from center = %f, want ~%f", p.Index, dist, radius)
		}
	}
}

func TestPlaceCircularWithFaceStaysWithinBudget(t *testing.T) {
	face := faces.Box{X: 60, Y: 30, W: 80, H: 100}
	const count = 100
	got := Place(FrameCircular, 200, 200, count, &face)
	maxAllowed := int(math.Floor(count * 1.15))
	if len(got) > maxAllowed {
		t.Fatalf("pin count %d exceeds budget %d", len(got), maxAllowed)
	}
	if len(got) < count {
		t.Fatalf("pin count %d should not shrink below requested %d", len(got), count)
	}
	for i, p := range got {
		if p.Index != uint32(i) {
			t.Fatalf("pin %d has index %d, want dense index order", i, p.Index)
		}
	}
}

func TestPlaceRectangularFourSides(t *testing.T) {
	got := Place(FrameRectangular, 400, 200, 40, nil)
	if len(got) == 0 {
		t.Fatalf("expected pins")
	}
	for i, p := range got {
		if p.Index != uint32(i) {
			t.Fatalf("pin %d has index %d, want %d", i, p.Index, i)
		}
		if float64(p.X) < 0 || float64(p.X) > 400 || float64(p.Y) < 0 || float64(p.Y) > 200 {
			t.Fatalf("pin %d at (%d,%d) escapes frame bounds", i, p.X, p.Y)
		}
	}
}
