package edges

import "testing"

func TestComputeFlatImageHasNoEdges(t *testing.T) {
	gray := make([]uint8, 16*16)
	for i := range gray {
		gray[i] = 128
	}
	m := Compute(gray, 16, 16)
	// The zero border makes the outermost ring see a step down to 0, so
	// only interior pixels are flat in every 3×3 window.
	for y := 1; y < 15; y++ {
		for x := 1; x < 15; x++ {
			i := y*16 + x
			if v := m.Magnitude[i]; v != 0 {
				t.Fatalf("pixel %d: magnitude %d, want 0 on a flat image", i, v)
			}
		}
	}
}

func TestComputeVerticalEdgeIsDetected(t *testing.T) {
	const w, h = 10, 10
	gray := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				gray[y*w+x] = 0
			} else {
				gray[y*w+x] = 255
			}
		}
	}
	m := Compute(gray, w, h)
	mid := h/2*w + w/2
	if m.Magnitude[mid] == 0 {
		t.Fatalf("expected nonzero magnitude at the vertical edge boundary")
	}
	interior := h/2*w + 1
	if m.Magnitude[interior] != 0 {
		t.Fatalf("expected zero magnitude away from the edge, got %d", m.Magnitude[interior])
	}
}

func TestTangentIsUnitLength(t *testing.T) {
	const w, h = 10, 10
	gray := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				gray[y*w+x] = 0
			} else {
				gray[y*w+x] = 255
			}
		}
	}
	m := Compute(gray, w, h)
	mid := h/2*w + w/2
	tx, ty := float64(m.TangentX[mid]), float64(m.TangentY[mid])
	length := tx*tx + ty*ty
	if length < 0.98 || length > 1.02 {
		t.Fatalf("tangent length^2 = %f, want ~1", length)
	}
}
