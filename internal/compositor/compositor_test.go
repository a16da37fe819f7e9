package compositor

import "testing"

func TestForwardGrayDarkensAndTracksDensity(t *testing.T) {
	gray := []uint8{255}
	density := []float32{0}
	overdraw := []uint16{0}

	ForwardGray(gray, density, overdraw, 0, 0.12)
	if gray[0] >= 255 {
		t.Fatalf("expected pixel to darken, got %d", gray[0])
	}
	if density[0] <= 0 {
		t.Fatalf("expected density to increase, got %f", density[0])
	}
	if overdraw[0] != 1 {
		t.Fatalf("expected overdraw 1, got %d", overdraw[0])
	}
}

func TestDensityMonotonicNonDecreasingUnderForward(t *testing.T) {
	gray := []uint8{255}
	density := []float32{0}
	overdraw := []uint16{0}

	prev := float32(0)
	for i := 0; i < 20; i++ {
		ForwardGray(gray, density, overdraw, 0, 0.12)
		if density[0] < prev {
			t.Fatalf("density decreased at step %d: %f -> %f", i, prev, density[0])
		}
		if density[0] > 1 {
			t.Fatalf("density exceeded 1 at step %d: %f", i, density[0])
		}
		prev = density[0]
	}
}

func TestForwardThenReverseApproximatelyRestores(t *testing.T) {
	gray := []uint8{200}
	density := []float32{0}
	overdraw := []uint16{0}
	original := gray[0]

	ForwardGray(gray, density, overdraw, 0, 0.2)
	ReverseGray(gray, overdraw, 0, 0.2)

	diff := int(gray[0]) - int(original)
	if diff < -2 || diff > 2 {
		t.Fatalf("reverse did not approximately restore: got %d, want ~%d", gray[0], original)
	}
	if overdraw[0] != 0 {
		t.Fatalf("expected overdraw restored to 0, got %d", overdraw[0])
	}
}

func TestForwardColorSubtractiveAbsorption(t *testing.T) {
	rgb := []uint8{255, 255, 255}
	density := []float32{0}
	overdraw := []uint16{0}
	black := ThreadColor{R: 0, G: 0, B: 0}

	ForwardColor(rgb, density, overdraw, 0, black, 0.3)
	for c := 0; c < 3; c++ {
		if rgb[c] >= 255 {
			t.Fatalf("channel %d did not darken under full-absorption black thread: got %d", c, rgb[c])
		}
	}
}

func TestToFromLinearRoundTrip(t *testing.T) {
	for v := 0; v <= 255; v += 17 {
		got := FromLinear(ToLinear(uint8(v)))
		diff := int(got) - v
		if diff < -1 || diff > 1 {
			t.Fatalf("round trip for %d: got %d", v, got)
		}
	}
}
