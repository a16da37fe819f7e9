package scoring

import (
	"math"
	"testing"

	"github.com/your-org/stringart/internal/pyramid"
)

func TestRGBToLABGrayIsAchromatic(t *testing.T) {
	lab := RGBToLAB(128, 128, 128)
	if math.Abs(lab.A) > 0.5 || math.Abs(lab.B) > 0.5 {
		t.Fatalf("expected near-zero a*/b* for a neutral gray, got a=%f b=%f", lab.A, lab.B)
	}
}

func TestDeltaE76IdenticalColorsIsZero(t *testing.T) {
	lab := RGBToLAB(200, 100, 50)
	if d := DeltaE76(lab, lab); d != 0 {
		t.Fatalf("expected 0 distance for identical LAB points, got %f", d)
	}
}

func TestDeltaE76BlackWhiteIsLarge(t *testing.T) {
	black := RGBToLAB(0, 0, 0)
	white := RGBToLAB(255, 255, 255)
	if d := DeltaE76(black, white); d < 50 {
		t.Fatalf("expected a large ΔE between black and white, got %f", d)
	}
}

func TestLocalSSIMIdenticalInputsIsOne(t *testing.T) {
	a := []float64{10, 20, 30, 40}
	if s := localSSIM(a, a); math.Abs(s-1) > 1e-9 {
		t.Fatalf("SSIM of identical samples should be 1, got %f", s)
	}
}

func TestPerceptualLineScoreRewardsDarkeningTowardTarget(t *testing.T) {
	n := 20
	target := make([]uint8, n)
	current := make([]uint8, n)
	overdraw := make([]uint16, n)
	pixels := make([]int, n)
	for i := 0; i < n; i++ {
		target[i] = 0   // dark target
		current[i] = 255 // bright canvas, thread should darken toward target
		pixels[i] = i
	}

	score := PerceptualLineScore(PerceptualInput{
		Pixels:   pixels,
		Target:   target,
		Current:  current,
		Overdraw: overdraw,
		Alpha:    0.12,
		Width:    100,
		Height:   100,
	})
	if score <= 0 {
		t.Fatalf("expected a positive score for a line that moves toward the target, got %f", score)
	}
}

func TestMultiResScoreRejectsBadLowRes(t *testing.T) {
	// Target wants white; the canvas is already mid-gray. Darkening it
	// further (a normal forward composite) moves away from the target,
	// which must score as a large negative and trip the reject sentinel.
	target := pyramid.Pair{
		Low: pyramid.Level{Width: 4, Height: 4, Gray: makeFlat(16, 255)},
		Mid: pyramid.Level{Width: 8, Height: 8, Gray: makeFlat(64, 255)},
	}
	progress := pyramid.Pair{
		Low: pyramid.Level{Width: 4, Height: 4, Gray: makeFlat(16, 128)},
		Mid: pyramid.Level{Width: 8, Height: 8, Gray: makeFlat(64, 128)},
	}
	score := MultiResScore(target, progress, 0, 0, 3, 3, 16, 16, 0.9, 100)
	if score != RejectSentinel {
		t.Fatalf("expected reject sentinel for a move away from target, got %f", score)
	}
}

func makeFlat(n int, v uint8) []uint8 {
	out := make([]uint8, n)
	for i := range out {
		out[i] = v
	}
	return out
}
