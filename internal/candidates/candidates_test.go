package candidates

import (
	"math/rand"
	"testing"

	"github.com/your-org/stringart/internal/faces"
	"github.com/your-org/stringart/internal/models"
)

func ringPins(n int) []models.Pin {
	pins := make([]models.Pin, n)
	for i := 0; i < n; i++ {
		pins[i] = models.Pin{Index: uint32(i), X: uint16(i * 10), Y: 0}
	}
	return pins
}

func TestGenerateRespectsMinSkip(t *testing.T) {
	pinsList := ringPins(20)
	rng := rand.New(rand.NewSource(1))
	policy := faces.Policy{BackgroundMinSkip: 6, MinPinSkip: 6}
	p := Params{KEdge: KEdgeLow, KRand: KRandLow, Policy: policy}

	out := Generate(pinsList, pinsList[0], nil, nil, p, rng)
	if len(out) == 0 {
		t.Fatalf("expected candidates")
	}
	for _, idx := range out {
		dist := models.CircularDistance(0, idx, 20)
		if dist < 6 {
			t.Fatalf("candidate %d violates min_skip: distance %d", idx, dist)
		}
	}
}

func TestGenerateExcludesSelf(t *testing.T) {
	pinsList := ringPins(20)
	rng := rand.New(rand.NewSource(2))
	p := Params{KEdge: KEdgeLow, KRand: KRandLow, Policy: faces.Policy{BackgroundMinSkip: 2, MinPinSkip: 2}}

	out := Generate(pinsList, pinsList[5], nil, nil, p, rng)
	for _, idx := range out {
		if idx == 5 {
			t.Fatalf("candidate list must not include the starting pin")
		}
	}
}

func TestGenerateReturnsNilWhenNoValidPin(t *testing.T) {
	pinsList := ringPins(3)
	rng := rand.New(rand.NewSource(3))
	// min_skip larger than any achievable circular distance on a 3-pin ring.
	p := Params{KEdge: KEdgeLow, KRand: KRandLow, Policy: faces.Policy{BackgroundMinSkip: 10, MinPinSkip: 10}}

	out := Generate(pinsList, pinsList[0], nil, nil, p, rng)
	if out != nil {
		t.Fatalf("expected nil candidates for a degenerate min_skip, got %v", out)
	}
}

func TestGenerateIsDeterministicForFixedSeed(t *testing.T) {
	pinsList := ringPins(30)
	p := Params{KEdge: KEdgeLow, KRand: KRandLow, Policy: faces.Policy{BackgroundMinSkip: 3, MinPinSkip: 3}}

	out1 := Generate(pinsList, pinsList[0], nil, nil, p, rand.New(rand.NewSource(42)))
	out2 := Generate(pinsList, pinsList[0], nil, nil, p, rand.New(rand.NewSource(42)))
	if len(out1) != len(out2) {
		t.Fatalf("expected same-seed determinism, got lengths %d and %d", len(out1), len(out2))
	}
	for i := range out1 {
		if out1[i] != out2[i] {
			t.Fatalf("expected same-seed determinism, differ at index %d: %d vs %d", i, out1[i], out2[i])
		}
	}
}
