package raster

import (
	"testing"

	"github.com/your-org/stringart/internal/models"
)

func TestThreadWidthPx(t *testing.T) {
	cases := []struct {
		mm   float64
		want int
	}{
		{0, 1},
		{0.2, 1},
		{0.5, 1},
		{1.0, 2},
		{1.5, 3},
	}
	for _, c := range cases {
		got := ThreadWidthPx(c.mm)
		if got != c.want {
			t.Errorf("ThreadWidthPx(%v) = %d, want %d", c.mm, got, c.want)
		}
	}
}

func TestLineIncludesEndpoints(t *testing.T) {
	cache := make(Cache)
	a := models.Pin{Index: 0, X: 0, Y: 0}
	b := models.Pin{Index: 1, X: 9, Y: 0}
	pixels := Line(cache, a, b, 1, 10, 10)

	has := func(x, y int) bool {
		target := y*10 + x
		for _, p := range pixels {
			if p == target {
				return true
			}
		}
		return false
	}
	if !has(0, 0) || !has(9, 0) {
		t.Fatalf("expected both endpoints present in %v", pixels)
	}
}

func TestLineIsCached(t *testing.T) {
	cache := make(Cache)
	a := models.Pin{Index: 0, X: 0, Y: 0}
	b := models.Pin{Index: 1, X: 5, Y: 5}

	first := Line(cache, a, b, 1, 10, 10)
	if len(cache) != 1 {
		t.Fatalf("expected one cache entry, got %d", len(cache))
	}
	// Reversed direction must hit the same cache entry (min/max ordered key).
	second := Line(cache, b, a, 1, 10, 10)
	if len(cache) != 1 {
		t.Fatalf("expected cache reuse for reversed pin order, got %d entries", len(cache))
	}
	if len(first) != len(second) {
		t.Fatalf("forward/reverse line pixel counts differ: %d vs %d", len(first), len(second))
	}
}

func TestLineThickeningAddsPixels(t *testing.T) {
	cache := make(Cache)
	a := models.Pin{Index: 0, X: 2, Y: 5}
	b := models.Pin{Index: 1, X: 8, Y: 5}

	thin := Line(cache, a, b, 1, 10, 10)
	thick := Line(make(Cache), a, b, 5, 10, 10)
	if len(thick) <= len(thin) {
		t.Fatalf("expected thicker line to cover more pixels: thin=%d thick=%d", len(thin), len(thick))
	}
}

func TestLineClipsToBounds(t *testing.T) {
	cache := make(Cache)
	a := models.Pin{Index: 0, X: 0, Y: 0}
	b := models.Pin{Index: 1, X: 3, Y: 0}
	pixels := Line(cache, a, b, 9, 4, 4)
	for _, p := range pixels {
		if p < 0 || p >= 4*4 {
			t.Fatalf("pixel index %d escapes 4x4 bounds", p)
		}
	}
}
