// Package raster implements the line rasterizer (spec component C5): a
// Bresenham line between two pin coordinates, optionally thickened
// perpendicular to the line, memoized so repeated scoring of the same
// pin pair is O(|pixels|) instead of re-walking the line.
package raster

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/your-org/stringart/internal/models"
)

// Cache memoizes rasterized pixel index lists, keyed by an xxhash digest
// of (min pin, max pin, thickness) rather than a Go map composite key —
// a fixed 8-byte key regardless of how wide the pin-index/thickness
// fields grow, and one hash pass instead of the runtime's built-in
// struct-key hashing. It is not safe for concurrent writes — the
// engine's single state owner is the only writer, matching spec.md §3's
// single-owner State.
type Cache map[uint64][]int

// cacheKey hashes one rasterized (pin, pin, thickness) segment. min and
// max are pre-ordered by the caller so a pin pair hashes identically
// regardless of traversal direction, per spec.md §4.5.
func cacheKey(min, max uint32, thickness int) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:4], min)
	binary.LittleEndian.PutUint32(buf[4:8], max)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(thickness))
	return xxhash.Sum64(buf[:])
}

// ThreadWidthPx converts a thread width in millimeters to a pixel
// thickness per spec.md §4.5: max(1, round(2*thread_width_mm)).
func ThreadWidthPx(threadWidthMM float64) int {
	px := int(math.Round(2 * threadWidthMM))
	if px < 1 {
		px = 1
	}
	return px
}

// Line returns the pixel indices (row-major, width*height) traversed by
// the line between pin a and pin b, thickened perpendicular to the line
// by thicknessPx. Results are served from cache when present.
func Line(cache Cache, a, b models.Pin, thicknessPx, width, height int) []int {
	minIdx, maxIdx := a.Index, b.Index
	if minIdx > maxIdx {
		minIdx, maxIdx = maxIdx, minIdx
	}
	key := cacheKey(minIdx, maxIdx, thicknessPx)
	if cached, ok := cache[key]; ok {
		return cached
	}

	pixels := rasterize(int(a.X), int(a.Y), int(b.X), int(b.Y), thicknessPx, width, height)
	cache[key] = pixels
	return pixels
}

// rasterize computes the thickened Bresenham line between (x0,y0) and
// (x1,y1), deduplicating pixel indices and clipping to width×height.
func rasterize(x0, y0, x1, y1, thicknessPx, width, height int) []int {
	core := bresenham(x0, y0, x1, y1)
	if len(core) == 0 {
		return nil
	}

	halfSpan := (thicknessPx - 1) / 2
	seen := make(map[int]struct{}, len(core)*(2*halfSpan+1))
	var out []int

	dx := float64(x1 - x0)
	dy := float64(y1 - y0)
	length := math.Hypot(dx, dy)
	var perpX, perpY float64
	if length > 1e-9 {
		// Unit vector perpendicular to the line direction.
		perpX, perpY = -dy/length, dx/length
	}

	add := func(px, py int) {
		if px < 0 || py < 0 || px >= width || py >= height {
			return
		}
		idx := py*width + px
		if _, dup := seen[idx]; dup {
			return
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}

	for _, p := range core {
		add(p.x, p.y)
		for off := 1; off <= halfSpan; off++ {
			ox := int(math.Round(perpX * float64(off)))
			oy := int(math.Round(perpY * float64(off)))
			add(p.x+ox, p.y+oy)
			add(p.x-ox, p.y-oy)
		}
	}
	return out
}

type point struct{ x, y int }

// Point is an exported pixel coordinate, for callers outside this
// package that need the unthickened core line (e.g. the low-res
// pyramid-scaled estimate in internal/scoring's multi-resolution score).
type Point struct{ X, Y int }

// BresenhamPoints returns the core Bresenham pixels between two
// endpoints, with no thickening and no caching — used where only a
// cheap, scaled line estimate is needed.
func BresenhamPoints(x0, y0, x1, y1 int) []Point {
	core := bresenham(x0, y0, x1, y1)
	out := make([]Point, len(core))
	for i, p := range core {
		out[i] = Point{X: p.x, Y: p.y}
	}
	return out
}

// bresenham returns the core Bresenham pixels between two endpoints,
// always included regardless of thickness (spec.md §4.5).
func bresenham(x0, y0, x1, y1 int) []point {
	var pts []point
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	x, y := x0, y0
	for {
		pts = append(pts, point{x, y})
		if x == x1 && y == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
	return pts
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
