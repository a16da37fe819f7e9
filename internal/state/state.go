// Package state holds the single mutable progress struct threaded
// through one generation job (spec.md §3). Exactly one goroutine owns a
// *State at a time; it is never shared across jobs and never read
// concurrently with a write, mirroring the teacher's single-owner
// ws.Hub event loop rather than a lock-guarded shared map.
package state

import (
	"github.com/your-org/stringart/internal/faces"
	"github.com/your-org/stringart/internal/pyramid"
	"github.com/your-org/stringart/internal/raster"
)

// State is the full mutable working set for one job (spec.md §3's bullet
// list, field-for-field). N = width*height of the preprocessed target; P
// = pin count.
type State struct {
	Width, Height int

	// ProgressGray is the current monochrome canvas; every element starts
	// at 255 (white) before the first thread is drawn.
	ProgressGray []uint8
	// ProgressRGB is the color canvas, len == 3*N, only populated when
	// ColorMode is color. Starts white (255,255,255) per channel.
	ProgressRGB []uint8

	// Density is accumulated linear-space opacity in [0,1], monotonically
	// non-decreasing under forward composite (spec.md §3 invariant 2).
	Density []float32
	// Overdraw counts how many threads have crossed each pixel.
	Overdraw []uint16

	// EdgeMap, EdgeGradX, EdgeGradY are sized for C3's Sobel outputs
	// (magnitude in [0,255] and unit tangent vectors). New allocates them
	// zeroed; the engine keeps its edge map on its own run struct and
	// never writes these.
	EdgeMap   []uint8
	EdgeGradX []float32
	EdgeGradY []float32

	// Pyramids is a slot for the 1/4 and 1/2 box-filtered mirrors of
	// target and progress (C7). The engine keeps its pyramids in local
	// variables and leaves this nil.
	Pyramids *pyramid.Pair

	// PinUsage counts how many connections touch each pin index, used by
	// pin-fatigue scoring and the LAB-ΔE 0.997^pin_usage decay.
	PinUsage []uint32

	// LineCache memoizes Bresenham rasterization keyed by (min pin, max
	// pin, thickness). It may be discarded at any checkpoint to bound
	// memory (spec.md §3).
	LineCache raster.Cache

	// Masks carries the face/body region masks built once at job start.
	Masks *faces.Masks

	// CurrentPin equals the to_pin of the last connection, or 0 if the
	// connection log is empty (spec.md §3 invariant 4).
	CurrentPin uint32
}

// New allocates a State for an N=width*height canvas and P pins. color
// reports whether ProgressRGB should be allocated.
func New(width, height, pinCount int, color bool) *State {
	n := width * height
	s := &State{
		Width:        width,
		Height:       height,
		ProgressGray: make([]uint8, n),
		Density:      make([]float32, n),
		Overdraw:     make([]uint16, n),
		EdgeMap:      make([]uint8, n),
		EdgeGradX:    make([]float32, n),
		EdgeGradY:    make([]float32, n),
		PinUsage:     make([]uint32, pinCount),
		LineCache:    make(raster.Cache),
	}
	for i := range s.ProgressGray {
		s.ProgressGray[i] = 255
	}
	if color {
		s.ProgressRGB = make([]uint8, 3*n)
		for i := range s.ProgressRGB {
			s.ProgressRGB[i] = 255
		}
	}
	return s
}

// DiscardLineCache drops the memoized rasterizations, as spec.md §3
// allows at any checkpoint to bound memory. The engine does not call it;
// the cache lives for the whole job.
func (s *State) DiscardLineCache() {
	s.LineCache = make(raster.Cache)
}

// RecordConnection updates CurrentPin and PinUsage for one placed
// connection (spec.md §3 invariant 4).
func (s *State) RecordConnection(fromPin, toPin uint32) {
	s.PinUsage[fromPin]++
	s.PinUsage[toPin]++
	s.CurrentPin = toPin
}
