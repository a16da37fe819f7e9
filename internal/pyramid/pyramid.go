// Package pyramid maintains the multi-resolution mirrors the stage
// driver and scorers use for cheap multi-scale comparison (spec
// component C7): 1/2 and 1/4 scale box-filtered downsamples of both the
// target and the progress canvas, computed in linear light. Row-parallel
// construction mirrors this module's teacher pack's own perceptual-diff
// metric, which fans row work out across goroutines with a
// sync.WaitGroup rather than a worker pool.
package pyramid

import (
	"math"
	"sync"
)

// Level is one box-filtered mirror at a given scale.
type Level struct {
	Width, Height int
	Gray          []uint8 // gamma-encoded, same representation as the full-res canvas
}

// Pair holds both the 1/2 and 1/4 mirrors for one image (target or
// progress), per spec.md §3's `low_*, mid_*` naming (`low` = 1/4, `mid` =
// 1/2).
type Pair struct {
	Low Level // 1/4 scale
	Mid Level // 1/2 scale
}

// BuildTargetPair builds the target's pyramid once at job start; target
// mirrors never change afterward (spec.md §4.7).
func BuildTargetPair(gray []uint8, width, height int) Pair {
	return Pair{
		Low: downsample(gray, width, height, 4),
		Mid: downsample(gray, width, height, 2),
	}
}

// RefreshProgress recomputes the progress pyramid from the current
// progress canvas. The stage driver calls this every `max_threads/150`
// threads and at the end of each stage (spec.md §4.7).
func RefreshProgress(gray []uint8, width, height int) Pair {
	return BuildTargetPair(gray, width, height)
}

// downsample box-filters gray (width×height, gamma-encoded) down by
// factor in each dimension, averaging in linear light to avoid the
// darker-than-truth bias a naive gamma-space average would introduce
// (spec.md §4.7).
func downsample(gray []uint8, width, height, factor int) Level {
	outW := max(1, width/factor)
	outH := max(1, height/factor)
	out := make([]uint8, outW*outH)

	var wg sync.WaitGroup
	for oy := 0; oy < outH; oy++ {
		wg.Add(1)
		go func(oy int) {
			defer wg.Done()
			y0 := oy * factor
			y1 := min(y0+factor, height)
			for ox := 0; ox < outW; ox++ {
				x0 := ox * factor
				x1 := min(x0+factor, width)

				var sum float64
				count := 0
				for y := y0; y < y1; y++ {
					row := y * width
					for x := x0; x < x1; x++ {
						sum += toLinear(gray[row+x])
						count++
					}
				}
				var avg float64
				if count > 0 {
					avg = sum / float64(count)
				}
				out[oy*outW+ox] = fromLinear(avg)
			}
		}(oy)
	}
	wg.Wait()

	return Level{Width: outW, Height: outH, Gray: out}
}

const gamma = 2.2

func toLinear(v uint8) float64 {
	return math.Pow(float64(v)/255, gamma)
}

func fromLinear(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(math.Round(math.Pow(v, 1/gamma) * 255))
}
