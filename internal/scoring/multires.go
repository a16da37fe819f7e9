// multires.go implements the multi-resolution score (spec component C9,
// §4.9.b): a weighted combination of cheap low/mid-resolution MSE
// estimates and the full perceptual score, with an early-reject sentinel
// when the low-res estimate already looks bad.
package scoring

import (
	"github.com/your-org/stringart/internal/compositor"
	"github.com/your-org/stringart/internal/pyramid"
	"github.com/your-org/stringart/internal/raster"
)

// RejectSentinel is returned by MultiResScore when the low-res estimate
// falls below -10, signalling the caller to reject the line before
// paying for the mid/full computation (spec.md §4.9.b).
const RejectSentinel = -1e6

// lowResRejectThreshold is the spec.md §4.9.b cutoff on the low-res
// contribution alone.
const lowResRejectThreshold = -10

// MultiResScore combines the 1/4-scale ("low"), 1/2-scale ("mid"), and
// full-resolution perceptual estimates. ax,ay,bx,by are the candidate
// line's full-resolution endpoint coordinates; fullWidth/fullHeight are
// the full-resolution canvas dimensions, used to scale endpoints down to
// each pyramid level.
func MultiResScore(targetPair, progressPair pyramid.Pair, ax, ay, bx, by, fullWidth, fullHeight int, alpha float64, perceptual float64) float64 {
	low := lowResMSEEstimate(targetPair.Low, progressPair.Low, ax, ay, bx, by, fullWidth, fullHeight, alpha)
	if low < lowResRejectThreshold {
		return RejectSentinel
	}
	mid := lowResMSEEstimate(targetPair.Mid, progressPair.Mid, ax, ay, bx, by, fullWidth, fullHeight, alpha)
	return 0.2*low + 0.3*mid + 0.5*perceptual
}

// lowResMSEEstimate simulates the forward composite along the
// scaled-down Bresenham line at one pyramid level and sums MSE
// improvement only (spec.md §4.9.b: "cheap simulated blend ... sums MSE
// improvement only").
func lowResMSEEstimate(target, progress pyramid.Level, ax, ay, bx, by, fullWidth, fullHeight int, alpha float64) float64 {
	if target.Width == 0 || target.Height == 0 {
		return 0
	}
	scaleX := float64(target.Width) / float64(fullWidth)
	scaleY := float64(target.Height) / float64(fullHeight)

	sx0 := int(float64(ax) * scaleX)
	sy0 := int(float64(ay) * scaleY)
	sx1 := int(float64(bx) * scaleX)
	sy1 := int(float64(by) * scaleY)

	pts := raster.BresenhamPoints(sx0, sy0, sx1, sy1)
	var total float64
	for _, p := range pts {
		if p.X < 0 || p.Y < 0 || p.X >= target.Width || p.Y >= target.Height {
			continue
		}
		idx := p.Y*target.Width + p.X
		t := float64(target.Gray[idx])
		c := float64(progress.Gray[idx])
		newVal := float64(compositor.SimulateForwardGray(progress.Gray[idx], alpha))
		total += (t-c)*(t-c) - (t-newVal)*(t-newVal)
	}
	if len(pts) > 0 {
		total /= float64(len(pts))
	}
	return total
}
