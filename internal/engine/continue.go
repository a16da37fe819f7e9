package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/your-org/stringart/internal/compositor"
	"github.com/your-org/stringart/internal/edges"
	"github.com/your-org/stringart/internal/faces"
	"github.com/your-org/stringart/internal/imaging"
	"github.com/your-org/stringart/internal/models"
	"github.com/your-org/stringart/internal/observability"
	"github.com/your-org/stringart/internal/pyramid"
	"github.com/your-org/stringart/internal/raster"
	"github.com/your-org/stringart/internal/scoring"
	"github.com/your-org/stringart/internal/state"
	"github.com/your-org/stringart/pkg/dto"
)

// runContinue implements spec component C14 / §4.14's continue_generation:
// replay every connection from a previous Result onto fresh state, then
// run one greedy pass for additionalThreads more threads starting from
// wherever the replay left current_pin.
func runContinue(ctx context.Context, previous dto.Result, additionalThreads int, target dto.ContinueTarget, params dto.GenerationParams, j *Job) {
	observability.ActiveJobs.Inc()
	defer observability.ActiveJobs.Dec()
	start := time.Now()
	defer func() {
		observability.GenerationDuration.WithLabelValues(string(params.QualityPreset), string(params.ColorMode)).Observe(time.Since(start).Seconds())
	}()

	r := &run{
		ctx:        ctx,
		job:        j,
		params:     params,
		width:      previous.TargetW,
		height:     previous.TargetH,
		rng:        rand.New(rand.NewSource(1)),
		colorUsage: make([]int, len(scoring.Palette)),
	}

	resolveContinueTarget(r, previous, target)

	masks, err := faces.Build(ctx, activeDetector(), r.targetGray, r.width, r.height)
	if err != nil || !masks.Detected {
		r.warnings = append(r.warnings, "face detection unavailable; using the default centered face box")
	}
	r.masks = masks
	r.policy = backgroundPolicy(params.QualityPreset, params.MinPinSkip)

	r.pinsList = wireToModelPins(previous.Pins)
	r.st = state.New(r.width, r.height, len(r.pinsList), params.ColorMode == dto.ColorModeColor)
	r.st.Masks = masks

	if params.UseEdgeDetect {
		r.edgeMap = edges.Compute(r.targetGray, r.width, r.height)
	}

	replayConnections(r, previous.Connections)

	targetPyramid := pyramid.BuildTargetPair(r.targetGray, r.width, r.height)
	runAdditionalThreads(r, additionalThreads, targetPyramid)

	finishRun(r)
}

// resolveContinueTarget picks the best available source for the LAB/gray
// target the additional threads are scored against, per spec.md §9's
// explicit call-out: prefer the previous Result's persisted preprocessed
// pixels, then a freshly supplied original image, and only as a last
// resort fall back to a flat mid-gray surrogate (decodePreviewAsGray) —
// which is recorded as a warning since it carries no information about
// the true target.
func resolveContinueTarget(r *run, previous dto.Result, target dto.ContinueTarget) {
	if len(previous.TargetGray) > 0 {
		r.targetGray = previous.TargetGray
		r.targetRGB = previous.TargetRGB
		return
	}
	if len(target.OriginalImage) > 0 {
		preprocessed, ok := imaging.Preprocess(target.OriginalImage, imaging.Crop{
			Scale: target.Crop.Scale, OffsetX: target.Crop.OffsetX, OffsetY: target.Crop.OffsetY,
		}, r.width, r.params.ColorMode == dto.ColorModeColor)
		r.width, r.height = preprocessed.Size, preprocessed.Size
		r.targetGray = preprocessed.Gray
		r.targetRGB = preprocessed.RGB
		if !ok {
			r.warnings = append(r.warnings, "continuation image decode failed; using a deterministic fallback gradient")
		}
		return
	}

	r.warnings = append(r.warnings, "no preprocessed target or original image available for continuation; using a flat mid-gray surrogate target")
	r.targetGray = decodePreviewAsGray(previous.Preview, r.width, r.height)
	if r.params.ColorMode == dto.ColorModeColor {
		r.targetRGB = make([]uint8, 3*len(r.targetGray))
		for i, v := range r.targetGray {
			r.targetRGB[3*i], r.targetRGB[3*i+1], r.targetRGB[3*i+2] = v, v, v
		}
	}
}

// decodePreviewAsGray is the final fallback: a flat mid-gray canvas of
// the right dimensions, used only when neither a persisted target nor an
// original image is available. It intentionally does not attempt to
// decode previous.Preview's PNG bytes back into pixels — doing so would
// reintroduce the same compositor rounding loss the preview already
// carries, compounding rather than recovering error — so a neutral flat
// field is the honest "we don't know" target.
func decodePreviewAsGray(_ string, width, height int) []uint8 {
	out := make([]uint8, width*height)
	for i := range out {
		out[i] = 128
	}
	return out
}

func wireToModelPins(wire []dto.Pin) []models.Pin {
	out := make([]models.Pin, len(wire))
	for i, p := range wire {
		out[i] = models.Pin{Index: p.Index, X: p.X, Y: p.Y}
	}
	return out
}

// replayConnections rasterizes and forward-composites every prior
// connection in order, exactly reproducing the canvas state
// continue_generation resumes from (spec.md §4.14).
func replayConnections(r *run, conns []dto.ThreadConnection) {
	thicknessPx := raster.ThreadWidthPx(r.params.ThreadWidth)
	opacity := r.params.ThreadOpacity
	for _, c := range conns {
		from := r.pinsList[c.FromPin]
		to := r.pinsList[c.ToPin]
		pixels := raster.Line(r.st.LineCache, from, to, thicknessPx, r.width, r.height)
		if r.params.ColorMode == dto.ColorModeColor {
			color := paletteColorFor(c.ColorHex)
			for _, px := range pixels {
				compositor.ForwardColor(r.st.ProgressRGB, r.st.Density, r.st.Overdraw, px, color, opacity)
			}
			colorIdx := paletteIndexFor(c.ColorHex)
			if colorIdx >= 0 {
				r.colorUsage[colorIdx]++
			}
		} else {
			for _, px := range pixels {
				compositor.ForwardGray(r.st.ProgressGray, r.st.Density, r.st.Overdraw, px, opacity)
			}
		}
		r.st.RecordConnection(c.FromPin, c.ToPin)
		r.connections = append(r.connections, models.ThreadConnection{FromPin: c.FromPin, ToPin: c.ToPin, ColorHex: c.ColorHex, ColorName: c.ColorName})
	}
}

func paletteColorFor(hex string) compositor.ThreadColor {
	for _, p := range scoring.Palette {
		if p.Hex == hex {
			return p.Linear
		}
	}
	return scoring.Palette[0].Linear
}

func paletteIndexFor(hex string) int {
	for i, p := range scoring.Palette {
		if p.Hex == hex {
			return i
		}
	}
	return -1
}

// runAdditionalThreads runs one uniform-opacity greedy pass for
// additionalThreads more threads, continuing from current_pin
// (spec.md §4.14: "a single greedy pass, not a new stage sequence").
func runAdditionalThreads(r *run, additionalThreads int, targetPyramid pyramid.Pair) {
	progressPyramid := refreshProgressTimed(r)
	opacity := r.params.ThreadOpacity
	checkpoint := max1(additionalThreads / 100)
	placed := 0

	for t := 0; t < additionalThreads; t++ {
		select {
		case <-r.ctx.Done():
			return
		default:
		}
		if placeOneThread(r, r.policy, opacity, &progressPyramid, targetPyramid, false, 1.0) {
			placed++
			if placed%checkpoint == 0 {
				progressPyramid = refreshProgressTimed(r)
				emitProgress(r, placed, additionalThreads, "continue")
			}
		}
	}
	emitProgress(r, placed, additionalThreads, "done")
}
