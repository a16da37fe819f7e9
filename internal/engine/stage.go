package engine

import (
	"context"
	"math"
	"math/rand"

	"time"

	"github.com/your-org/stringart/internal/candidates"
	"github.com/your-org/stringart/internal/compositor"
	"github.com/your-org/stringart/internal/edges"
	"github.com/your-org/stringart/internal/faces"
	"github.com/your-org/stringart/internal/imaging"
	"github.com/your-org/stringart/internal/models"
	"github.com/your-org/stringart/internal/observability"
	"github.com/your-org/stringart/internal/pins"
	"github.com/your-org/stringart/internal/pyramid"
	"github.com/your-org/stringart/internal/raster"
	"github.com/your-org/stringart/internal/scoring"
	"github.com/your-org/stringart/internal/state"
	"github.com/your-org/stringart/pkg/dto"
)

// run bundles the static, job-lifetime context the driver, refinement,
// annealing, and assembler stages all share: the preprocessed target,
// the pin layout, the edge map, the face masks, and the mutable state.
type run struct {
	ctx    context.Context
	job    *Job
	params dto.GenerationParams

	width, height int
	targetGray    []uint8
	targetRGB     []uint8

	pinsList []models.Pin
	edgeMap  *edges.Map
	masks    *faces.Masks
	policy   faces.Policy

	st  *state.State
	rng *rand.Rand

	warnings []string

	connections []models.ThreadConnection
	// colorUsage counts per-palette-index thread placements, for
	// color_imbalance in the LAB scorer.
	colorUsage []int
}

func runGenerate(ctx context.Context, imageBytes []byte, params dto.GenerationParams, j *Job) {
	observability.ActiveJobs.Inc()
	defer observability.ActiveJobs.Dec()
	start := time.Now()
	defer func() {
		observability.GenerationDuration.WithLabelValues(string(params.QualityPreset), string(params.ColorMode)).Observe(time.Since(start).Seconds())
	}()

	target, ok := imaging.Preprocess(imageBytes, imaging.Crop{
		Scale: params.ImageCrop.Scale, OffsetX: params.ImageCrop.OffsetX, OffsetY: params.ImageCrop.OffsetY,
	}, params.FrameSize, params.ColorMode == dto.ColorModeColor)

	r := &run{
		ctx:        ctx,
		job:        j,
		params:     params,
		width:      target.Size,
		height:     target.Size,
		targetGray: target.Gray,
		targetRGB:  target.RGB,
		rng:        rand.New(rand.NewSource(1)),
		colorUsage: make([]int, len(scoring.Palette)),
	}
	if !ok {
		r.warnings = append(r.warnings, "image decode failed; using a deterministic fallback gradient")
	}

	masks, err := faces.Build(ctx, activeDetector(), r.targetGray, r.width, r.height)
	if err != nil || !masks.Detected {
		r.warnings = append(r.warnings, "face detection unavailable; using the default centered face box")
	}
	r.masks = masks
	r.policy = backgroundPolicy(params.QualityPreset, params.MinPinSkip)

	var faceBoxPtr *faces.Box
	if params.FrameType == dto.FrameCircular && masks.Detected {
		fb := masks.FaceBox
		faceBoxPtr = &fb
	}
	r.pinsList = pins.Place(pins.FrameType(params.FrameType), r.width, r.height, params.PinCount, faceBoxPtr)

	if params.UseEdgeDetect {
		r.edgeMap = edges.Compute(r.targetGray, r.width, r.height)
	}

	r.st = state.New(r.width, r.height, len(r.pinsList), params.ColorMode == dto.ColorModeColor)
	r.st.Masks = masks

	targetPyramid := pyramid.BuildTargetPair(r.targetGray, r.width, r.height)

	driveStages(r, targetPyramid)
	if r.ctx.Err() == nil && r.masks.Detected {
		runFaceRefinementPass(r, targetPyramid)
	}

	if r.ctx.Err() == nil && params.ColorMode == dto.ColorModeMonochrome {
		runLocalRefinement(r)
		if params.UseAnnealing {
			runAnnealing(r)
			runBacktracking(r)
		}
		if params.QualityPreset == dto.QualityHigh {
			runGenetic(r)
		}
	}

	finishRun(r)
}

// driveStages runs spec.md §4.10's stage table (or the single uniform
// pass) to completion or until cancellation.
func driveStages(r *run, targetPyramid pyramid.Pair) {
	stages := stagesFor(r.params)
	totalThreads := r.params.MaxThreads
	pyramidCheckpoint := max1(totalThreads / 150)
	previewCheckpoint := max1(totalThreads / 100)

	placed := 0
	progressPyramid := pyramid.BuildTargetPair(r.st.ProgressGray, r.width, r.height)

	for _, s := range stages {
		stageThreads := int(math.Round(s.ThreadShare * float64(totalThreads)))
		seedSkip := minSkipSeed(s, r.policy.BackgroundMinSkip, r.params.PinCount)
		stagePolicy := faces.Policy{BackgroundMinSkip: seedSkip, MinPinSkip: r.params.MinPinSkip}
		opacity := stageOpacity(s, r.params.ThreadOpacity)

		for t := 0; t < stageThreads; t++ {
			select {
			case <-r.ctx.Done():
				return
			default:
			}

			placedOne := placeOneThread(r, stagePolicy, opacity, &progressPyramid, targetPyramid, false, 1.0)
			if !placedOne {
				continue
			}
			placed++

			if placed%pyramidCheckpoint == 0 {
				progressPyramid = refreshProgressTimed(r)
			}
			if placed%previewCheckpoint == 0 {
				emitProgress(r, placed, totalThreads, s.Label)
			}
		}
		progressPyramid = refreshProgressTimed(r)
	}
	emitProgress(r, placed, totalThreads, "done")
}

// runFaceRefinementPass implements spec.md §4.10's post-stage face bias:
// min(2000, 0.2N) additional threads at 0.7x opacity, where a candidate
// whose rasterized pixels overlap the face mask by at least
// faces.FaceRelevantOverlap (5%) gets a 1.5x score boost. The position of
// the line's midpoint is not examined.
func runFaceRefinementPass(r *run, targetPyramid pyramid.Pair) {
	n := int(math.Min(2000, 0.2*float64(r.params.MaxThreads)))
	if n < 1 {
		return
	}
	progressPyramid := refreshProgressTimed(r)
	opacity := r.params.ThreadOpacity * 0.7

	for i := 0; i < n; i++ {
		select {
		case <-r.ctx.Done():
			return
		default:
		}
		placeOneThread(r, r.policy, opacity, &progressPyramid, targetPyramid, true, 1.5)
	}
	emitProgress(r, len(r.connections), r.params.MaxThreads, "face_refinement")
}

// placeOneThread generates candidates from the current pin, scores them,
// applies the best, and records the connection. It returns false when no
// candidate could be placed (spec.md §7 category 5: skip and advance,
// never deadlock).
func placeOneThread(r *run, policy faces.Policy, opacity float64, progressPyramid *pyramid.Pair, targetPyramid pyramid.Pair, faceBiased bool, faceBoost float64) bool {
	fromIdx := r.st.CurrentPin
	from := r.pinsList[fromIdx]
	kEdge, kRand := candidateK(r.params.QualityPreset)
	candIdx := candidates.Generate(r.pinsList, from, r.edgeMap, r.masks, candidates.Params{KEdge: kEdge, KRand: kRand, Policy: policy}, r.rng)
	if len(candIdx) == 0 {
		return false
	}

	thicknessPx := raster.ThreadWidthPx(r.params.ThreadWidth)

	if r.params.ColorMode == dto.ColorModeColor {
		return placeColorThread(r, from, candIdx, thicknessPx, opacity, faceBiased, faceBoost)
	}
	return placeMonoThread(r, from, candIdx, thicknessPx, opacity, progressPyramid, targetPyramid, faceBiased, faceBoost)
}

func placeMonoThread(r *run, from models.Pin, candIdx []uint32, thicknessPx int, opacity float64, progressPyramid *pyramid.Pair, targetPyramid pyramid.Pair, faceBiased bool, faceBoost float64) bool {
	type candResult struct {
		to     models.Pin
		pixels []int
	}
	results := make([]candResult, len(candIdx))
	for i, idx := range candIdx {
		to := r.pinsList[idx]
		pixels := raster.Line(r.st.LineCache, from, to, thicknessPx, r.width, r.height)
		results[i] = candResult{to: to, pixels: pixels}
	}

	scoreStart := time.Now()
	scores := scoreConcurrently(len(results), func(i int) float64 {
		res := results[i]
		overlap := faces.LineFaceOverlap(r.masks, res.pixels)
		meanFaceDensity := meanDensityOver(r.st.Density, res.pixels, r.masks)
		alignment := 0.0
		if r.edgeMap != nil {
			alignment = lineEdgeAlignment(res.pixels, r.edgeMap)
		}
		perceptual := scoring.PerceptualLineScore(scoring.PerceptualInput{
			Pixels: res.pixels, Target: r.targetGray, Current: r.st.ProgressGray,
			Density: r.st.Density, Overdraw: r.st.Overdraw, EdgeMap: r.edgeMap, Alpha: opacity,
			EdgeAlignment: alignment, Width: r.width, Height: r.height, Masks: r.masks,
			UsePinFatigue: r.params.UsePinFatigue,
			FromUsage:     r.st.PinUsage[from.Index], ToUsage: r.st.PinUsage[res.to.Index],
			FaceOverlap: overlap, MeanFaceDensity: meanFaceDensity,
		})
		total := scoring.MultiResScore(targetPyramid, *progressPyramid, int(from.X), int(from.Y), int(res.to.X), int(res.to.Y), r.width, r.height, opacity, perceptual)
		if faceBiased && overlap >= faces.FaceRelevantOverlap {
			total *= faceBoost
		}
		return total
	})
	observability.CandidateScoreDuration.WithLabelValues("mono").Observe(time.Since(scoreStart).Seconds())

	bestIdx := argmax(scores)
	if bestIdx < 0 {
		return false
	}
	best := results[bestIdx]
	for _, idx := range best.pixels {
		compositor.ForwardGray(r.st.ProgressGray, r.st.Density, r.st.Overdraw, idx, opacity)
	}
	r.st.RecordConnection(from.Index, best.to.Index)
	r.connections = append(r.connections, models.ThreadConnection{FromPin: from.Index, ToPin: best.to.Index, ColorHex: "#000000", ColorName: "black"})
	observability.ThreadsPlaced.WithLabelValues(string(r.params.QualityPreset)).Inc()
	return true
}

func placeColorThread(r *run, from models.Pin, candIdx []uint32, thicknessPx int, opacity float64, faceBiased bool, faceBoost float64) bool {
	type option struct {
		to     models.Pin
		pixels []int
		color  int
	}
	var options []option
	for _, idx := range candIdx {
		to := r.pinsList[idx]
		pixels := raster.Line(r.st.LineCache, from, to, thicknessPx, r.width, r.height)
		for ci := range scoring.Palette {
			options = append(options, option{to: to, pixels: pixels, color: ci})
		}
	}

	totalPlaced := len(r.connections)
	scoreStart := time.Now()
	scores := scoreConcurrently(len(options), func(i int) float64 {
		opt := options[i]
		overlap := faces.LineFaceOverlap(r.masks, opt.pixels)
		meanFaceDensity := meanDensityOver(r.st.Density, opt.pixels, r.masks)
		expected := float64(totalPlaced) / float64(len(scoring.Palette))
		score := scoring.LABLineScore(scoring.LABScoreInput{
			Pixels: opt.pixels, TargetRGB: r.targetRGB, CurrentRGB: r.st.ProgressRGB,
			Density: r.st.Density, Overdraw: r.st.Overdraw, EdgeMap: r.edgeMap, Alpha: opacity, Color: scoring.Palette[opt.color],
			Width: r.width, Masks: r.masks,
			UsageOfThisColor: r.colorUsage[opt.color], ExpectedPerColor: expected,
			PinUsageTo: r.st.PinUsage[opt.to.Index], FaceOverlap: overlap, MeanFaceDensity: meanFaceDensity,
		})
		if faceBiased && overlap >= faces.FaceRelevantOverlap {
			score *= faceBoost
		}
		return score
	})
	observability.CandidateScoreDuration.WithLabelValues("color").Observe(time.Since(scoreStart).Seconds())

	bestIdx := argmax(scores)
	if bestIdx < 0 {
		return false
	}
	best := options[bestIdx]
	color := scoring.Palette[best.color]
	for _, idx := range best.pixels {
		compositor.ForwardColor(r.st.ProgressRGB, r.st.Density, r.st.Overdraw, idx, color.Linear, opacity)
	}
	r.st.RecordConnection(from.Index, best.to.Index)
	r.colorUsage[best.color]++
	r.connections = append(r.connections, models.ThreadConnection{FromPin: from.Index, ToPin: best.to.Index, ColorHex: color.Hex, ColorName: color.Name})
	observability.ThreadsPlaced.WithLabelValues(string(r.params.QualityPreset)).Inc()
	return true
}

func lineEdgeAlignment(pixels []int, em *edges.Map) float64 {
	if len(pixels) < 2 || em == nil {
		return 0
	}
	x0, y0 := pixels[0]%em.Width, pixels[0]/em.Width
	last := pixels[len(pixels)-1]
	x1, y1 := last%em.Width, last/em.Width
	dx, dy := float64(x1-x0), float64(y1-y0)
	length := math.Hypot(dx, dy)
	if length < 1e-9 {
		return 0
	}
	dirX, dirY := dx/length, dy/length
	var total float64
	for _, idx := range pixels {
		total += math.Abs(float64(em.TangentX[idx])*dirX + float64(em.TangentY[idx])*dirY)
	}
	return total / float64(len(pixels))
}

func meanDensityOver(density []float32, pixels []int, masks *faces.Masks) float64 {
	if masks == nil || len(pixels) == 0 {
		return 0
	}
	var sum float64
	count := 0
	for _, idx := range pixels {
		if idx >= 0 && idx < len(masks.Face) && masks.Face[idx] {
			sum += float64(density[idx])
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func emitProgress(r *run, current, total int, label string) {
	snap := dto.ProgressSnapshot{CurrentThread: current, TotalThreads: total, StageLabel: label}
	if len(r.warnings) > 0 {
		w := r.warnings[len(r.warnings)-1]
		snap.Warning = &w
	}
	select {
	case r.job.progress <- snap:
	case <-r.ctx.Done():
	default:
		// Progress channel full: drop this snapshot rather than block the
		// driver (spec.md §5 cadence is a minimum, not a delivery
		// guarantee against a slow consumer).
	}
}

func refreshProgressTimed(r *run) pyramid.Pair {
	start := time.Now()
	p := pyramid.RefreshProgress(r.st.ProgressGray, r.width, r.height)
	observability.PyramidRefreshDuration.Observe(time.Since(start).Seconds())
	return p
}

func argmax(scores []float64) int {
	best := -1
	bestScore := math.Inf(-1)
	for i, s := range scores {
		if s > bestScore {
			bestScore = s
			best = i
		}
	}
	return best
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
