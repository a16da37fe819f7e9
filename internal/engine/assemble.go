package engine

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"math"
	"time"

	"github.com/your-org/stringart/internal/compositor"
	"github.com/your-org/stringart/internal/models"
	"github.com/your-org/stringart/internal/raster"
	"github.com/your-org/stringart/internal/scoring"
	"github.com/your-org/stringart/pkg/dto"

	"github.com/google/uuid"
)

// maxMSE normalizes MSE in spec.md §4.13's similarity_pct formula: the
// maximum possible 8-bit squared error (255^2 = 65025).
const maxMSE = 65025.0

// finishRun implements spec component C13: compute final accuracy
// metrics, per-color thread tallies, render the preview bitmap, and
// deliver the assembled dto.Result on the job's result channel.
func finishRun(r *run) {
	if r.ctx.Err() != nil && !r.params.ReturnPartialOnCancel {
		r.job.result <- ResultOrError{Err: ErrCancelled{}}
		close(r.job.progress)
		return
	}

	mse, ssim := finalAccuracy(r)
	similarity := clamp(0.6*(1-mse/maxMSE)*100+0.4*ssim*100, 0, 100)

	preview := renderPreview(r)

	result := &dto.Result{
		ID:            uuid.New(),
		Pins:          wirePins(r.pinsList),
		Connections:   wireConnections(r.connections),
		TotalThreads:  len(r.connections),
		Params:        r.params,
		CreatedAt:     dto.NewCreatedAt(timeNow()),
		Preview:       base64.StdEncoding.EncodeToString(preview),
		ThreadColors:  threadColorSummary(r),
		AccuracyScore: similarity,
		MSE:           mse,
		SSIM:          ssim,
		Warnings:      r.warnings,
		TargetGray:    r.targetGray,
		TargetRGB:     r.targetRGB,
		TargetW:       r.width,
		TargetH:       r.height,
	}

	r.job.result <- ResultOrError{Result: result}
	close(r.job.progress)
}

// timeNow is the one clock read in the assembler, isolated so tests can
// substitute a fixed instant without touching the rest of the pipeline.
func timeNow() time.Time { return time.Now() }

// finalAccuracy computes MSE and global SSIM of the finished canvas
// against the preprocessed target. In color mode both the target and the
// canvas are reduced to a single luma channel first, since the comparison
// spec.md §4.13 describes is inherently monochrome.
func finalAccuracy(r *run) (mse, ssim float64) {
	target := r.targetGray
	progress := r.st.ProgressGray
	if r.params.ColorMode == dto.ColorModeColor {
		target = lumaOf(r.targetRGB)
		progress = lumaOf(r.st.ProgressRGB)
	}

	var sum float64
	for i, t := range target {
		d := float64(t) - float64(progress[i])
		sum += d * d
	}
	if len(target) > 0 {
		mse = sum / float64(len(target))
	}

	targetF := make([]float64, len(target))
	progressF := make([]float64, len(progress))
	for i, v := range target {
		targetF[i] = float64(v)
	}
	for i, v := range progress {
		progressF[i] = float64(v)
	}
	ssim = scoring.GlobalSSIM(targetF, progressF)
	return mse, ssim
}

func lumaOf(rgb []uint8) []uint8 {
	n := len(rgb) / 3
	out := make([]uint8, n)
	for i := 0; i < n; i++ {
		base := 3 * i
		l := 0.299*float64(rgb[base]) + 0.587*float64(rgb[base+1]) + 0.114*float64(rgb[base+2])
		out[i] = uint8(math.Round(l))
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func wirePins(pins []models.Pin) []dto.Pin {
	out := make([]dto.Pin, len(pins))
	for i, p := range pins {
		out[i] = dto.Pin{Index: p.Index, X: p.X, Y: p.Y}
	}
	return out
}

func wireConnections(conns []models.ThreadConnection) []dto.ThreadConnection {
	out := make([]dto.ThreadConnection, len(conns))
	for i, c := range conns {
		out[i] = dto.ThreadConnection{FromPin: c.FromPin, ToPin: c.ToPin, ColorHex: c.ColorHex, ColorName: c.ColorName}
	}
	return out
}

// threadColorSummary tallies per-color connection counts and percentages
// (spec.md §4.13, §8 P5). Monochrome results report a single "black"
// entry covering every connection.
func threadColorSummary(r *run) []dto.ThreadColor {
	counts := make(map[string]*dto.ThreadColor)
	var order []string
	for _, c := range r.connections {
		entry, ok := counts[c.ColorHex]
		if !ok {
			entry = &dto.ThreadColor{ColorHex: c.ColorHex, ColorName: c.ColorName}
			counts[c.ColorHex] = entry
			order = append(order, c.ColorHex)
		}
		entry.Count++
	}
	total := len(r.connections)
	out := make([]dto.ThreadColor, 0, len(order))
	for _, hex := range order {
		entry := counts[hex]
		if total > 0 {
			entry.Percentage = 100 * float64(entry.Count) / float64(total)
		}
		out = append(out, *entry)
	}
	return out
}

// renderPreview encodes the final canvas as PNG bytes, following this
// module's teacher pack's own PNGEncoder (best-compression, stdlib
// image/png). Monochrome results encode the progress canvas directly, as
// it stands after every pass; threads from the face refinement pass sit
// on it at 0.7x ThreadOpacity, and a fast or balanced run is not rebuilt
// at uniform opacity. Color mode's live canvas is not encoded: the
// three-stage driver blends each stage at its own opacity multiplier
// (policy.go), so the preview instead replays every
// connection from a fresh white canvas at uniform ThreadOpacity
// (spec.md §4.13), matching the replay already used by continuation.
func renderPreview(r *run) []byte {
	if r.params.ColorMode == dto.ColorModeColor {
		return encodePNG(renderColorPreview(r))
	}
	img := image.NewGray(image.Rect(0, 0, r.width, r.height))
	for i := 0; i < r.width*r.height; i++ {
		img.Pix[i] = r.st.ProgressGray[i]
	}
	return encodePNG(img)
}

// renderColorPreview replays r.connections onto scratch canvas buffers
// (never the job's live state) at uniform ThreadOpacity, the same
// replay shape runContinue's replayConnections uses to resume a prior
// result, but writing into throwaway buffers instead of r.st.
func renderColorPreview(r *run) image.Image {
	n := r.width * r.height
	scratchRGB := make([]uint8, 3*n)
	for i := range scratchRGB {
		scratchRGB[i] = 255
	}
	density := make([]float32, n)
	overdraw := make([]uint16, n)

	thicknessPx := raster.ThreadWidthPx(r.params.ThreadWidth)
	opacity := r.params.ThreadOpacity
	for _, c := range r.connections {
		from := r.pinsList[c.FromPin]
		to := r.pinsList[c.ToPin]
		pixels := raster.Line(r.st.LineCache, from, to, thicknessPx, r.width, r.height)
		color := paletteColorFor(c.ColorHex)
		for _, px := range pixels {
			compositor.ForwardColor(scratchRGB, density, overdraw, px, color, opacity)
		}
	}

	rgbImg := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	for i := 0; i < n; i++ {
		base := 3 * i
		rgbImg.Pix[4*i] = scratchRGB[base]
		rgbImg.Pix[4*i+1] = scratchRGB[base+1]
		rgbImg.Pix[4*i+2] = scratchRGB[base+2]
		rgbImg.Pix[4*i+3] = 255
	}
	return rgbImg
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	buf.Grow(256 * 1024)
	enc := &png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
