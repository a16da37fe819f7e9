// Package imaging implements the image preprocessor (spec component C1):
// decode, cover-fit crop+resize, grayscale+contrast, and an optional
// color-preserving pass. Resampling follows the bilinear/Lanczos
// resampler this module's teacher pack uses for its own image-editing
// pipeline, generalized from a CLI filter step into a fixed-size
// cover-fit.
package imaging

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxEdge is the spec.md §4.1 ceiling on the preprocessed edge size
// (`T = min(frame_size, 512)`).
const MaxEdge = 512

// Crop is the crop descriptor from spec.md §4.1.
type Crop struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// Target is the output of Preprocess: a grayscale PixelImage of size T×T
// and, in color mode, an RGB image of the same size.
type Target struct {
	Size int
	Gray []uint8   // len == Size*Size
	RGB  []uint8   // len == 3*Size*Size, nil unless color requested
}

// Preprocess runs the full C1 pipeline. frameSize is the caller's
// requested frame size; the edge T is clamped to MaxEdge. Malformed
// image bytes never surface as an error here: they produce a
// deterministic fallback gradient instead (spec.md §4.1), and ok reports
// which path was taken so the caller can log a warning.
func Preprocess(imageBytes []byte, crop Crop, frameSize int, wantColor bool) (target *Target, ok bool) {
	edge := frameSize
	if edge > MaxEdge {
		edge = MaxEdge
	}
	if edge < 1 {
		edge = 1
	}

	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil || img == nil {
		return fallbackTarget(edge, wantColor), false
	}

	cropped := coverCropRect(img.Bounds(), crop)
	rgb := resizeCoverRGB(img, cropped, edge, edge)

	t := &Target{Size: edge}
	if wantColor {
		t.RGB = rgb
	}
	t.Gray = grayscaleContrast(rgb, edge, edge)
	return t, true
}

// coverCropRect computes the inner crop rectangle per spec.md §4.1: side
// = min(W,H)/scale, centered at (W/2 + offsetX*(W-side)/2, H/2 +
// offsetY*(H-side)/2), clamped to image bounds.
func coverCropRect(bounds image.Rectangle, crop Crop) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	scale := crop.Scale
	if scale < 1 {
		scale = 1
	}
	side := math.Min(w, h) / scale

	cx := w/2 + crop.OffsetX*(w-side)/2
	cy := h/2 + crop.OffsetY*(h-side)/2

	x0 := cx - side/2
	y0 := cy - side/2
	x1 := x0 + side
	y1 := y0 + side

	if x0 < 0 {
		x1 -= x0
		x0 = 0
	}
	if y0 < 0 {
		y1 -= y0
		y0 = 0
	}
	if x1 > w {
		x0 -= x1 - w
		x1 = w
	}
	if y1 > h {
		y0 -= y1 - h
		y1 = h
	}
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}

	minX := bounds.Min.X + int(math.Round(x0))
	minY := bounds.Min.Y + int(math.Round(y0))
	maxX := bounds.Min.X + int(math.Round(x1))
	maxY := bounds.Min.Y + int(math.Round(y1))
	r := image.Rect(minX, minY, maxX, maxY)
	return r.Intersect(bounds)
}

// resizeCoverRGB resamples the crop rectangle of src to outW×outH using
// bilinear interpolation, returning interleaved 8-bit RGB.
func resizeCoverRGB(src image.Image, crop image.Rectangle, outW, outH int) []uint8 {
	out := make([]uint8, 3*outW*outH)
	srcW := crop.Dx()
	srcH := crop.Dy()
	if srcW <= 0 || srcH <= 0 {
		return out
	}

	for y := 0; y < outH; y++ {
		sy := (float64(y)+0.5)*float64(srcH)/float64(outH) - 0.5
		for x := 0; x < outW; x++ {
			sx := (float64(x)+0.5)*float64(srcW)/float64(outW) - 0.5
			r, g, b := sampleBilinear(src, crop, sx, sy)
			idx := 3 * (y*outW + x)
			out[idx] = r
			out[idx+1] = g
			out[idx+2] = b
		}
	}
	return out
}

// sampleBilinear samples src (offset by crop.Min, bounded by crop) at
// fractional coordinates (fx,fy) relative to crop's top-left corner.
func sampleBilinear(src image.Image, crop image.Rectangle, fx, fy float64) (r, g, b uint8) {
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	get := func(ix, iy int) (float64, float64, float64) {
		if ix < 0 {
			ix = 0
		}
		if iy < 0 {
			iy = 0
		}
		if ix >= crop.Dx() {
			ix = crop.Dx() - 1
		}
		if iy >= crop.Dy() {
			iy = crop.Dy() - 1
		}
		cr, cg, cb, _ := src.At(crop.Min.X+ix, crop.Min.Y+iy).RGBA()
		return float64(cr >> 8), float64(cg >> 8), float64(cb >> 8)
	}

	r00, g00, b00 := get(x0, y0)
	r10, g10, b10 := get(x0+1, y0)
	r01, g01, b01 := get(x0, y0+1)
	r11, g11, b11 := get(x0+1, y0+1)

	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }
	rTop, rBot := lerp(r00, r10, tx), lerp(r01, r11, tx)
	gTop, gBot := lerp(g00, g10, tx), lerp(g01, g11, tx)
	bTop, bBot := lerp(b00, b10, tx), lerp(b01, b11, tx)

	rf := lerp(rTop, rBot, ty)
	gf := lerp(gTop, gBot, ty)
	bf := lerp(bTop, bBot, ty)
	return clamp8(rf), clamp8(gf), clamp8(bf)
}

// grayscaleContrast converts interleaved RGB to luminance, histogram
// stretches it to the full [0,255] range, then applies the linear
// contrast curve v' = clamp(1.3v - 30) from spec.md §4.1.
func grayscaleContrast(rgb []uint8, w, h int) []uint8 {
	n := w * h
	gray := make([]float64, n)
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i++ {
		r := float64(rgb[3*i])
		g := float64(rgb[3*i+1])
		b := float64(rgb[3*i+2])
		// ITU-R BT.601 luma.
		v := 0.299*r + 0.587*g + 0.114*b
		gray[i] = v
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	out := make([]uint8, n)
	span := hi - lo
	for i, v := range gray {
		var stretched float64
		if span > 1e-9 {
			stretched = (v - lo) / span * 255
		} else {
			stretched = v
		}
		contrasted := 1.3*stretched - 30
		out[i] = clamp8(contrasted)
	}
	return out
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// fallbackTarget produces the deterministic gradient used when image
// decoding fails (spec.md §4.1): a diagonal ramp, so downstream code
// always has well-formed, non-degenerate pixels to operate on.
func fallbackTarget(edge int, wantColor bool) *Target {
	t := &Target{Size: edge, Gray: make([]uint8, edge*edge)}
	if wantColor {
		t.RGB = make([]uint8, 3*edge*edge)
	}
	denom := float64(2 * (edge - 1))
	if edge <= 1 {
		denom = 1
	}
	for y := 0; y < edge; y++ {
		for x := 0; x < edge; x++ {
			v := clamp8(float64(x+y) / denom * 255)
			idx := y*edge + x
			t.Gray[idx] = v
			if wantColor {
				t.RGB[3*idx] = v
				t.RGB[3*idx+1] = v
				t.RGB[3*idx+2] = v
			}
		}
	}
	return t
}

// ColorAt returns the RGBA of the pixel at (x,y) in an interleaved RGB
// buffer, for callers (LAB scoring) that want color.Color semantics.
func ColorAt(rgb []uint8, w, x, y int) color.NRGBA {
	idx := 3 * (y*w + x)
	return color.NRGBA{R: rgb[idx], G: rgb[idx+1], B: rgb[idx+2], A: 255}
}
