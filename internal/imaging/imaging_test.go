package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func solidPNG(t *testing.T, w, h int, c color.Gray) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestPreprocessSolidImageSizing(t *testing.T) {
	data := solidPNG(t, 64, 64, color.Gray{Y: 0x80})
	target, ok := Preprocess(data, Crop{Scale: 1}, 128, false)
	if !ok {
		t.Fatalf("expected decode success")
	}
	if target.Size != 128 {
		t.Fatalf("size: got %d, want 128", target.Size)
	}
	if len(target.Gray) != 128*128 {
		t.Fatalf("gray length: got %d, want %d", len(target.Gray), 128*128)
	}
	if target.RGB != nil {
		t.Fatalf("expected no RGB buffer when wantColor=false")
	}
}

func TestPreprocessClampsToMaxEdge(t *testing.T) {
	data := solidPNG(t, 32, 32, color.Gray{Y: 0x40})
	target, ok := Preprocess(data, Crop{Scale: 1}, 1024, false)
	if !ok {
		t.Fatalf("expected decode success")
	}
	if target.Size != MaxEdge {
		t.Fatalf("size: got %d, want %d", target.Size, MaxEdge)
	}
}

func TestPreprocessMalformedBytesFallsBack(t *testing.T) {
	target, ok := Preprocess([]byte("not an image"), Crop{Scale: 1}, 64, true)
	if ok {
		t.Fatalf("expected fallback path, got ok=true")
	}
	if target.Size != 64 {
		t.Fatalf("fallback size: got %d, want 64", target.Size)
	}
	if len(target.Gray) != 64*64 || len(target.RGB) != 3*64*64 {
		t.Fatalf("fallback buffers wrong length")
	}
	// Deterministic: two fallback calls on the same size match exactly.
	target2, _ := Preprocess([]byte("still not an image"), Crop{Scale: 1}, 64, true)
	for i := range target.Gray {
		if target.Gray[i] != target2.Gray[i] {
			t.Fatalf("fallback gradient is not deterministic at index %d", i)
		}
	}
}

func TestCoverCropRectClampsToBounds(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 50)
	r := coverCropRect(bounds, Crop{Scale: 1, OffsetX: -1, OffsetY: -1})
	if !r.In(bounds) {
		t.Fatalf("crop rect %v escapes bounds %v", r, bounds)
	}
	if r.Dx() != r.Dy() {
		t.Fatalf("expected a square crop, got %dx%d", r.Dx(), r.Dy())
	}
}

func TestGrayscaleContrastStretchesFullRange(t *testing.T) {
	// Two distinct flat RGB values must stretch out to span [0,255]
	// rather than staying clustered in the middle.
	rgb := make([]uint8, 3*2)
	rgb[0], rgb[1], rgb[2] = 100, 100, 100
	rgb[3], rgb[4], rgb[5] = 150, 150, 150
	gray := grayscaleContrast(rgb, 2, 1)
	if gray[0] != 0 {
		t.Fatalf("darker pixel: got %d, want 0", gray[0])
	}
	if gray[1] != 255 {
		t.Fatalf("lighter pixel: got %d, want 255", gray[1])
	}
}
