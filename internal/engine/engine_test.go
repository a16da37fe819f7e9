package engine

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/your-org/stringart/pkg/dto"
)

// testImageBytes builds a small deterministic gradient PNG, standing in
// for a real photo without pulling in test fixture files.
func testImageBytes(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) * 255 / (2 * size))})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func fastTestParams() dto.GenerationParams {
	return dto.GenerationParams{
		FrameType:     dto.FrameCircular,
		PinCount:      100,
		FrameSize:     200,
		ThreadWidth:   0.4,
		ThreadOpacity: 0.12,
		ColorMode:     dto.ColorModeMonochrome,
		MaxThreads:    500,
		QualityPreset: dto.QualityFast,
		UseEdgeDetect: true,
		MinPinSkip:    2,
		ImageCrop:     dto.ImageCrop{Scale: 1},
	}
}

func drainProgress(t *testing.T, j *Job, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case _, ok := <-j.Progress():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for progress channel to close")
		}
	}
}

func TestGenerateValidationRejectsOutOfRangeParams(t *testing.T) {
	params := fastTestParams()
	params.PinCount = 2
	_, err := Generate(context.Background(), testImageBytes(t, 64), params)
	if err == nil {
		t.Fatal("expected a validation error for pin_count below minimum")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if ve.Field != "pin_count" {
		t.Fatalf("expected pin_count field, got %q", ve.Field)
	}
}

func TestGenerateMonochromeProducesUsableResult(t *testing.T) {
	params := fastTestParams()
	job, err := Generate(context.Background(), testImageBytes(t, 128), params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	drainProgress(t, job, 30*time.Second)

	outcome := <-job.Result()
	if outcome.Err != nil {
		t.Fatalf("job failed: %v", outcome.Err)
	}
	result := outcome.Result
	if result == nil {
		t.Fatal("expected a non-nil result")
	}
	if result.TotalThreads == 0 {
		t.Fatal("expected at least one thread placed")
	}
	if len(result.Connections) != result.TotalThreads {
		t.Fatalf("Connections length %d != TotalThreads %d", len(result.Connections), result.TotalThreads)
	}
	if len(result.Pins) == 0 {
		t.Fatal("expected placed pins")
	}
	if result.Preview == "" {
		t.Fatal("expected a non-empty preview")
	}
	for _, c := range result.Connections {
		if c.ColorHex != "#000000" {
			t.Fatalf("monochrome connection has non-black color %q", c.ColorHex)
		}
	}
	if len(result.TargetGray) == 0 {
		t.Fatal("expected the preprocessed gray target to be persisted for Continue")
	}
}

func TestGenerateColorModeAssignsPaletteColors(t *testing.T) {
	params := fastTestParams()
	params.ColorMode = dto.ColorModeColor
	job, err := Generate(context.Background(), testImageBytes(t, 128), params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	drainProgress(t, job, 30*time.Second)

	outcome := <-job.Result()
	if outcome.Err != nil {
		t.Fatalf("job failed: %v", outcome.Err)
	}
	seenNonBlack := false
	for _, c := range outcome.Result.Connections {
		if c.ColorHex != "#000000" {
			seenNonBlack = true
		}
	}
	if !seenNonBlack {
		t.Fatal("expected at least one non-black thread color in color mode")
	}
	if len(outcome.Result.ThreadColors) == 0 {
		t.Fatal("expected a non-empty thread color summary")
	}
}

func TestGenerateCancelDiscardsResultByDefault(t *testing.T) {
	params := fastTestParams()
	params.MaxThreads = 50000 // long enough that cancellation lands mid-run
	ctx, cancel := context.WithCancel(context.Background())
	job, err := Generate(ctx, testImageBytes(t, 128), params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	cancel()

	drainProgress(t, job, 10*time.Second)
	outcome := <-job.Result()
	if outcome.Err == nil {
		t.Fatal("expected ErrCancelled after cancellation")
	}
	if _, ok := outcome.Err.(ErrCancelled); !ok {
		t.Fatalf("expected ErrCancelled, got %T: %v", outcome.Err, outcome.Err)
	}
	if outcome.Result != nil {
		t.Fatal("expected no result when ReturnPartialOnCancel is false")
	}
}

func TestGenerateCancelReturnsPartialWhenRequested(t *testing.T) {
	params := fastTestParams()
	params.MaxThreads = 50000
	params.ReturnPartialOnCancel = true
	ctx, cancel := context.WithCancel(context.Background())
	job, err := Generate(ctx, testImageBytes(t, 128), params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	cancel()

	drainProgress(t, job, 10*time.Second)
	outcome := <-job.Result()
	if outcome.Err != nil {
		t.Fatalf("expected a partial result, got error: %v", outcome.Err)
	}
	if outcome.Result == nil {
		t.Fatal("expected a non-nil partial result")
	}
}

func TestContinueReplaysAndAddsThreads(t *testing.T) {
	params := fastTestParams()
	job, err := Generate(context.Background(), testImageBytes(t, 128), params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	drainProgress(t, job, 30*time.Second)
	outcome := <-job.Result()
	if outcome.Err != nil {
		t.Fatalf("job failed: %v", outcome.Err)
	}
	previous := *outcome.Result

	const additional = 50
	contJob, err := Continue(context.Background(), previous, additional, dto.ContinueTarget{})
	if err != nil {
		t.Fatalf("Continue: %v", err)
	}
	drainProgress(t, contJob, 30*time.Second)
	contOutcome := <-contJob.Result()
	if contOutcome.Err != nil {
		t.Fatalf("continuation failed: %v", contOutcome.Err)
	}
	if contOutcome.Result.TotalThreads <= previous.TotalThreads {
		t.Fatalf("expected more threads after continuation: before=%d after=%d", previous.TotalThreads, contOutcome.Result.TotalThreads)
	}
	for i, c := range previous.Connections {
		got := contOutcome.Result.Connections[i]
		if got.FromPin != c.FromPin || got.ToPin != c.ToPin {
			t.Fatalf("connection %d changed on replay: before=%+v after=%+v", i, c, got)
		}
	}
}

func TestContinueWithoutPersistedTargetWarnsAndUsesSurrogate(t *testing.T) {
	params := fastTestParams()
	job, err := Generate(context.Background(), testImageBytes(t, 128), params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	drainProgress(t, job, 30*time.Second)
	outcome := <-job.Result()
	if outcome.Err != nil {
		t.Fatalf("job failed: %v", outcome.Err)
	}
	previous := *outcome.Result
	previous.TargetGray = nil
	previous.TargetRGB = nil

	contJob, err := Continue(context.Background(), previous, 20, dto.ContinueTarget{})
	if err != nil {
		t.Fatalf("Continue: %v", err)
	}
	drainProgress(t, contJob, 30*time.Second)
	contOutcome := <-contJob.Result()
	if contOutcome.Err != nil {
		t.Fatalf("continuation failed: %v", contOutcome.Err)
	}
	found := false
	for _, w := range contOutcome.Result.Warnings {
		if w != "" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected at least one warning when falling back to the surrogate continuation target")
	}
}

func TestContinueRejectsZeroAdditionalThreads(t *testing.T) {
	_, err := Continue(context.Background(), dto.Result{}, 0, dto.ContinueTarget{})
	if err == nil {
		t.Fatal("expected a validation error for additional_threads < 1")
	}
}
