// Package dto holds the caller-facing request/response shapes for the
// string-art generation engine (spec.md §6) — the wire contract an
// out-of-process HTTP job server (out of this repository's scope) would
// marshal to and from JSON.
package dto

import (
	"time"

	"github.com/google/uuid"
)

// FrameType selects the pin-layout shape (spec.md §4.2).
type FrameType string

const (
	FrameCircular    FrameType = "circular"
	FrameSquare      FrameType = "square"
	FrameRectangular FrameType = "rectangular"
)

// ColorMode selects monochrome single-black threading or LAB-interleaved
// CMYK+K color threading (spec.md §4.9.c).
type ColorMode string

const (
	ColorModeMonochrome ColorMode = "monochrome"
	ColorModeColor      ColorMode = "color"
)

// QualityPreset selects the stage-driver path (spec.md §4.10).
type QualityPreset string

const (
	QualityFast     QualityPreset = "fast"
	QualityBalanced QualityPreset = "balanced"
	QualityHigh     QualityPreset = "high"
)

// ImageCrop is the crop descriptor from spec.md §4.1.
type ImageCrop struct {
	Scale   float64 `json:"scale"`   // [1, 3]
	OffsetX float64 `json:"offsetX"` // [-1, 1]
	OffsetY float64 `json:"offsetY"` // [-1, 1]
}

// GenerationParams is the full, user-tunable configuration for one
// generation job (spec.md §6's parameter table). engine.Generate fills
// zero-valued numeric, string and crop-scale fields from Defaults();
// boolean fields are taken as given.
type GenerationParams struct {
	FrameType      FrameType     `json:"frame_type,omitempty"`
	PinCount       int           `json:"pin_count,omitempty"`
	FrameSize      int           `json:"frame_size,omitempty"`
	ThreadWidth    float64       `json:"thread_width,omitempty"`
	ThreadOpacity  float64       `json:"thread_opacity,omitempty"`
	ColorMode      ColorMode     `json:"color_mode,omitempty"`
	MaxThreads     int           `json:"max_threads,omitempty"`
	QualityPreset  QualityPreset `json:"quality_preset,omitempty"`
	UseEdgeDetect  bool          `json:"use_edge_detection"`
	UseAnnealing   bool          `json:"use_simulated_annealing"`
	UsePinFatigue  bool          `json:"use_pin_fatigue"`
	MinPinSkip     int           `json:"min_pin_skip,omitempty"`
	ImageCrop      ImageCrop     `json:"image_crop"`

	// ReturnPartialOnCancel opts into the "return partial result" variant
	// spec.md §7 category 4 allows implementers to expose; the spec's
	// default behavior (discard on cancel) applies when this is false.
	ReturnPartialOnCancel bool `json:"return_partial_on_cancel"`
}

// Defaults returns the parameter table's default values (spec.md §6).
func Defaults() GenerationParams {
	return GenerationParams{
		FrameType:     FrameCircular,
		PinCount:      400,
		FrameSize:     500,
		ThreadWidth:   0.4,
		ThreadOpacity: 0.12,
		ColorMode:     ColorModeMonochrome,
		MaxThreads:    10000,
		QualityPreset: QualityBalanced,
		UseEdgeDetect: true,
		UseAnnealing:  false,
		UsePinFatigue: false,
		MinPinSkip:    2,
		ImageCrop:     ImageCrop{Scale: 1, OffsetX: 0, OffsetY: 0},
	}
}

// ThreadConnection is the wire shape of internal/models.ThreadConnection.
type ThreadConnection struct {
	FromPin   uint32 `json:"from_pin"`
	ToPin     uint32 `json:"to_pin"`
	ColorHex  string `json:"color_hex"`
	ColorName string `json:"color_name"`
}

// Pin is the wire shape of internal/models.Pin.
type Pin struct {
	Index uint32 `json:"index"`
	X     uint16 `json:"x"`
	Y     uint16 `json:"y"`
}

// ThreadColor reports the per-color usage summary (spec.md §4.13, §8 P5).
type ThreadColor struct {
	ColorHex   string  `json:"color_hex"`
	ColorName  string  `json:"color_name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Result is the final output of a generation or continuation job.
type Result struct {
	ID            uuid.UUID          `json:"id"`
	Pins          []Pin              `json:"pins"`
	Connections   []ThreadConnection `json:"connections"`
	TotalThreads  int                `json:"totalThreads"`
	Params        GenerationParams   `json:"params"`
	CreatedAt     string             `json:"created_at"` // ISO-8601 UTC
	Preview       string             `json:"preview"`    // base64-encoded bitmap
	ThreadColors  []ThreadColor      `json:"threadColors"`
	AccuracyScore float64            `json:"accuracyScore"`
	MSE           float64            `json:"mse"`
	SSIM          float64            `json:"ssim"`

	// Warnings accumulates every category-2/3 recovery (spec.md §7) that
	// happened during the run (image decode fallback, default face box,
	// continuation target fallback), so a caller inspecting a finished
	// Result can see what degraded silently. Skipped threads are not
	// recorded here.
	Warnings []string `json:"warnings,omitempty"`

	// TargetGray/TargetRGB persist the preprocessed target pixels (not
	// the original upload) so Continue can rebuild a real LAB target
	// without the caller re-supplying the image (spec.md §9, §4.14).
	TargetGray []byte `json:"target_gray,omitempty"`
	TargetRGB  []byte `json:"target_rgb,omitempty"`
	TargetW    int    `json:"target_w,omitempty"`
	TargetH    int    `json:"target_h,omitempty"`
}

// NewCreatedAt formats t the way this package expects CreatedAt to be
// formatted (ISO-8601 UTC), matching the teacher's
// `event.CreatedAt.Format(time.RFC3339)` convention.
func NewCreatedAt(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ProgressSnapshot is emitted on the progress stream at least every
// N/100 threads (spec.md §6).
type ProgressSnapshot struct {
	CurrentThread int               `json:"current_thread"`
	TotalThreads  int               `json:"total_threads"`
	StageLabel    string            `json:"stage_label"`
	PreviewPNG    []byte            `json:"preview_png_bytes,omitempty"`
	Accuracy      *AccuracyMetricDTO `json:"accuracy,omitempty"`
	Warning       *string           `json:"warning,omitempty"`
}

// AccuracyMetricDTO is the wire shape of internal/models.AccuracyMetrics.
type AccuracyMetricDTO struct {
	MSE           float64 `json:"mse"`
	SSIM          float64 `json:"ssim"`
	SimilarityPct float64 `json:"similarity_pct"`
}

// ContinueTarget supplies what Continue needs to build a correct LAB
// target for the additional threads (spec.md §4.14's limitation made
// explicit). Continue uses the previous Result's persisted
// TargetGray/TargetRGB when present, otherwise OriginalImage; if neither
// is available it falls back to a flat mid-gray surrogate target and
// records a warning.
type ContinueTarget struct {
	OriginalImage []byte    `json:"original_image,omitempty"`
	Crop          ImageCrop `json:"image_crop"`
}
