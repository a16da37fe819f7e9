package engine

import "github.com/your-org/stringart/pkg/dto"

// applyDefaults fills every zero-valued numeric and string field of p, and
// a zero crop scale, with the spec.md §6 default, without touching fields
// the caller already set. Boolean fields are left as given.
func applyDefaults(p dto.GenerationParams) dto.GenerationParams {
	d := dto.Defaults()
	if p.FrameType == "" {
		p.FrameType = d.FrameType
	}
	if p.PinCount == 0 {
		p.PinCount = d.PinCount
	}
	if p.FrameSize == 0 {
		p.FrameSize = d.FrameSize
	}
	if p.ThreadWidth == 0 {
		p.ThreadWidth = d.ThreadWidth
	}
	if p.ThreadOpacity == 0 {
		p.ThreadOpacity = d.ThreadOpacity
	}
	if p.ColorMode == "" {
		p.ColorMode = d.ColorMode
	}
	if p.MaxThreads == 0 {
		p.MaxThreads = d.MaxThreads
	}
	if p.QualityPreset == "" {
		p.QualityPreset = d.QualityPreset
	}
	if p.MinPinSkip == 0 {
		p.MinPinSkip = d.MinPinSkip
	}
	if p.ImageCrop.Scale == 0 {
		p.ImageCrop.Scale = d.ImageCrop.Scale
	}
	return p
}

// validate implements spec.md §7 category 1: reject out-of-range params
// before any work starts, naming the offending field.
func validate(p dto.GenerationParams) error {
	if p.PinCount < 3 {
		return &ValidationError{Field: "pin_count", Message: "must be at least 3"}
	}
	if p.PinCount > 0 && (p.PinCount < 100 || p.PinCount > 800) {
		return &ValidationError{Field: "pin_count", Message: "must be in [100, 800]"}
	}
	if p.FrameSize < 200 || p.FrameSize > 1000 {
		return &ValidationError{Field: "frame_size", Message: "must be in [200, 1000]"}
	}
	if p.ThreadWidth < 0.2 || p.ThreadWidth > 1.5 {
		return &ValidationError{Field: "thread_width", Message: "must be in [0.2, 1.5]"}
	}
	if p.ThreadOpacity < 0.03 || p.ThreadOpacity > 0.35 {
		return &ValidationError{Field: "thread_opacity", Message: "must be in [0.03, 0.35]"}
	}
	if p.MaxThreads < 500 || p.MaxThreads > 50000 {
		return &ValidationError{Field: "max_threads", Message: "must be in [500, 50000]"}
	}
	if p.MinPinSkip < 1 || p.MinPinSkip > 50 {
		return &ValidationError{Field: "min_pin_skip", Message: "must be in [1, 50]"}
	}
	if p.ImageCrop.Scale < 1 || p.ImageCrop.Scale > 3 {
		return &ValidationError{Field: "image_crop.scale", Message: "must be in [1, 3]"}
	}
	if p.ImageCrop.OffsetX < -1 || p.ImageCrop.OffsetX > 1 || p.ImageCrop.OffsetY < -1 || p.ImageCrop.OffsetY > 1 {
		return &ValidationError{Field: "image_crop.offset", Message: "offsetX/offsetY must be in [-1, 1]"}
	}
	switch p.FrameType {
	case dto.FrameCircular, dto.FrameSquare, dto.FrameRectangular:
	default:
		return &ValidationError{Field: "frame_type", Message: "must be circular, square, or rectangular"}
	}
	switch p.ColorMode {
	case dto.ColorModeMonochrome, dto.ColorModeColor:
	default:
		return &ValidationError{Field: "color_mode", Message: "must be monochrome or color"}
	}
	switch p.QualityPreset {
	case dto.QualityFast, dto.QualityBalanced, dto.QualityHigh:
	default:
		return &ValidationError{Field: "quality_preset", Message: "must be fast, balanced, or high"}
	}
	return nil
}
