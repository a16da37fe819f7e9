package faces

import "context"

// NoOpDetector never finds a face. It is the engine's detector until a
// caller installs another one with engine.SetDetector (the CLI installs
// none), so jobs keep running with face detection degraded to the
// default centered box rather than failing.
type NoOpDetector struct{}

func (NoOpDetector) Detect(ctx context.Context, gray []uint8, width, height int) (Box, bool, error) {
	return Box{}, false, nil
}
