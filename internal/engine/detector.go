package engine

import (
	"sync"

	"github.com/your-org/stringart/internal/faces"
)

var (
	detectorOnce sync.Once
	detector     faces.Detector = faces.NoOpDetector{}
)

// SetDetector installs the face detector every job uses. Call once at
// process startup (spec.md §5: "the face-detection model files are
// loaded lazily once per process and held read-only; concurrent jobs
// read the same model without locking"). Jobs started before SetDetector
// is called use the no-op detector.
func SetDetector(d faces.Detector) {
	detectorOnce.Do(func() {
		detector = d
	})
}

func activeDetector() faces.Detector {
	return detector
}
