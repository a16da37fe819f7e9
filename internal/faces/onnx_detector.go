package faces

import (
	"context"
	"fmt"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// detection is one raw RetinaFace detection before it is collapsed to the
// single best Box the region mask needs.
type detection struct {
	bbox       [4]float32 // x1, y1, x2, y2 in preprocessed-image pixel coordinates
	confidence float32
}

// stride configuration for RetinaFace det_10g.
var strides = []int{8, 16, 32}

// anchorsPerStride is the number of anchors per feature-map cell.
const anchorsPerStride = 2

// ONNXDetector runs RetinaFace (det_10g) face detection using ONNX Runtime.
// Adapted from the vision-pipeline detector this codebase's teacher uses
// for person re-identification: same stride/anchor decode and NMS, wired
// here to produce a single face Box for region-mask construction (C4)
// instead of a stream of tracked identities.
type ONNXDetector struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	inputW        int
	inputH        int
}

// NewONNXDetector loads the RetinaFace ONNX model from modelPath. opts may
// be nil (ORT defaults) or a pre-configured *ort.SessionOptions that the
// caller destroys after this call returns (ORT copies what it needs at
// session-creation time).
func NewONNXDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*ONNXDetector, error) {
	inputW, inputH := 640, 640

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// det_10g output shapes (no batch dimension):
	// scores:    [12800,1] [3200,1] [800,1]     -> stride 8, 16, 32
	// bboxes:    [12800,4] [3200,4] [800,4]     -> stride 8, 16, 32
	// landmarks: [12800,10] [3200,10] [800,10]  -> stride 8, 16, 32
	type outputSpec struct {
		name  string
		shape ort.Shape
	}
	outputs := []outputSpec{
		{"448", ort.NewShape(12800, 1)},
		{"471", ort.NewShape(3200, 1)},
		{"494", ort.NewShape(800, 1)},
		{"451", ort.NewShape(12800, 4)},
		{"474", ort.NewShape(3200, 4)},
		{"497", ort.NewShape(800, 4)},
		{"454", ort.NewShape(12800, 10)},
		{"477", ort.NewShape(3200, 10)},
		{"500", ort.NewShape(800, 10)},
	}

	outputNames := make([]string, len(outputs))
	outputTensors := make([]*ort.Tensor[float32], len(outputs))
	outputValues := make([]ort.Value, len(outputs))

	for i, spec := range outputs {
		outputNames[i] = spec.name
		t, err := ort.NewEmptyTensor[float32](spec.shape)
		if err != nil {
			for j := 0; j < i; j++ {
				outputTensors[j].Destroy()
			}
			inputTensor.Destroy()
			return nil, fmt.Errorf("create output tensor %d (%s): %w", i, spec.name, err)
		}
		outputTensors[i] = t
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		outputNames,
		[]ort.Value{inputTensor},
		outputValues,
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			t.Destroy()
		}
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &ONNXDetector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
		threshold:     threshold,
		inputW:        inputW,
		inputH:        inputH,
	}, nil
}

// Detect implements Detector. gray is a row-major grayscale buffer of size
// width*height; it is resized and replicated across channels to feed the
// RGB-shaped model input.
func (d *ONNXDetector) Detect(ctx context.Context, gray []uint8, width, height int) (Box, bool, error) {
	chw := grayToCHW(gray, width, height, d.inputW, d.inputH)

	inputSlice := d.inputTensor.GetData()
	copy(inputSlice, chw)

	if err := d.session.Run(); err != nil {
		return Box{}, false, fmt.Errorf("run detection: %w", err)
	}

	dets := d.parseDetections(width, height)
	dets = nms(dets, 0.4)
	if len(dets) == 0 {
		return Box{}, false, nil
	}

	best := dets[0]
	for _, det := range dets[1:] {
		if det.confidence > best.confidence {
			best = det
		}
	}

	x1, y1, x2, y2 := best.bbox[0], best.bbox[1], best.bbox[2], best.bbox[3]
	return Box{X: float64(x1), Y: float64(y1), W: float64(x2 - x1), H: float64(y2 - y1)}, true, nil
}

// Close releases all ONNX sessions and tensors.
func (d *ONNXDetector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// parseDetections decodes anchor-based RetinaFace outputs at strides 8, 16, 32.
func (d *ONNXDetector) parseDetections(origW, origH int) []detection {
	var dets []detection

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	for si, stride := range strides {
		scores := d.outputTensors[si].GetData()   // [N, 1]
		bboxes := d.outputTensors[si+3].GetData() // [N, 4]

		fmW := d.inputW / stride
		fmH := d.inputH / stride

		idx := 0
		for cy := 0; cy < fmH; cy++ {
			for cx := 0; cx < fmW; cx++ {
				for a := 0; a < anchorsPerStride; a++ {
					score := scores[idx]
					if score >= d.threshold {
						anchorX := float32(cx) * float32(stride)
						anchorY := float32(cy) * float32(stride)
						st := float32(stride)

						x1 := (anchorX - bboxes[idx*4+0]*st) * scaleW
						y1 := (anchorY - bboxes[idx*4+1]*st) * scaleH
						x2 := (anchorX + bboxes[idx*4+2]*st) * scaleW
						y2 := (anchorY + bboxes[idx*4+3]*st) * scaleH

						x1 = clampF(x1, 0, float32(origW))
						y1 = clampF(y1, 0, float32(origH))
						x2 = clampF(x2, 0, float32(origW))
						y2 = clampF(y2, 0, float32(origH))

						dets = append(dets, detection{
							bbox:       [4]float32{x1, y1, x2, y2},
							confidence: score,
						})
					}
					idx++
				}
			}
		}
	}

	return dets
}

// grayToCHW resizes a grayscale buffer to targetW x targetH (nearest
// neighbour) and replicates it across 3 channels, normalized the way the
// teacher's detection preprocessing does: (pixel - 127.5) / 128.0.
func grayToCHW(gray []uint8, srcW, srcH, targetW, targetH int) []float32 {
	planeSize := targetH * targetW
	data := make([]float32, 3*planeSize)
	if srcW == 0 || srcH == 0 {
		return data
	}
	for y := 0; y < targetH; y++ {
		srcY := y * srcH / targetH
		for x := 0; x < targetW; x++ {
			srcX := x * srcW / targetW
			v := (float32(gray[srcY*srcW+srcX]) - 127.5) / 128.0
			idx := y*targetW + x
			data[idx] = v
			data[planeSize+idx] = v
			data[2*planeSize+idx] = v
		}
	}
	return data
}

// nms performs Non-Maximum Suppression on detections.
func nms(dets []detection, iouThreshold float32) []detection {
	if len(dets) == 0 {
		return dets
	}

	sort.Slice(dets, func(i, j int) bool {
		return dets[i].confidence > dets[j].confidence
	})

	keep := make([]bool, len(dets))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(dets); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(dets); j++ {
			if !keep[j] {
				continue
			}
			if iou(dets[i].bbox, dets[j].bbox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []detection
	for i, det := range dets {
		if keep[i] {
			result = append(result, det)
		}
	}
	return result
}

func iou(a, b [4]float32) float32 {
	x1 := float32(math.Max(float64(a[0]), float64(b[0])))
	y1 := float32(math.Max(float64(a[1]), float64(b[1])))
	x2 := float32(math.Min(float64(a[2]), float64(b[2])))
	y2 := float32(math.Min(float64(a[3]), float64(b[3])))

	intersection := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
