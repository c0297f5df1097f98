package objectdetection

import (
	"context"
	"image"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/proximity/ml/inference"
	"go.viam.com/proximity/rimage"
)

// YOLOConfig tunes the decoding of a YOLOv8 style detector.
type YOLOConfig struct {
	// Labels maps class indices to names. Empty uses COCOLabels.
	Labels []string
	// ConfidenceThreshold drops candidates whose best class score is lower.
	ConfidenceThreshold float64
	// IoUThreshold is the overlap above which same label boxes are suppressed.
	IoUThreshold float64
}

// Default YOLO decoding thresholds.
const (
	DefaultConfidenceThreshold = 0.25
	DefaultIoUThreshold        = 0.45
)

// NewYOLODetector wraps a model with input [1, 3, H, W] and output [1, 4+C, N] (or the transposed
// [1, N, 4+C]) into a Detector. Each of the N candidates holds cx, cy, w, h in input pixels
// followed by C class scores. Frames are letterboxed to the input size and boxes are mapped back
// to frame pixels.
func NewYOLODetector(model inference.Model, cfg YOLOConfig) (Detector, error) {
	labels := cfg.Labels
	if len(labels) == 0 {
		labels = COCOLabels
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.IoUThreshold <= 0 {
		cfg.IoUThreshold = DefaultIoUThreshold
	}

	inShape := model.InputShape()
	if len(inShape) != 4 || inShape[1] != 3 {
		return nil, errors.Errorf("expected detector input of shape [1, 3, H, W], got %v", inShape)
	}
	inHeight, inWidth := int(inShape[2]), int(inShape[3])

	outShape := model.OutputShape()
	if len(outShape) != 3 {
		return nil, errors.Errorf("expected detector output of rank 3, got %v", outShape)
	}
	attrs := int64(4 + len(labels))
	var numCandidates int
	var transposed bool
	switch {
	case outShape[1] == attrs:
		numCandidates = int(outShape[2])
	case outShape[2] == attrs:
		numCandidates, transposed = int(outShape[1]), true
	default:
		return nil, errors.Errorf("detector output %v does not match %d labels", outShape, len(labels))
	}

	nms := NewNMSFilter(cfg.IoUThreshold)
	return func(ctx context.Context, img image.Image) ([]Detection, error) {
		origW, origH := img.Bounds().Dx(), img.Bounds().Dy()
		boxed, letterbox := rimage.LetterboxImage(img, inWidth, inHeight)
		out, err := model.Infer(ctx, rimage.ImageToCHWFloat32(boxed, nil, nil))
		if err != nil {
			return nil, err
		}
		if len(out) != int(attrs)*numCandidates {
			return nil, errors.Errorf("detector returned %d values, expected %d", len(out), int(attrs)*numCandidates)
		}

		at := func(attr, cand int) float64 {
			if transposed {
				return float64(out[cand*int(attrs)+attr])
			}
			return float64(out[attr*numCandidates+cand])
		}

		detections := make([]Detection, 0)
		for cand := 0; cand < numCandidates; cand++ {
			bestClass, bestScore := -1, math.Inf(-1)
			for c := range labels {
				if s := at(4+c, cand); s > bestScore {
					bestClass, bestScore = c, s
				}
			}
			if bestScore < cfg.ConfidenceThreshold {
				continue
			}

			cx, cy, w, h := at(0, cand), at(1, cand), at(2, cand), at(3, cand)
			x0, y0 := letterbox.ToSource(cx-w/2, cy-h/2)
			x1, y1 := letterbox.ToSource(cx+w/2, cy+h/2)
			xmin, xmax := clamp(x0, 0, float64(origW)), clamp(x1, 0, float64(origW))
			ymin, ymax := clamp(y0, 0, float64(origH)), clamp(y1, 0, float64(origH))
			rect := image.Rect(int(xmin), int(ymin), int(xmax), int(ymax)).Add(img.Bounds().Min)

			detections = append(detections, NewDetection(rect, bestScore, labels[bestClass]))
		}
		return nms(detections), nil
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
