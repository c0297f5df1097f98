package depth

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"go.viam.com/proximity/ml/inference"
	"go.viam.com/proximity/rimage"
)

// MiDaSConfig controls input normalization for a MiDaS style model.
type MiDaSConfig struct {
	// Mean and Std, when both have three entries, normalize each channel after scaling to [0, 1].
	Mean []float32
	Std  []float32
}

// DefaultMiDaSInputSize is the square input resolution of MiDaS small.
const DefaultMiDaSInputSize = 384

// NewMiDaSEstimator wraps a model with input [1, 3, H, W] and a single channel output of shape
// [1, H', W'] or [1, 1, H', W'] into an Estimator. Images are resized to the model input with a
// linear filter before inference.
func NewMiDaSEstimator(model inference.Model, cfg MiDaSConfig) (Estimator, error) {
	if (len(cfg.Mean) != 0 || len(cfg.Std) != 0) && (len(cfg.Mean) != 3 || len(cfg.Std) != 3) {
		return nil, errors.New("depth normalization needs three mean and three std values")
	}
	for _, s := range cfg.Std {
		if s == 0 {
			return nil, errors.New("depth normalization std values cannot be zero")
		}
	}

	inShape := model.InputShape()
	if len(inShape) != 4 || inShape[1] != 3 {
		return nil, errors.Errorf("expected depth input of shape [1, 3, H, W], got %v", inShape)
	}
	inHeight, inWidth := int(inShape[2]), int(inShape[3])

	outShape := model.OutputShape()
	var outHeight, outWidth int
	switch {
	case len(outShape) == 3:
		outHeight, outWidth = int(outShape[1]), int(outShape[2])
	case len(outShape) == 4 && outShape[1] == 1:
		outHeight, outWidth = int(outShape[2]), int(outShape[3])
	default:
		return nil, errors.Errorf("expected depth output of shape [1, H, W] or [1, 1, H, W], got %v", outShape)
	}

	return func(ctx context.Context, img image.Image) (*rimage.DepthMap, error) {
		resized := imaging.Resize(img, inWidth, inHeight, imaging.Linear)
		out, err := model.Infer(ctx, rimage.ImageToCHWFloat32(resized, cfg.Mean, cfg.Std))
		if err != nil {
			return nil, err
		}
		return rimage.NewDepthMapFromFloat32(outWidth, outHeight, out)
	}, nil
}
