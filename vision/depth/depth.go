// Package depth estimates relative depth for regions of a camera frame.
package depth

import (
	"context"
	"image"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/proximity/rimage"
)

// ErrEmptyRegion is returned when a region has no pixels inside the frame.
var ErrEmptyRegion = errors.New("region has no pixels inside the frame")

// Estimator returns a relative depth map for an input image. The map may have any resolution.
type Estimator func(context.Context, image.Image) (*rimage.DepthMap, error)

// Region crops box out of frame, estimates its depth and returns the depth map resized back to
// the size of the crop. The box is clipped to the frame first; a box with no pixels left returns
// ErrEmptyRegion.
func Region(ctx context.Context, est Estimator, frame image.Image, box image.Rectangle) (*rimage.DepthMap, error) {
	crop, ok := rimage.CropImage(frame, box)
	if !ok {
		return nil, errors.Wrapf(ErrEmptyRegion, "box %v in frame %v", box, frame.Bounds())
	}

	dm, err := est(ctx, crop)
	if err != nil {
		return nil, err
	}
	if dm == nil || !dm.HasData() {
		return nil, errors.New("depth estimator returned an empty depth map")
	}
	return dm.Resize(crop.Bounds().Dx(), crop.Bounds().Dy())
}

// MeanDepth returns the mean of the Region depth map.
func MeanDepth(ctx context.Context, est Estimator, frame image.Image, box image.Rectangle) (float64, error) {
	dm, err := Region(ctx, est, frame, box)
	if err != nil {
		return 0, err
	}
	return dm.Mean()
}

// NewConstantEstimator returns an Estimator that reports the same depth everywhere. It stands in
// for a depth model in demos and tests.
func NewConstantEstimator(value float64) (Estimator, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, errors.Errorf("constant depth must be finite, got %v", value)
	}
	return func(ctx context.Context, img image.Image) (*rimage.DepthMap, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := img.Bounds()
		dm := rimage.NewEmptyDepthMap(b.Dx(), b.Dy())
		for i := range dm.Data() {
			dm.Data()[i] = value
		}
		return dm, nil
	}, nil
}
