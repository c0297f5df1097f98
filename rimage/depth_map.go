package rimage

import (
	"image"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// DepthMap is a dense grid of relative depth values, as produced by a monocular depth model.
// Values are unitless; larger values mean closer for inverse depth models such as MiDaS.
type DepthMap struct {
	width  int
	height int

	data []float64
}

// NewEmptyDepthMap returns a zeroed depth map of the given size.
func NewEmptyDepthMap(width, height int) *DepthMap {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// NewDepthMapFromData wraps row major data into a DepthMap. The slice is not copied.
func NewDepthMapFromData(width, height int, data []float64) (*DepthMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("depth map dimensions must be positive, got %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("depth map of %dx%d needs %d values, got %d", width, height, width*height, len(data))
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// NewDepthMapFromFloat32 copies float32 model output into a DepthMap.
func NewDepthMapFromFloat32(width, height int, data []float32) (*DepthMap, error) {
	converted := make([]float64, len(data))
	for i, v := range data {
		converted[i] = float64(v)
	}
	return NewDepthMapFromData(width, height, converted)
}

// HasData returns whether the depth map holds any values.
func (dm *DepthMap) HasData() bool {
	return dm.width > 0 && dm.height > 0 && len(dm.data) > 0
}

// Width returns the horizontal size of the map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical size of the map.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle covered by the depth map, anchored at the origin.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// Get returns the depth at the given point.
func (dm *DepthMap) Get(p image.Point) float64 {
	return dm.data[dm.kxy(p.X, p.Y)]
}

// GetDepth returns the depth at x, y.
func (dm *DepthMap) GetDepth(x, y int) float64 {
	return dm.data[dm.kxy(x, y)]
}

// Set sets the depth at x, y.
func (dm *DepthMap) Set(x, y int, val float64) {
	dm.data[dm.kxy(x, y)] = val
}

// Data returns the row major backing slice.
func (dm *DepthMap) Data() []float64 {
	return dm.data
}

// MinMax returns the smallest and largest finite values in the map. ok is false when the map
// holds no finite value.
func (dm *DepthMap) MinMax() (minVal, maxVal float64, ok bool) {
	minVal, maxVal = math.Inf(1), math.Inf(-1)
	for _, z := range dm.data {
		if math.IsNaN(z) || math.IsInf(z, 0) {
			continue
		}
		ok = true
		minVal = math.Min(minVal, z)
		maxVal = math.Max(maxVal, z)
	}
	if !ok {
		return 0, 0, false
	}
	return minVal, maxVal, true
}

// Mean returns the average of every value in the map.
func (dm *DepthMap) Mean() (float64, error) {
	if !dm.HasData() {
		return 0, errors.New("cannot take the mean of an empty depth map")
	}
	return stats.Mean(stats.Float64Data(dm.data))
}

// Resize returns a new depth map of the given size using bilinear interpolation. Sample
// positions use half pixel centers, matching align_corners=false upsampling.
func (dm *DepthMap) Resize(width, height int) (*DepthMap, error) {
	if !dm.HasData() {
		return nil, errors.New("cannot resize an empty depth map")
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("cannot resize depth map to %dx%d", width, height)
	}
	if width == dm.width && height == dm.height {
		out := NewEmptyDepthMap(width, height)
		copy(out.data, dm.data)
		return out, nil
	}

	out := NewEmptyDepthMap(width, height)
	scaleX := float64(dm.width) / float64(width)
	scaleY := float64(dm.height) / float64(height)
	for y := 0; y < height; y++ {
		srcY := clampFloat((float64(y)+0.5)*scaleY-0.5, 0, float64(dm.height-1))
		y0 := int(srcY)
		y1 := minInt(y0+1, dm.height-1)
		wy := srcY - float64(y0)
		for x := 0; x < width; x++ {
			srcX := clampFloat((float64(x)+0.5)*scaleX-0.5, 0, float64(dm.width-1))
			x0 := int(srcX)
			x1 := minInt(x0+1, dm.width-1)
			wx := srcX - float64(x0)

			top := dm.GetDepth(x0, y0)*(1-wx) + dm.GetDepth(x1, y0)*wx
			bottom := dm.GetDepth(x0, y1)*(1-wx) + dm.GetDepth(x1, y1)*wx
			out.Set(x, y, top*(1-wy)+bottom*wy)
		}
	}
	return out, nil
}

// ToPrettyPicture renders the map as a hue ramp between hardMin and hardMax. Values outside the
// range are clamped and non finite values are left black.
func (dm *DepthMap) ToPrettyPicture(hardMin, hardMax float64) image.Image {
	minVal, maxVal, ok := dm.MinMax()
	img := image.NewRGBA(image.Rect(0, 0, dm.Width(), dm.Height()))
	if !ok {
		return img
	}

	minVal = math.Max(minVal, hardMin)
	maxVal = math.Min(maxVal, hardMax)
	span := maxVal - minVal

	for x := 0; x < dm.Width(); x++ {
		for y := 0; y < dm.Height(); y++ {
			z := dm.GetDepth(x, y)
			if math.IsNaN(z) || math.IsInf(z, 0) {
				continue
			}
			z = clampFloat(z, minVal, maxVal)

			ratio := 0.0
			if span > 0 {
				ratio = (z - minVal) / span
			}
			hue := 30 + (200.0 * ratio)
			img.Set(x, y, NewColorFromHSV(hue, 1.0, 1.0))
		}
	}

	return img
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
