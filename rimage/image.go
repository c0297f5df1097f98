package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// ClipRectangle intersects r with bounds. The result is empty when they do not overlap.
func ClipRectangle(r, bounds image.Rectangle) image.Rectangle {
	return r.Canon().Intersect(bounds)
}

// CropImage returns a copy of the part of img inside r. r is clipped to the image bounds first,
// and ok is false when nothing is left.
func CropImage(img image.Image, r image.Rectangle) (cropped *image.NRGBA, ok bool) {
	clipped := ClipRectangle(r, img.Bounds())
	if clipped.Empty() {
		return nil, false
	}
	return imaging.Crop(img, clipped), true
}

// CloneImage returns a mutable RGBA copy of img with its origin at 0, 0.
func CloneImage(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return out
}

// ResizeImage scales img to exactly width by height with bilinear filtering.
func ResizeImage(img image.Image, width, height uint) image.Image {
	return resize.Resize(width, height, img, resize.Bilinear)
}

// LetterboxColor fills the padding added by LetterboxImage.
var LetterboxColor = color.NRGBA{114, 114, 114, 255}

// Letterbox records how LetterboxImage placed its source.
type Letterbox struct {
	Scale      float64
	PadX, PadY int
}

// ToSource maps a point of the letterboxed image back to source pixels, relative to the source
// origin.
func (l Letterbox) ToSource(x, y float64) (float64, float64) {
	return (x - float64(l.PadX)) / l.Scale, (y - float64(l.PadY)) / l.Scale
}

// LetterboxImage scales img to fit inside width by height without changing its aspect ratio and
// centers it on a LetterboxColor canvas.
func LetterboxImage(img image.Image, width, height int) (*image.NRGBA, Letterbox) {
	canvas := imaging.New(width, height, LetterboxColor)
	b := img.Bounds()
	if b.Empty() || width <= 0 || height <= 0 {
		return canvas, Letterbox{Scale: 1}
	}

	scale := math.Min(float64(width)/float64(b.Dx()), float64(height)/float64(b.Dy()))
	w := int(clampFloat(math.Round(float64(b.Dx())*scale), 1, float64(width)))
	h := int(clampFloat(math.Round(float64(b.Dy())*scale), 1, float64(height)))
	box := Letterbox{Scale: scale, PadX: (width - w) / 2, PadY: (height - h) / 2}

	resized := ResizeImage(img, uint(w), uint(h))
	return imaging.Paste(canvas, resized, image.Pt(box.PadX, box.PadY)), box
}

// ImageToCHWFloat32 flattens img into a planar RGB float buffer of shape [3, H, W]. Each
// channel is scaled to [0, 1], then normalized as (v - mean[c]) / std[c] when mean and std
// are given.
func ImageToCHWFloat32(img image.Image, mean, std []float32) []float32 {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	planeSize := width * height
	out := make([]float32, 3*planeSize)

	normalize := len(mean) == 3 && len(std) == 3
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			idx := y*width + x
			vals := [3]float32{
				float32(r>>8) / 255.0,
				float32(g>>8) / 255.0,
				float32(bl>>8) / 255.0,
			}
			for c := 0; c < 3; c++ {
				v := vals[c]
				if normalize && std[c] != 0 {
					v = (v - mean[c]) / std[c]
				}
				out[c*planeSize+idx] = v
			}
		}
	}
	return out
}
