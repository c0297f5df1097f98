package proximity

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"

	"go.viam.com/proximity/rimage"
)

const (
	annotationLineWidth = 2
	annotationFontSize  = 14
	labelOffset         = 10
)

var (
	vehicleColor = rimage.Green
	otherColor   = rimage.Red
)

// AnnotationColor returns the box color for an object.
func AnnotationColor(obj Object) color.Color {
	if obj.Vehicle {
		return vehicleColor
	}
	return otherColor
}

// AnnotationText returns the "<class> <distance><unit>" label drawn above an object.
func (cfg *Config) AnnotationText(obj Object) string {
	return obj.Label() + " " + cfg.FormatDistance(obj.Distance)
}

// Annotate draws a box and distance label for every object onto a copy of frame.
func Annotate(frame image.Image, objects []Object, cfg Config) image.Image {
	dc := gg.NewContextForImage(frame)
	for _, obj := range objects {
		c := AnnotationColor(obj)
		box := obj.Box()
		rimage.DrawRectangleEmpty(dc, box, c, annotationLineWidth)
		rimage.DrawString(dc, cfg.AnnotationText(obj), image.Pt(box.Min.X, box.Min.Y-labelOffset), c, annotationFontSize)
	}
	return dc.Image()
}
