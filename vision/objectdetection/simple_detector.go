package objectdetection

import (
	"context"
	"image"
	"image/color"
)

// simpleDetector converts an image to gray and then finds the connected components with values below a certain
// luminance threshold. threshold is between 0.0 and 256.0, with 256.0 being white, and 0.0 being black.
type simpleDetector struct {
	threshold float64
	label     string
}

// NewSimpleDetector creates a detector that needs no model, useful for local testing and demos. It looks for
// dark objects in the image, and returns a bounding box with the given label around each connected component.
func NewSimpleDetector(threshold float64, label string) Detector {
	sd := &simpleDetector{threshold: threshold, label: label}
	return sd.Inference
}

// Inference takes in an image frame and returns the detection bounding boxes found in the image.
func (sd *simpleDetector) Inference(ctx context.Context, img image.Image) ([]Detection, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	gray := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)))
		}
	}

	seen := make([]bool, width*height)
	queue := []image.Point{}
	detections := []Detection{}
	for i := 0; i < width; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := 0; j < height; j++ {
			pt := image.Point{i, j}
			indx := pt.Y*width + pt.X
			if seen[indx] {
				continue
			}
			if !sd.pass(gray.GrayAt(i, j)) {
				seen[indx] = true
				continue
			}
			seen[indx] = true
			queue = append(queue, pt)
			x0, y0, x1, y1 := pt.X, pt.Y, pt.X, pt.Y // the bounding box of the segment
			for len(queue) != 0 {
				newPt := queue[0]
				queue = queue[1:]
				x0, x1 = min(x0, newPt.X), max(x1, newPt.X)
				y0, y1 = min(y0, newPt.Y), max(y1, newPt.Y)
				neighbors := sd.getNeighbors(newPt, gray, seen)
				queue = append(queue, neighbors...)
			}
			d := NewDetection(image.Rect(x0+bounds.Min.X, y0+bounds.Min.Y, x1+bounds.Min.X+1, y1+bounds.Min.Y+1), 1.0, sd.label)
			detections = append(detections, d)
		}
	}
	return detections, nil
}

func (sd *simpleDetector) pass(c color.Gray) bool {
	return float64(c.Y) < sd.threshold
}

// getNeighbors returns the unseen 4-connected neighbors of pt that pass the threshold, marking them seen.
func (sd *simpleDetector) getNeighbors(pt image.Point, img *image.Gray, seen []bool) []image.Point {
	bounds := img.Bounds()
	neighbors := make([]image.Point, 0, 4)
	fourPoints := []image.Point{{pt.X, pt.Y - 1}, {pt.X, pt.Y + 1}, {pt.X - 1, pt.Y}, {pt.X + 1, pt.Y}}
	for _, p := range fourPoints {
		if !p.In(bounds) {
			continue
		}
		indx := p.Y*bounds.Dx() + p.X
		if seen[indx] {
			continue
		}
		seen[indx] = true
		if sd.pass(img.GrayAt(p.X, p.Y)) {
			neighbors = append(neighbors, p)
		}
	}
	return neighbors
}
