package objectdetection

import (
	"context"
	"image"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

type fakeModel struct {
	inShape, outShape []int64
	output            []float32
	err               error
	lastInput         []float32
}

func (m *fakeModel) Infer(ctx context.Context, input []float32) ([]float32, error) {
	m.lastInput = input
	if m.err != nil {
		return nil, m.err
	}
	return m.output, nil
}

func (m *fakeModel) InputShape() []int64  { return m.inShape }
func (m *fakeModel) OutputShape() []int64 { return m.outShape }
func (m *fakeModel) Close() error         { return nil }

// yoloOutput lays candidates out as [1, 4+C, N].
func yoloOutput(numClasses int, candidates [][]float32) []float32 {
	attrs := 4 + numClasses
	out := make([]float32, attrs*len(candidates))
	for n, cand := range candidates {
		for a := 0; a < attrs; a++ {
			out[a*len(candidates)+n] = cand[a]
		}
	}
	return out
}

func TestYOLODetector(t *testing.T) {
	labels := []string{"person", "car", "road"}
	model := &fakeModel{
		inShape:  []int64{1, 3, 100, 100},
		outShape: []int64{1, 7, 4},
		output: yoloOutput(3, [][]float32{
			// cx, cy, w, h, person, car, road
			{50, 50, 20, 20, 0.1, 0.9, 0.0},
			{51, 51, 20, 20, 0.1, 0.8, 0.0}, // suppressed by the first
			{10, 10, 10, 10, 0.05, 0.1, 0.2}, // below threshold
			{95, 70, 20, 20, 0.7, 0.1, 0.0}, // clipped at the border
		}),
	}
	det, err := NewYOLODetector(model, YOLOConfig{Labels: labels, ConfidenceThreshold: 0.25})
	test.That(t, err, test.ShouldBeNil)

	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	dets, err := det(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.lastInput, test.ShouldHaveLength, 3*100*100)
	// 200x100 is letterboxed into rows 25 to 75; the rows above and below are gray padding.
	test.That(t, model.lastInput[0], test.ShouldAlmostEqual, 114.0/255, 1e-6)
	test.That(t, model.lastInput[50*100+50], test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, dets, test.ShouldHaveLength, 2)

	test.That(t, dets[0].Label(), test.ShouldEqual, "car")
	test.That(t, dets[0].Score(), test.ShouldAlmostEqual, 0.9, 1e-6)
	test.That(t, *dets[0].BoundingBox(), test.ShouldResemble, image.Rect(80, 30, 120, 70))

	test.That(t, dets[1].Label(), test.ShouldEqual, "person")
	test.That(t, *dets[1].BoundingBox(), test.ShouldResemble, image.Rect(170, 70, 200, 100))
}

func TestYOLODetectorTransposed(t *testing.T) {
	model := &fakeModel{
		inShape:  []int64{1, 3, 10, 10},
		outShape: []int64{1, 1, 6},
		output:   []float32{5, 5, 4, 4, 0.2, 0.6},
	}
	det, err := NewYOLODetector(model, YOLOConfig{Labels: []string{"bus", "truck"}})
	test.That(t, err, test.ShouldBeNil)

	dets, err := det(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)
	test.That(t, dets[0].Label(), test.ShouldEqual, "truck")
	test.That(t, *dets[0].BoundingBox(), test.ShouldResemble, image.Rect(3, 3, 7, 7))
}

func TestYOLODetectorErrors(t *testing.T) {
	_, err := NewYOLODetector(&fakeModel{inShape: []int64{1, 640, 640, 3}, outShape: []int64{1, 84, 8400}}, YOLOConfig{})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewYOLODetector(&fakeModel{inShape: []int64{1, 3, 640, 640}, outShape: []int64{1, 10, 8400}}, YOLOConfig{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "80 labels")

	model := &fakeModel{
		inShape:  []int64{1, 3, 10, 10},
		outShape: []int64{1, 84, 2},
		err:      errors.New("runtime failure"),
	}
	det, err := NewYOLODetector(model, YOLOConfig{})
	test.That(t, err, test.ShouldBeNil)
	_, err = det(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)))
	test.That(t, err, test.ShouldBeError, "runtime failure")

	model.err = nil
	model.output = []float32{1, 2, 3}
	_, err = det(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)))
	test.That(t, err, test.ShouldNotBeNil)
}
