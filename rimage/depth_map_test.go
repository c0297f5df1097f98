package rimage

import (
	"image"
	"math"
	"testing"

	"go.viam.com/test"
)

func TestDepthMapBasics(t *testing.T) {
	dm := NewEmptyDepthMap(3, 2)
	test.That(t, dm.HasData(), test.ShouldBeTrue)
	test.That(t, dm.Width(), test.ShouldEqual, 3)
	test.That(t, dm.Height(), test.ShouldEqual, 2)
	test.That(t, dm.Bounds(), test.ShouldResemble, image.Rect(0, 0, 3, 2))

	dm.Set(2, 1, 7.5)
	test.That(t, dm.GetDepth(2, 1), test.ShouldEqual, 7.5)
	test.That(t, dm.Get(image.Pt(2, 1)), test.ShouldEqual, 7.5)
	test.That(t, dm.Data()[5], test.ShouldEqual, 7.5)

	test.That(t, NewEmptyDepthMap(0, 4).HasData(), test.ShouldBeFalse)
}

func TestNewDepthMapFromData(t *testing.T) {
	_, err := NewDepthMapFromData(2, 2, []float64{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewDepthMapFromData(0, 2, nil)
	test.That(t, err, test.ShouldNotBeNil)

	dm, err := NewDepthMapFromFloat32(2, 1, []float32{1.5, 2.5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(1, 0), test.ShouldEqual, 2.5)
}

func TestDepthMapMinMax(t *testing.T) {
	dm, err := NewDepthMapFromData(2, 2, []float64{4, math.NaN(), -1, math.Inf(1)})
	test.That(t, err, test.ShouldBeNil)
	minVal, maxVal, ok := dm.MinMax()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, minVal, test.ShouldEqual, -1)
	test.That(t, maxVal, test.ShouldEqual, 4)

	dm, err = NewDepthMapFromData(1, 1, []float64{math.NaN()})
	test.That(t, err, test.ShouldBeNil)
	_, _, ok = dm.MinMax()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestDepthMapResize(t *testing.T) {
	t.Run("constant map stays constant", func(t *testing.T) {
		dm := NewEmptyDepthMap(4, 4)
		for i := range dm.Data() {
			dm.Data()[i] = 3
		}
		out, err := dm.Resize(9, 5)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out.Width(), test.ShouldEqual, 9)
		test.That(t, out.Height(), test.ShouldEqual, 5)
		for _, v := range out.Data() {
			test.That(t, v, test.ShouldAlmostEqual, 3)
		}
	})

	t.Run("upsampling interpolates", func(t *testing.T) {
		dm, err := NewDepthMapFromData(2, 1, []float64{0, 10})
		test.That(t, err, test.ShouldBeNil)
		out, err := dm.Resize(4, 1)
		test.That(t, err, test.ShouldBeNil)
		// Half pixel centers: samples at -0.25, 0.25, 0.75, 1.25 clamp to [0, 1].
		test.That(t, out.Data(), test.ShouldResemble, []float64{0, 2.5, 7.5, 10})
	})

	t.Run("same size copies", func(t *testing.T) {
		dm, err := NewDepthMapFromData(2, 1, []float64{1, 2})
		test.That(t, err, test.ShouldBeNil)
		out, err := dm.Resize(2, 1)
		test.That(t, err, test.ShouldBeNil)
		out.Set(0, 0, 9)
		test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, 1)
	})

	t.Run("invalid sizes", func(t *testing.T) {
		_, err := NewEmptyDepthMap(2, 2).Resize(0, 3)
		test.That(t, err, test.ShouldNotBeNil)
		_, err = NewEmptyDepthMap(0, 0).Resize(2, 2)
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestDepthMapPrettyPicture(t *testing.T) {
	dm, err := NewDepthMapFromData(3, 1, []float64{0, 5, math.NaN()})
	test.That(t, err, test.ShouldBeNil)
	img := dm.ToPrettyPicture(0, 10)
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 3, 1))

	near := NewColorFromColor(img.At(0, 0))
	far := NewColorFromColor(img.At(1, 0))
	test.That(t, near, test.ShouldNotResemble, far)
	_, _, _, a := img.At(2, 0).RGBA()
	test.That(t, a, test.ShouldEqual, 0)
}

func TestDepthMapMean(t *testing.T) {
	dm, err := NewDepthMapFromData(2, 2, []float64{1, 2, 3, 6})
	test.That(t, err, test.ShouldBeNil)
	mean, err := dm.Mean()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mean, test.ShouldEqual, 3)

	_, err = NewEmptyDepthMap(0, 0).Mean()
	test.That(t, err, test.ShouldNotBeNil)
}
