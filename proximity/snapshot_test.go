package proximity

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"go.viam.com/test"

	"go.viam.com/proximity/rimage"
)

func TestSnapshotWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local))

	w, err := NewSnapshotWriter(dir, clk)
	test.That(t, err, test.ShouldBeNil)

	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	path, err := w.Save(img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldEqual, filepath.Join(dir, "screenshot_20240506-070809.png"))

	saved, err := imaging.Open(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, saved.Bounds(), test.ShouldResemble, img.Bounds())

	clk.Add(time.Second)
	path2, err := w.Save(img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path2, test.ShouldEqual, filepath.Join(dir, "screenshot_20240506-070810.png"))

	entries, err := os.ReadDir(dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, entries, test.ShouldHaveLength, 2)

	_, err = w.Save(nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSnapshotWriterDepth(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local))

	w, err := NewSnapshotWriter(dir, clk)
	test.That(t, err, test.ShouldBeNil)

	dm := rimage.NewEmptyDepthMap(8, 4)
	for i := range dm.Data() {
		dm.Data()[i] = float64(i)
	}
	path, err := w.SaveDepth(dm)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldEqual, filepath.Join(dir, "depth_20240506-070809.png"))

	saved, err := imaging.Open(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, saved.Bounds(), test.ShouldResemble, image.Rect(0, 0, 8, 4))
	test.That(t, saved.At(0, 0), test.ShouldNotResemble, saved.At(7, 3))

	_, err = w.SaveDepth(nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = w.SaveDepth(rimage.NewEmptyDepthMap(0, 0))
	test.That(t, err, test.ShouldNotBeNil)
}
