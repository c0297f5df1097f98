package viz

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/proximity/logging"
)

func TestSceneRendererValidation(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := NewSceneRenderer(SceneConfig{Width: 0, Height: 10, FocalLength: 1}, nil, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewSceneRenderer(SceneConfig{Width: 10, Height: 10}, nil, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewSceneRenderer(DefaultSceneConfig(), nil, nil, logger)
	test.That(t, err, test.ShouldBeNil)
}

func TestProject(t *testing.T) {
	r, err := NewSceneRenderer(DefaultSceneConfig(), nil, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	x, y, near, ok := r.Project(r3.Vector{X: 100, Y: 50, Z: 1}, 0.5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, x, test.ShouldEqual, 100)
	test.That(t, y, test.ShouldEqual, 50)
	test.That(t, near, test.ShouldAlmostEqual, 50)

	_, _, far, ok := r.Project(r3.Vector{X: 100, Y: 50, Z: 10}, 0.5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, far, test.ShouldBeLessThan, near)

	// Very close markers are capped at half the canvas height.
	_, _, capped, ok := r.Project(r3.Vector{X: 100, Y: 50, Z: 0.001}, 0.5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, capped, test.ShouldEqual, 240)

	_, _, _, ok = r.Project(r3.Vector{X: 100, Y: 50, Z: 0}, 0.5)
	test.That(t, ok, test.ShouldBeFalse)
	_, _, _, ok = r.Project(r3.Vector{X: 640, Y: 50, Z: 1}, 0.5)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestSceneRender(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	var viewed image.Image
	view := func(ctx context.Context, img image.Image) error {
		viewed = img
		return nil
	}
	cfg := DefaultSceneConfig()
	cfg.Dir = dir
	r, err := NewSceneRenderer(cfg, clk, view, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	markers := testMarkers(t)
	test.That(t, r.Render(context.Background(), markers), test.ShouldBeNil)
	test.That(t, r.LastPath(), test.ShouldEqual, filepath.Join(dir, "scene_20240102-030405.png"))
	_, err = os.Stat(r.LastPath())
	test.That(t, err, test.ShouldBeNil)

	test.That(t, viewed, test.ShouldNotBeNil)
	test.That(t, viewed.Bounds(), test.ShouldResemble, image.Rect(0, 0, 640, 480))
	// The sphere at (100, 80) is drawn in blue.
	r8, g8, b8, _ := viewed.At(100, 80).RGBA()
	test.That(t, r8>>8, test.ShouldEqual, 0)
	test.That(t, g8>>8, test.ShouldEqual, 0)
	test.That(t, b8>>8, test.ShouldEqual, 255)
	test.That(t, r.Close(), test.ShouldBeNil)
}
