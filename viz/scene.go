package viz

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/proximity/logging"
	"go.viam.com/proximity/rimage"
	"go.viam.com/proximity/spatialmath"
	"go.viam.com/proximity/utils"
)

// ScenePrefix is the file name prefix of rendered scene images.
const ScenePrefix = "scene"

var sceneBackground = color.NRGBA{30, 30, 30, 255}

// SceneConfig describes the virtual camera of a SceneRenderer.
type SceneConfig struct {
	Width  int
	Height int
	// FocalLength converts marker size over distance into pixels.
	FocalLength float64
	// Dir receives scene_<timestamp>.png files. Nothing is saved when empty.
	Dir string
}

// DefaultSceneConfig returns a 640x480 scene that is not saved to disk.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{Width: 640, Height: 480, FocalLength: 100}
}

// ViewFunc shows a rendered scene. It may block until the viewer is dismissed.
type ViewFunc func(ctx context.Context, img image.Image) error

// SceneRenderer projects markers onto an image, placing each marker at its (x, y) center and
// shrinking it with distance.
type SceneRenderer struct {
	cfg    SceneConfig
	clock  clock.Clock
	view   ViewFunc
	logger logging.Logger

	mu       sync.Mutex
	lastPath string
}

// NewSceneRenderer returns a renderer. view may be nil.
func NewSceneRenderer(cfg SceneConfig, clk clock.Clock, view ViewFunc, logger logging.Logger) (*SceneRenderer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Errorf("scene size must be positive, got %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FocalLength <= 0 {
		return nil, errors.Errorf("scene focal length must be positive, got %v", cfg.FocalLength)
	}
	if err := utils.EnsureDir(cfg.Dir); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &SceneRenderer{cfg: cfg, clock: clk, view: view, logger: logger}, nil
}

// Project maps a marker center and size to a canvas position and on-screen radius. ok is false
// for markers at or behind the camera or outside the canvas.
func (r *SceneRenderer) Project(center r3.Vector, size float64) (x, y, radius float64, ok bool) {
	if center.Z <= 0 || math.IsNaN(center.Z) || math.IsInf(center.Z, 0) {
		return 0, 0, 0, false
	}
	x, y = center.X, center.Y
	if x < 0 || y < 0 || x >= float64(r.cfg.Width) || y >= float64(r.cfg.Height) {
		return 0, 0, 0, false
	}
	radius = r.cfg.FocalLength * size / center.Z
	maxRadius := float64(r.cfg.Height) / 2
	radius = math.Max(2, math.Min(radius, maxRadius))
	return x, y, radius, true
}

// Draw renders the markers, far ones first.
func (r *SceneRenderer) Draw(markers []spatialmath.Geometry) image.Image {
	dc := gg.NewContext(r.cfg.Width, r.cfg.Height)
	dc.SetColor(sceneBackground)
	dc.Clear()

	sorted := make([]spatialmath.Geometry, len(markers))
	copy(sorted, markers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Center().Z > sorted[j].Center().Z
	})

	for _, m := range sorted {
		x, y, radius, ok := r.Project(m.Center(), markerSize(m))
		if !ok {
			continue
		}
		c := MarkerColor(m)
		if m.Kind() == spatialmath.SphereType {
			rimage.DrawCircleFilled(dc, x, y, radius, c)
		} else {
			rimage.DrawSquareFilled(dc, x, y, 2*radius, c)
		}
		label := fmt.Sprintf("%s %.2f", m.Label(), m.Center().Z)
		rimage.DrawString(dc, label, image.Pt(int(x-radius), int(y-radius)-4), color.White, 14)
	}
	return dc.Image()
}

// Render draws the markers, saves the image when a directory is configured and hands it to the
// viewer.
func (r *SceneRenderer) Render(ctx context.Context, markers []spatialmath.Geometry) error {
	img := r.Draw(markers)
	if r.cfg.Dir != "" {
		path, err := utils.SafeJoinDir(r.cfg.Dir, utils.TimestampedName(ScenePrefix, ".png", r.clock.Now()))
		if err != nil {
			return err
		}
		if err := imaging.Save(img, path); err != nil {
			utils.RemoveFileNoError(path)
			return errors.Wrapf(err, "cannot save scene to %q", path)
		}
		r.mu.Lock()
		r.lastPath = path
		r.mu.Unlock()
		r.logger.Debugw("saved scene", "path", path, "markers", len(markers))
	}
	if r.view != nil {
		return r.view(ctx, img)
	}
	return nil
}

// LastPath returns the most recently saved scene image, if any.
func (r *SceneRenderer) LastPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPath
}

// Close does nothing.
func (r *SceneRenderer) Close() error {
	return nil
}

func markerSize(g spatialmath.Geometry) float64 {
	switch s := g.(type) {
	case interface{ Radius() float64 }:
		return s.Radius()
	case interface{ Dims() r3.Vector }:
		return s.Dims().X / 2
	}
	return 0
}
