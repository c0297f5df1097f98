package proximity

import (
	"image"
	"math"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"go.viam.com/proximity/rimage"
	"go.viam.com/proximity/utils"
)

const (
	// SnapshotPrefix is the file name prefix of alarm screenshots.
	SnapshotPrefix = "screenshot"
	// DepthSnapshotPrefix is the file name prefix of alarm depth images.
	DepthSnapshotPrefix = "depth"
)

// SnapshotWriter saves alarm screenshots as screenshot_<YYYYMMDD-HHMMSS>.png. Screenshots taken
// within the same second share a name and the last one wins.
type SnapshotWriter struct {
	dir   string
	clock clock.Clock
}

// NewSnapshotWriter creates dir if needed. A nil clock uses the wall clock.
func NewSnapshotWriter(dir string, clk clock.Clock) (*SnapshotWriter, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &SnapshotWriter{dir: dir, clock: clk}, nil
}

// Save writes img and returns its path.
func (w *SnapshotWriter) Save(img image.Image) (string, error) {
	if img == nil {
		return "", errors.New("cannot save a nil snapshot")
	}
	return w.save(SnapshotPrefix, img)
}

// SaveDepth writes dm as a false color image named depth_<YYYYMMDD-HHMMSS>.png and returns its
// path.
func (w *SnapshotWriter) SaveDepth(dm *rimage.DepthMap) (string, error) {
	if dm == nil || !dm.HasData() {
		return "", errors.New("cannot save an empty depth map")
	}
	return w.save(DepthSnapshotPrefix, dm.ToPrettyPicture(math.Inf(-1), math.Inf(1)))
}

func (w *SnapshotWriter) save(prefix string, img image.Image) (string, error) {
	path, err := utils.SafeJoinDir(w.dir, utils.TimestampedName(prefix, ".png", w.clock.Now()))
	if err != nil {
		return "", err
	}
	if err := imaging.Save(img, path); err != nil {
		utils.RemoveFileNoError(path)
		return "", errors.Wrapf(err, "cannot save snapshot %q", path)
	}
	return path, nil
}
