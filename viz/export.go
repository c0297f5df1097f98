package viz

import (
	"context"
	"image/color"

	"github.com/pkg/errors"

	"go.viam.com/proximity/logging"
	"go.viam.com/proximity/pointcloud"
	"go.viam.com/proximity/spatialmath"
	"go.viam.com/proximity/utils"
)

const (
	// PLYFileName is the file the PLY exporter overwrites on every render.
	PLYFileName = "point_cloud.ply"
	// PCDFileName is the file the PCD exporter overwrites on every render.
	PCDFileName = "point_cloud.pcd"
	// DefaultResolution is the spacing between sampled marker surface points.
	DefaultResolution = 0.05
)

var (
	// SphereColor paints sphere markers.
	SphereColor = color.NRGBA{0, 0, 255, 255}
	// BoxColor paints box markers.
	BoxColor = color.NRGBA{255, 0, 0, 255}
)

// MarkerColor returns the paint color for a marker kind.
func MarkerColor(g spatialmath.Geometry) color.NRGBA {
	if g.Kind() == spatialmath.SphereType {
		return SphereColor
	}
	return BoxColor
}

// MarkersToPointCloud samples the surface of every marker into one colored cloud.
func MarkersToPointCloud(markers []spatialmath.Geometry, resolution float64) (pointcloud.PointCloud, error) {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	cloud := pointcloud.New()
	for _, m := range markers {
		c := MarkerColor(m)
		for _, pt := range m.ToPoints(resolution) {
			if err := cloud.Set(pt, pointcloud.NewColoredData(c)); err != nil {
				return nil, errors.Wrapf(err, "cannot add point of %s", m)
			}
		}
	}
	return cloud, nil
}

// CloudExporter writes the markers of a frame to a point cloud file, replacing the previous one.
type CloudExporter struct {
	path       string
	resolution float64
	logger     logging.Logger
}

// NewPLYExporter returns an exporter writing dir/point_cloud.ply.
func NewPLYExporter(dir string, resolution float64, logger logging.Logger) (*CloudExporter, error) {
	return newCloudExporter(dir, PLYFileName, resolution, logger)
}

// NewPCDExporter returns an exporter writing dir/point_cloud.pcd.
func NewPCDExporter(dir string, resolution float64, logger logging.Logger) (*CloudExporter, error) {
	return newCloudExporter(dir, PCDFileName, resolution, logger)
}

func newCloudExporter(dir, name string, resolution float64, logger logging.Logger) (*CloudExporter, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, err
	}
	path, err := utils.SafeJoinDir(dir, name)
	if err != nil {
		return nil, err
	}
	return &CloudExporter{path: path, resolution: resolution, logger: logger}, nil
}

// Path returns the output file.
func (e *CloudExporter) Path() string {
	return e.path
}

// Render writes the cloud. An empty marker list writes nothing. The write is short and runs to
// completion even when ctx is done, so markers queued at shutdown are still exported. A failed
// write leaves no file behind.
func (e *CloudExporter) Render(ctx context.Context, markers []spatialmath.Geometry) error {
	if len(markers) == 0 {
		return nil
	}
	cloud, err := MarkersToPointCloud(markers, e.resolution)
	if err != nil {
		return err
	}
	if err := pointcloud.WriteToFile(cloud, e.path); err != nil {
		utils.RemoveFileNoError(e.path)
		return errors.Wrapf(err, "cannot export markers to %q", e.path)
	}
	e.logger.Debugw("exported markers", "path", e.path, "markers", len(markers), "points", cloud.Size())
	return nil
}

// Close does nothing.
func (e *CloudExporter) Close() error {
	return nil
}
