package proximity

import (
	"fmt"
	"image"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"go.viam.com/proximity/rimage"
	"go.viam.com/proximity/spatialmath"
	"go.viam.com/proximity/vision/objectdetection"
)

// Object is a non-ignored detection with its estimated distance.
type Object struct {
	Detection objectdetection.Detection
	MeanDepth float64
	Distance  float64
	Vehicle   bool
	// Provisional is set when the distance was computed before any calibration.
	Provisional bool
	// Depth is the depth map of the bounding box, at the size of the box.
	Depth *rimage.DepthMap
}

// Label returns the detection label.
func (o Object) Label() string {
	return o.Detection.Label()
}

// Box returns the detection bounding box.
func (o Object) Box() image.Rectangle {
	return *o.Detection.BoundingBox()
}

// CenterXY returns the center of the bounding box in pixels.
func (o Object) CenterXY() (float64, float64) {
	b := o.Box()
	return float64(b.Min.X+b.Max.X) / 2, float64(b.Min.Y+b.Max.Y) / 2
}

func (o Object) String() string {
	return fmt.Sprintf("%s at %.2f (depth %.4f)", o.Label(), o.Distance, o.MeanDepth)
}

// Alarm is raised for a vehicle closer than the alarm threshold.
type Alarm struct {
	ID     uuid.UUID
	Object Object
	Marker spatialmath.Geometry
	// SnapshotPath is the screenshot saved for the alarm, once it has been written.
	SnapshotPath string
	// DepthSnapshotPath is the false color depth image of the object saved next to the screenshot.
	DepthSnapshotPath string
}

// ShouldAlarm reports whether obj is a vehicle strictly closer than threshold.
func ShouldAlarm(obj Object, threshold float64) bool {
	return obj.Vehicle && obj.Distance < threshold
}

// NewMarker builds the scene marker for an alarmed object at (center x, center y, distance): a
// sphere of radius size for vehicles, otherwise a cube with side size.
//
// Alarms are only raised for vehicles, so the cube branch is not reached by the pipeline.
func NewMarker(obj Object, size float64) (spatialmath.Geometry, error) {
	cx, cy := obj.CenterXY()
	center := r3.Vector{X: cx, Y: cy, Z: obj.Distance}
	if obj.Vehicle {
		return spatialmath.NewSphere(center, size, obj.Label())
	}
	return spatialmath.NewCube(center, size, obj.Label())
}
