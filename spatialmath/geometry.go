// Package spatialmath defines the marker geometries placed in the 3D alarm scene.
package spatialmath

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// GeometryType is the name of a kind of geometry.
type GeometryType string

// The geometry kinds used as proximity markers.
const (
	SphereType = GeometryType("sphere")
	BoxType    = GeometryType("box")
)

// defaultPointDensity is the spacing, in scene units, used by ToPoints when no resolution is given.
const defaultPointDensity = 0.05

// Geometry is an axis aligned 3D shape positioned in the scene.
type Geometry interface {
	Center() r3.Vector
	Label() string
	SetLabel(string)
	Kind() GeometryType
	// ToPoints samples the surface of the geometry with roughly `resolution` spacing between
	// points. A resolution <= 0 uses a default spacing.
	ToPoints(resolution float64) []r3.Vector
	String() string
}

func newBadGeometryDimensionsError(kind GeometryType) error {
	return errors.Errorf("invalid dimension(s) for geometry type %q", kind)
}

func translatePoints(points []r3.Vector, offset r3.Vector) []r3.Vector {
	for i := range points {
		points[i] = points[i].Add(offset)
	}
	return points
}
