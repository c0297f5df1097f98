package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// sphere is a ball with a center point and a radius.
type sphere struct {
	centerPt r3.Vector
	radius   float64
	label    string
}

// NewSphere instantiates a new sphere Geometry.
func NewSphere(center r3.Vector, radius float64, label string) (Geometry, error) {
	if radius < 0 {
		return nil, newBadGeometryDimensionsError(SphereType)
	}
	return &sphere{centerPt: center, radius: radius, label: label}, nil
}

// String returns a human readable string that represents the sphere.
func (s *sphere) String() string {
	return fmt.Sprintf("Type: Sphere | Position: X:%.2f, Y:%.2f, Z:%.2f | Radius: %.2f",
		s.centerPt.X, s.centerPt.Y, s.centerPt.Z, s.radius)
}

func (s *sphere) SetLabel(label string) {
	s.label = label
}

func (s *sphere) Label() string {
	return s.label
}

func (s *sphere) Center() r3.Vector {
	return s.centerPt
}

func (s *sphere) Kind() GeometryType {
	return SphereType
}

// Radius returns the radius of the sphere.
func (s *sphere) Radius() float64 {
	return s.radius
}

// ToPoints samples the sphere surface with a fibonacci lattice. The point count is picked so the
// average spacing is close to resolution.
func (s *sphere) ToPoints(resolution float64) []r3.Vector {
	if resolution <= 0 {
		resolution = defaultPointDensity
	}
	if s.radius == 0 {
		return []r3.Vector{s.centerPt}
	}

	area := 4 * math.Pi * s.radius * s.radius
	numPoints := int(math.Ceil(area / (resolution * resolution)))
	if numPoints < 4 {
		numPoints = 4
	}

	goldenAngle := math.Pi * (3 - math.Sqrt(5))
	points := make([]r3.Vector, 0, numPoints)
	for i := 0; i < numPoints; i++ {
		y := 1 - 2*(float64(i)+0.5)/float64(numPoints)
		ringRadius := math.Sqrt(1 - y*y)
		theta := goldenAngle * float64(i)
		points = append(points, r3.Vector{
			X: math.Cos(theta) * ringRadius * s.radius,
			Y: y * s.radius,
			Z: math.Sin(theta) * ringRadius * s.radius,
		})
	}
	return translatePoints(points, s.centerPt)
}
