package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// box is an axis aligned rectangular prism. Cube markers are boxes with equal sides.
type box struct {
	centerPt r3.Vector
	halfSize [3]float64
	label    string
}

// NewBox instantiates a new box Geometry centered at center with the given full dimensions.
func NewBox(center, dims r3.Vector, label string) (Geometry, error) {
	// Zero dimensions are allowed; they describe flat or degenerate boxes.
	if dims.X < 0 || dims.Y < 0 || dims.Z < 0 {
		return nil, newBadGeometryDimensionsError(BoxType)
	}
	halfSize := dims.Mul(0.5)
	return &box{
		centerPt: center,
		halfSize: [3]float64{halfSize.X, halfSize.Y, halfSize.Z},
		label:    label,
	}, nil
}

// NewCube instantiates a box with all sides equal to size.
func NewCube(center r3.Vector, size float64, label string) (Geometry, error) {
	return NewBox(center, r3.Vector{X: size, Y: size, Z: size}, label)
}

// String returns a human readable string that represents the box.
func (b *box) String() string {
	return fmt.Sprintf("Type: Box | Position: X:%.2f, Y:%.2f, Z:%.2f | Dims: X:%.2f, Y:%.2f, Z:%.2f",
		b.centerPt.X, b.centerPt.Y, b.centerPt.Z, 2*b.halfSize[0], 2*b.halfSize[1], 2*b.halfSize[2])
}

func (b *box) SetLabel(label string) {
	b.label = label
}

func (b *box) Label() string {
	return b.label
}

func (b *box) Center() r3.Vector {
	return b.centerPt
}

func (b *box) Kind() GeometryType {
	return BoxType
}

// Dims returns the full side lengths of the box.
func (b *box) Dims() r3.Vector {
	return r3.Vector{X: 2 * b.halfSize[0], Y: 2 * b.halfSize[1], Z: 2 * b.halfSize[2]}
}

// ToPoints returns points lying on the faces of the box.
func (b *box) ToPoints(resolution float64) []r3.Vector {
	iter := resolution
	if iter <= 0 {
		iter = defaultPointDensity
	}

	// The boolean flags make each edge of the box get visited by exactly one face.
	var facePoints []r3.Vector
	facePoints = append(facePoints, fillFaces(b.halfSize, iter, 0, true, false)...)
	facePoints = append(facePoints, fillFaces(b.halfSize, iter, 1, true, true)...)
	facePoints = append(facePoints, fillFaces(b.halfSize, iter, 2, false, false)...)

	return translatePoints(facePoints, b.centerPt)
}

// fillFaces returns a list of vectors which lie on the surface of a box centered at the origin.
func fillFaces(halfSize [3]float64, iter float64, fixedDimension int, orEquals1, orEquals2 bool) []r3.Vector {
	var facePoints []r3.Vector
	// One of i, j, k stays pinned to the face being filled.
	starts := [3]float64{0.0, 0.0, 0.0}
	starts[fixedDimension] = halfSize[fixedDimension]
	for i := starts[0]; lessThan(orEquals1, i, halfSize[0]); i += iter {
		for j := starts[1]; lessThan(orEquals2, j, halfSize[1]); j += iter {
			for k := starts[2]; k <= halfSize[2]; k += iter {
				p1 := r3.Vector{X: i, Y: j, Z: k}
				p2 := r3.Vector{X: i, Y: j, Z: -k}
				p3 := r3.Vector{X: i, Y: -j, Z: k}
				p4 := r3.Vector{X: i, Y: -j, Z: -k}
				p5 := r3.Vector{X: -i, Y: j, Z: k}
				p6 := r3.Vector{X: -i, Y: j, Z: -k}
				p7 := r3.Vector{X: -i, Y: -j, Z: -k}
				p8 := r3.Vector{X: -i, Y: -j, Z: k}

				switch {
				case i == 0.0 && j == 0.0:
					facePoints = append(facePoints, p1, p2)
				case j == 0.0 && k == 0.0:
					facePoints = append(facePoints, p1, p5)
				case i == 0.0 && k == 0.0:
					facePoints = append(facePoints, p1, p7)
				case i == 0.0:
					facePoints = append(facePoints, p1, p2, p3, p4)
				case j == 0.0:
					facePoints = append(facePoints, p1, p2, p5, p6)
				case k == 0.0:
					facePoints = append(facePoints, p1, p3, p5, p8)
				default:
					facePoints = append(facePoints, p1, p2, p3, p4, p5, p6, p7, p8)
				}
			}
		}
	}
	return facePoints
}

// lessThan checks if v1 <= v2 only if orEquals is true, otherwise we check if v1 < v2.
func lessThan(orEquals bool, v1, v2 float64) bool {
	if orEquals {
		return v1 <= v2
	}
	return v1 < v2
}
