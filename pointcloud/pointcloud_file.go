package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/proximity/utils"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
)

// WriteToFile writes the cloud to path. The format is picked from the extension: ".ply" writes
// an ascii PLY file and ".pcd" writes a binary PCD file.
func WriteToFile(cloud PointCloud, path string) (err error) {
	var write func(PointCloud, io.Writer) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ply":
		write = ToPLY
	case ".pcd":
		write = func(cloud PointCloud, out io.Writer) error { return ToPCD(cloud, out, PCDBinary) }
	default:
		return errors.Errorf("unsupported point cloud file extension %q", filepath.Ext(path))
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	w := bufio.NewWriter(f)
	if err := write(cloud, w); err != nil {
		return err
	}
	return w.Flush()
}

// ToPLY writes the cloud as an ascii PLY file with float positions and uchar colors.
func ToPLY(cloud PointCloud, out io.Writer) error {
	if _, err := fmt.Fprintf(out, "ply\n"+
		"format ascii 1.0\n"+
		"element vertex %d\n"+
		"property float x\n"+
		"property float y\n"+
		"property float z\n"+
		"property uchar red\n"+
		"property uchar green\n"+
		"property uchar blue\n"+
		"end_header\n", cloud.Size()); err != nil {
		return err
	}

	var err error
	cloud.Iterate(0, 0, func(pos r3.Vector, d Data) bool {
		var r, g, b uint8
		if d != nil && d.HasColor() {
			r, g, b = d.RGB255()
		}
		_, err = fmt.Fprintf(out, "%f %f %f %d %d %d\n", pos.X, pos.Y, pos.Z, r, g, b)
		return err == nil
	})
	return err
}

// ReadPLY parses a PLY file into a cloud. Vertex colors are read when the red, green and blue
// properties are present.
func ReadPLY(in io.Reader) (cloud PointCloud, err error) {
	// goply panics on malformed input.
	defer func() {
		if r := recover(); r != nil {
			cloud = nil
			err = errors.Errorf("malformed ply data: %v", r)
		}
	}()

	ply := goply.New(in)
	vertices := ply.Elements("vertex")
	cloud = NewWithPrealloc(len(vertices))
	for i, vertex := range vertices {
		var coords [3]float64
		for j, name := range []string{"x", "y", "z"} {
			v, err := plyFloat(vertex[name])
			if err != nil {
				return nil, errors.Wrapf(err, "vertex %d property %q", i, name)
			}
			coords[j] = v
		}

		d := NewBasicData()
		r, okR := plyByte(vertex["red"])
		g, okG := plyByte(vertex["green"])
		b, okB := plyByte(vertex["blue"])
		if okR && okG && okB {
			d = NewColoredData(color.NRGBA{R: r, G: g, B: b, A: 255})
		}
		if err := cloud.Set(NewVector(coords[0], coords[1], coords[2]), d); err != nil {
			return nil, err
		}
	}
	return cloud, nil
}

func plyFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float32:
		return float64(val), nil
	case float64:
		return val, nil
	case nil:
		return 0, errors.New("missing")
	default:
		return 0, utils.NewUnexpectedTypeError(float64(0), v)
	}
}

func plyByte(v interface{}) (uint8, bool) {
	switch val := v.(type) {
	case uint8:
		return val, true
	case int8:
		return uint8(val), true
	default:
		return 0, false
	}
}

func colorToPCDInt(pt Data) int {
	if pt == nil || !pt.HasColor() {
		return 0
	}

	r, g, b := pt.RGB255()
	x := 0

	x |= (int(r) << 16)
	x |= (int(g) << 8)
	x |= (int(b) << 0)
	return x
}

func pcdIntToColor(c int) color.NRGBA {
	r := uint8(0xFF & (c >> 16))
	g := uint8(0xFF & (c >> 8))
	b := uint8(0xFF & (c >> 0))
	return color.NRGBA{r, g, b, 255}
}

// ToPCD writes the cloud in the PCD v0.7 format.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	var err error

	_, err = fmt.Fprintf(out, "VERSION .7\n")
	if err != nil {
		return err
	}
	switch cloud.MetaData().HasColor {
	case true:
		_, err = fmt.Fprintf(out, "FIELDS x y z rgb\n"+
			"SIZE 4 4 4 4\n"+
			"TYPE F F F I\n"+
			"COUNT 1 1 1 1\n")
	case false:
		_, err = fmt.Fprintf(out, "FIELDS x y z\n"+
			"SIZE 4 4 4\n"+
			"TYPE F F F\n"+
			"COUNT 1 1 1\n")
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n",
		cloud.Size(),
		1,
		cloud.Size())
	if err != nil {
		return err
	}

	switch outputType {
	case PCDBinary:
		_, err = fmt.Fprintf(out, "DATA binary\n")
	case PCDAscii:
		_, err = fmt.Fprintf(out, "DATA ascii\n")
	default:
		return errors.Errorf("unsupported pcd type %d", outputType)
	}
	if err != nil {
		return err
	}
	return writePCDData(cloud, out, outputType)
}

func writePCDData(cloud PointCloud, out io.Writer, pcdtype PCDType) error {
	hasColor := cloud.MetaData().HasColor
	var err error
	cloud.Iterate(0, 0, func(pos r3.Vector, d Data) bool {
		switch pcdtype {
		case PCDBinary:
			buf := make([]byte, 12, 16)
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(pos.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(pos.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(pos.Z)))
			if hasColor {
				buf = binary.LittleEndian.AppendUint32(buf, uint32(colorToPCDInt(d)))
			}
			_, err = out.Write(buf)
		case PCDAscii:
			if hasColor {
				_, err = fmt.Fprintf(out, "%f %f %f %d\n", pos.X, pos.Y, pos.Z, colorToPCDInt(d))
			} else {
				_, err = fmt.Fprintf(out, "%f %f %f\n", pos.X, pos.Y, pos.Z)
			}
		}
		return err == nil
	})
	return err
}

// ReadPCDAscii parses an ascii PCD file written by ToPCD.
func ReadPCDAscii(inRaw io.Reader) (PointCloud, error) {
	in := bufio.NewScanner(inRaw)
	numFields := 0
	numPoints := -1
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		key, rest, _ := strings.Cut(line, " ")
		switch key {
		case "FIELDS":
			numFields = len(strings.Fields(rest))
		case "POINTS":
			n, err := strconv.Atoi(rest)
			if err != nil {
				return nil, errors.Wrap(err, "invalid POINTS header")
			}
			numPoints = n
		case "DATA":
			if rest != "ascii" {
				return nil, errors.Errorf("unsupported pcd data type %q", rest)
			}
			return readPCDAsciiData(in, numFields, numPoints)
		}
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("pcd header has no DATA line")
}

func readPCDAsciiData(in *bufio.Scanner, numFields, numPoints int) (PointCloud, error) {
	if numFields != 3 && numFields != 4 {
		return nil, errors.Errorf("unsupported pcd field count %d", numFields)
	}
	pc := NewWithPrealloc(numPoints)
	for i := 0; i < numPoints; i++ {
		if !in.Scan() {
			return nil, errors.Errorf("pcd ended after %d of %d points", i, numPoints)
		}
		tokens := strings.Fields(in.Text())
		if len(tokens) != numFields {
			return nil, errors.Errorf("unexpected number of fields in point %d", i)
		}
		vals := make([]float64, len(tokens))
		for j, token := range tokens {
			v, err := strconv.ParseFloat(token, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid point %d field %s", i, token)
			}
			vals[j] = v
		}
		d := NewBasicData()
		if numFields == 4 {
			d = NewColoredData(pcdIntToColor(int(vals[3])))
		}
		if err := pc.Set(NewVector(vals[0], vals[1], vals[2]), d); err != nil {
			return nil, err
		}
	}
	return pc, nil
}
