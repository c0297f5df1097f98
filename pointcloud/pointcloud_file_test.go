package pointcloud

import (
	"bytes"
	"encoding/binary"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func markerCloud(t *testing.T) PointCloud {
	t.Helper()
	pc := New()
	test.That(t, pc.Set(NewVector(-1, -2, 5), NewColoredData(color.NRGBA{255, 0, 0, 255})), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(582, 5, -1), NewColoredData(color.NRGBA{0, 0, 255, 255})), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(7, 6, 1), NewColoredData(color.NRGBA{0, 255, 0, 255})), test.ShouldBeNil)
	return pc
}

func TestPLYRoundTrip(t *testing.T) {
	cloud := markerCloud(t)

	var buf bytes.Buffer
	test.That(t, ToPLY(cloud, &buf), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldStartWith, "ply\nformat ascii 1.0\nelement vertex 3\n")

	read, err := ReadPLY(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Size(), test.ShouldEqual, 3)

	d, ok := read.At(582, 5, -1)
	test.That(t, ok, test.ShouldBeTrue)
	r, g, b := d.RGB255()
	test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{0, 0, 255})
}

func TestPCDAscii(t *testing.T) {
	cloud := markerCloud(t)

	var buf bytes.Buffer
	test.That(t, ToPCD(cloud, &buf, PCDAscii), test.ShouldBeNil)
	out := buf.String()
	test.That(t, out, test.ShouldContainSubstring, "FIELDS x y z rgb\n")
	test.That(t, out, test.ShouldContainSubstring, "POINTS 3\n")
	test.That(t, out, test.ShouldContainSubstring, "DATA ascii\n")
	test.That(t, out, test.ShouldContainSubstring, "582.000000 5.000000 -1.000000 255\n")

	read, err := ReadPCDAscii(strings.NewReader(out))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Size(), test.ShouldEqual, 3)
	d, ok := read.At(-1, -2, 5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, d.Color(), test.ShouldResemble, color.NRGBA{255, 0, 0, 255})

	_, err = ReadPCDAscii(strings.NewReader("VERSION .7\n"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPCDBinary(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(NewVector(1.5, -2, 3), NewBasicData()), test.ShouldBeNil)

	var buf bytes.Buffer
	test.That(t, ToPCD(pc, &buf, PCDBinary), test.ShouldBeNil)
	out := buf.Bytes()
	header := "DATA binary\n"
	idx := bytes.Index(out, []byte(header))
	test.That(t, idx, test.ShouldBeGreaterThan, 0)

	data := out[idx+len(header):]
	test.That(t, data, test.ShouldHaveLength, 12)
	test.That(t, math.Float32frombits(binary.LittleEndian.Uint32(data)), test.ShouldEqual, float32(1.5))
	test.That(t, math.Float32frombits(binary.LittleEndian.Uint32(data[4:])), test.ShouldEqual, float32(-2))

	test.That(t, ToPCD(pc, &buf, PCDType(7)), test.ShouldNotBeNil)
}

func TestWriteToFile(t *testing.T) {
	cloud := markerCloud(t)
	dir := t.TempDir()

	plyPath := filepath.Join(dir, "point_cloud.ply")
	test.That(t, WriteToFile(cloud, plyPath), test.ShouldBeNil)
	f, err := os.Open(plyPath)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	read, err := ReadPLY(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Size(), test.ShouldEqual, 3)

	pcdPath := filepath.Join(dir, "point_cloud.pcd")
	test.That(t, WriteToFile(cloud, pcdPath), test.ShouldBeNil)
	info, err := os.Stat(pcdPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)

	test.That(t, WriteToFile(cloud, filepath.Join(dir, "cloud.obj")), test.ShouldNotBeNil)
}

func TestReadPLYBadVertices(t *testing.T) {
	intCoords := "ply\nformat ascii 1.0\nelement vertex 1\n" +
		"property int x\nproperty int y\nproperty int z\nend_header\n1 2 3\n"
	_, err := ReadPLY(strings.NewReader(intCoords))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `vertex 0 property "x"`)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected float64 but got int32")

	noZ := "ply\nformat ascii 1.0\nelement vertex 1\n" +
		"property float x\nproperty float y\nend_header\n1 2\n"
	_, err = ReadPLY(strings.NewReader(noZ))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `property "z": missing`)
}
