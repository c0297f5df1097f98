package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"go.viam.com/test"

	"go.viam.com/proximity/config"
	"go.viam.com/proximity/pointcloud"
	"go.viam.com/proximity/vision/objectdetection"
)

func writeFrames(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
		for y := 0; y < 48; y++ {
			for x := 0; x < 64; x++ {
				c := color.NRGBA{255, 255, 255, 255}
				if x >= 10 && x < 30 && y >= 10 && y < 30 {
					c = color.NRGBA{0, 0, 0, 255}
				}
				img.SetNRGBA(x, y, c)
			}
		}
		test.That(t, imaging.Save(img, filepath.Join(dir, "frame_"+string(rune('a'+i))+".png")), test.ShouldBeNil)
	}
}

func TestCheckConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proximity.yaml")
	test.That(t, os.WriteFile(path, []byte("detector:\n  type: simple\ndepth:\n  type: constant\n"), 0o600), test.ShouldBeNil)

	var out, errOut bytes.Buffer
	app := NewApp(&out, &errOut)
	test.That(t, app.Run([]string{"proximityalarm", "check-config", "--config", path}), test.ShouldBeNil)

	var printed config.Config
	test.That(t, json.Unmarshal(out.Bytes(), &printed), test.ShouldBeNil)
	test.That(t, printed.Camera.Type, test.ShouldEqual, config.SourceCamera)
	test.That(t, printed.Detector.Type, test.ShouldEqual, config.DetectorSimple)
	test.That(t, printed.Proximity.VehicleClasses, test.ShouldResemble, []string{"car", "truck", "bus"})

	bad := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(bad, []byte(`{"camera": {"type": "video"}}`), 0o600), test.ShouldBeNil)
	err := NewApp(&out, &errOut).Run([]string{"proximityalarm", "check-config", "-c", bad})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRunFramesDir(t *testing.T) {
	framesDir := t.TempDir()
	writeFrames(t, framesDir, 2)
	outDir := filepath.Join(t.TempDir(), "out")

	cfgPath := filepath.Join(t.TempDir(), "proximity.json")
	cfg := `{
		"detector": {"type": "simple", "dark_threshold": 40, "label": "car"},
		"depth": {"type": "constant", "constant": 0.5},
		"output": {"point_cloud_formats": ["ply", "pcd"], "scene": true, "resolution": 0.25}
	}`
	test.That(t, os.WriteFile(cfgPath, []byte(cfg), 0o600), test.ShouldBeNil)

	var out, errOut bytes.Buffer
	app := NewApp(&out, &errOut)
	err := app.RunContext(context.Background(), []string{
		"proximityalarm", "run",
		"--config", cfgPath,
		"--frames-dir", framesDir,
		"--output-dir", outDir,
		"--headless",
	})
	test.That(t, err, test.ShouldBeNil)

	// A dark 20x20 "car" at mean depth 0.5 calibrates to scale 4 and sits at 0.125 m.
	shots, err := filepath.Glob(filepath.Join(outDir, "screenshot_*.png"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(shots), test.ShouldBeGreaterThanOrEqualTo, 1)
	scenes, err := filepath.Glob(filepath.Join(outDir, "scene_*.png"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(scenes), test.ShouldBeGreaterThanOrEqualTo, 1)

	f, err := os.Open(filepath.Join(outDir, "point_cloud.ply"))
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	cloud, err := pointcloud.ReadPLY(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldBeGreaterThan, 0)
	meta := cloud.MetaData()
	test.That(t, meta.MinZ, test.ShouldBeGreaterThan, 0.125-0.5-1e-6)
	test.That(t, meta.MaxZ, test.ShouldBeLessThan, 0.125+0.5+1e-6)

	_, err = os.Stat(filepath.Join(outDir, "point_cloud.pcd"))
	test.That(t, err, test.ShouldBeNil)
}

func TestRunBadOptions(t *testing.T) {
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run([]string{"proximityalarm", "run", "--frames-dir", t.TempDir(), "--headless"})
	test.That(t, err, test.ShouldNotBeNil)

	err = NewApp(&out, &errOut).Run([]string{"proximityalarm", "run", "--config", filepath.Join(t.TempDir(), "nope.json")})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDetectorPostprocessor(t *testing.T) {
	dets := []objectdetection.Detection{
		objectdetection.NewDetection(image.Rect(0, 0, 10, 10), 0.9, "car"),
		objectdetection.NewDetection(image.Rect(0, 0, 10, 10), 0.2, "car"),
		objectdetection.NewDetection(image.Rect(0, 0, 2, 2), 0.9, "car"),
		objectdetection.NewDetection(image.Rect(0, 0, 10, 10), 0.9, "kite"),
	}

	test.That(t, newPostprocessor(config.DetectorConfig{})(dets), test.ShouldHaveLength, 4)

	kept := newPostprocessor(config.DetectorConfig{
		MinScore: 0.5,
		MinArea:  10,
		Classes:  []string{"car", "truck"},
	})(dets)
	test.That(t, kept, test.ShouldHaveLength, 1)
	test.That(t, kept[0], test.ShouldEqual, dets[0])
}
