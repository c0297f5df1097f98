package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/proximity/logging"
	"go.viam.com/proximity/viz"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Camera.Type, test.ShouldEqual, SourceCamera)
	test.That(t, cfg.Camera.WindowTitle, test.ShouldEqual, "proximity alarm")
	test.That(t, cfg.Detector.Type, test.ShouldEqual, DetectorSimple)
	test.That(t, cfg.Detector.Label, test.ShouldEqual, "car")
	test.That(t, cfg.Depth.Constant, test.ShouldEqual, 1.0)
	test.That(t, cfg.Proximity.ReferenceDistanceM, test.ShouldEqual, 2.0)
	test.That(t, cfg.Proximity.AlarmThresholdM, test.ShouldEqual, 1.0)
	test.That(t, cfg.Output.Dir, test.ShouldEqual, ".")
	test.That(t, cfg.Output.PointCloudFormats, test.ShouldResemble, []string{FormatPLY})
	test.That(t, cfg.Output.Resolution, test.ShouldEqual, viz.DefaultResolution)
	test.That(t, cfg.Render.QueueSize, test.ShouldEqual, viz.DefaultQueueSize)
	test.That(t, cfg.Render.SceneWidth, test.ShouldEqual, 640)
	test.That(t, cfg.Level(), test.ShouldEqual, logging.INFO)
	test.That(t, cfg.NeedsONNX(), test.ShouldBeFalse)
}

func TestReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proximity.json")
	contents := `{
		"camera": {"type": "frames", "frames_dir": "testdata/frames", "headless": true},
		"detector": {"type": "yolo", "model_path": "yolov8n.onnx", "confidence_threshold": 0.4},
		"depth": {"type": "midas", "model_path": "midas_small.onnx"},
		"proximity": {"unit_conversion": 100, "distance_unit": "cm"},
		"output": {"dir": "out", "point_cloud_formats": ["ply", "pcd", "ply"]},
		"log_level": "debug"
	}`
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, cfg.Camera.FramesDir, test.ShouldEqual, "testdata/frames")
	test.That(t, cfg.Camera.Headless, test.ShouldBeTrue)
	test.That(t, cfg.Detector.ConfidenceThreshold, test.ShouldEqual, 0.4)
	test.That(t, cfg.Proximity.Threshold(), test.ShouldEqual, 100.0)
	test.That(t, cfg.Proximity.VehicleClasses, test.ShouldResemble, []string{"car", "truck", "bus"})
	test.That(t, cfg.Output.PointCloudFormats, test.ShouldResemble, []string{FormatPLY, FormatPCD})
	test.That(t, cfg.Level(), test.ShouldEqual, logging.DEBUG)
	test.That(t, cfg.NeedsONNX(), test.ShouldBeTrue)
}

func TestReadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proximity.yaml")
	contents := `
camera:
  type: video
  video_path: drive.mp4
detector:
  type: simple
  dark_threshold: 60
  label: truck
depth:
  type: constant
  constant: 0.3
proximity:
  vehicle_classes: [car, truck]
  ignored_classes: [road, sky]
render:
  blocking: true
`
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Camera.VideoPath, test.ShouldEqual, "drive.mp4")
	test.That(t, cfg.Detector.DarkThreshold, test.ShouldEqual, 60.0)
	test.That(t, cfg.Detector.Label, test.ShouldEqual, "truck")
	test.That(t, cfg.Depth.Constant, test.ShouldEqual, 0.3)
	test.That(t, cfg.Proximity.IsIgnored("sky"), test.ShouldBeTrue)
	test.That(t, cfg.Proximity.IsVehicle("bus"), test.ShouldBeFalse)
	test.That(t, cfg.Render.Blocking, test.ShouldBeTrue)
}

func TestWriteRoundTrip(t *testing.T) {
	for _, name := range []string{"out.json", "out.yml"} {
		path := filepath.Join(t.TempDir(), name)
		test.That(t, Write(Default(), path), test.ShouldBeNil)
		cfg, err := Read(path)
		test.That(t, err, test.ShouldBeNil)
		cfg.ConfigFilePath = ""
		test.That(t, cfg, test.ShouldResemble, Default())
	}
}

func TestValidationErrors(t *testing.T) {
	for _, tc := range []struct {
		contents string
		errPart  string
	}{
		{`{"camera": {"type": "video"}}`, `"video_path" is required`},
		{`{"camera": {"type": "frames"}}`, `"frames_dir" is required`},
		{`{"camera": {"type": "lidar"}}`, `unknown type "lidar"`},
		{`{"detector": {"type": "yolo"}}`, `"model_path" is required`},
		{`{"detector": {"type": "simple", "iou_threshold": 2}}`, "iou_threshold"},
		{`{"detector": {"type": "simple"}, "depth": {"type": "midas"}}`, `"model_path" is required`},
		{`{"detector": {"type": "simple"}, "depth": {"type": "midas", "model_path": "m", "mean": [1]}}`, "three values"},
		{`{"detector": {"type": "simple"}, "depth": {"type": "constant"}, "output": {"point_cloud_formats": ["las"]}}`, `unknown type "las"`},
		{`{"detector": {"type": "simple"}, "depth": {"type": "constant"}, "proximity": {"marker_size": -1}}`, "marker_size"},
		{`{"detector": {"type": "simple"}, "depth": {"type": "constant"}, "log_level": "loud"}`, "unknown log level"},
		{`{"detector": {"type": "simple"}, "depth": {"type": "constant"}, "bogus": 1}`, "unknown field"},
	} {
		_, err := FromReader("proximity.json", strings.NewReader(tc.contents))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, tc.errPart)
	}

	_, err := Read(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestModelIOOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proximity.yaml")
	contents := `
detector:
  type: yolo
  model_path: yolov8n.onnx
  input_name: images
  input_shape: [1, 3, 640, 640]
  output_shape: [1, 84, 8400]
  threads: 2
  min_score: 0.5
  min_area: 100
  classes: [car, truck]
depth:
  type: midas
  model_path: midas_small.onnx
  output_name: depth
  input_shape: [1, 3, 256, 256]
  output_shape: [1, 256, 256]
onnxruntime_library: /opt/onnxruntime/libonnxruntime.so
`
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Detector.MinScore, test.ShouldEqual, 0.5)
	test.That(t, cfg.Detector.Classes, test.ShouldResemble, []string{"car", "truck"})

	det := cfg.Detector.Session(cfg.Detector.ModelPath, cfg.ONNXRuntimeLibrary)
	test.That(t, det.ModelPath, test.ShouldEqual, "yolov8n.onnx")
	test.That(t, det.SharedLibraryPath, test.ShouldEqual, "/opt/onnxruntime/libonnxruntime.so")
	test.That(t, det.InputName, test.ShouldEqual, "images")
	test.That(t, det.OutputName, test.ShouldEqual, "")
	test.That(t, det.InputShape, test.ShouldResemble, []int64{1, 3, 640, 640})
	test.That(t, det.OutputShape, test.ShouldResemble, []int64{1, 84, 8400})
	test.That(t, det.IntraOpThreads, test.ShouldEqual, 2)

	depthSession := cfg.Depth.Session(cfg.Depth.ModelPath, cfg.ONNXRuntimeLibrary)
	test.That(t, depthSession.OutputName, test.ShouldEqual, "depth")
	test.That(t, depthSession.InputShape, test.ShouldResemble, []int64{1, 3, 256, 256})
	test.That(t, depthSession.OutputShape, test.ShouldResemble, []int64{1, 256, 256})

	// The same keys are accepted in JSON.
	jsonContents := `{
		"detector": {"type": "yolo", "model_path": "m.onnx", "input_shape": [1, 3, 320, 320]},
		"depth": {"type": "constant"}
	}`
	cfg, err = FromReader("proximity.json", strings.NewReader(jsonContents))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Detector.InputShape, test.ShouldResemble, []int64{1, 3, 320, 320})

	for _, tc := range []struct {
		contents string
		errPart  string
	}{
		{`{"detector": {"type": "yolo", "model_path": "m", "input_shape": [-1, 3, 640, 640]}}`, "input_shape"},
		{`{"detector": {"type": "yolo", "model_path": "m", "input_shape": [3, 640, 640]}}`, "[N, C, H, W]"},
		{`{"detector": {"type": "simple"}, "depth": {"type": "midas", "model_path": "m", "output_shape": [1, 0]}}`, "output_shape"},
		{`{"detector": {"type": "simple", "threads": -1}}`, "threads"},
		{`{"detector": {"type": "simple", "min_score": 1.5}}`, "min_score"},
	} {
		_, err := FromReader("proximity.json", strings.NewReader(tc.contents))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, tc.errPart)
	}
}

func TestWindowImpliesBlocking(t *testing.T) {
	contents := `{"detector": {"type": "simple"}, "depth": {"type": "constant"}, "render": {"window": true}}`
	cfg, err := FromReader("proximity.json", strings.NewReader(contents))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Render.Window, test.ShouldBeTrue)
	test.That(t, cfg.Render.Blocking, test.ShouldBeTrue)

	cfg = Default()
	test.That(t, cfg.Render.Blocking, test.ShouldBeFalse)
}
