// Package config defines the on-disk configuration of the proximity alarm.
package config

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/proximity/logging"
	"go.viam.com/proximity/ml/inference"
	"go.viam.com/proximity/proximity"
	"go.viam.com/proximity/utils"
	"go.viam.com/proximity/viz"
)

// Source types.
const (
	SourceCamera = "camera"
	SourceVideo  = "video"
	SourceFrames = "frames"
)

// Detector types.
const (
	DetectorYOLO   = "yolo"
	DetectorSimple = "simple"
)

// Depth estimator types.
const (
	DepthMiDaS    = "midas"
	DepthConstant = "constant"
)

// Point cloud export formats.
const (
	FormatPLY = "ply"
	FormatPCD = "pcd"
)

// Config is the whole configuration of a run.
type Config struct {
	Camera    CameraConfig     `json:"camera" yaml:"camera"`
	Detector  DetectorConfig   `json:"detector" yaml:"detector"`
	Depth     DepthConfig      `json:"depth" yaml:"depth"`
	Proximity proximity.Config `json:"proximity" yaml:"proximity"`
	Output    OutputConfig     `json:"output" yaml:"output"`
	Render    RenderConfig     `json:"render" yaml:"render"`
	Metrics   MetricsConfig    `json:"metrics" yaml:"metrics"`

	// ONNXRuntimeLibrary is the path of the onnxruntime shared library used by ONNX models.
	ONNXRuntimeLibrary string `json:"onnxruntime_library,omitempty" yaml:"onnxruntime_library,omitempty"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// ConfigFilePath is the file the config was read from, if any.
	ConfigFilePath string `json:"-" yaml:"-"`
}

// CameraConfig selects where frames come from and whether they are shown.
type CameraConfig struct {
	Type      string `json:"type" yaml:"type"`
	Device    int    `json:"device,omitempty" yaml:"device,omitempty"`
	VideoPath string `json:"video_path,omitempty" yaml:"video_path,omitempty"`
	FramesDir string `json:"frames_dir,omitempty" yaml:"frames_dir,omitempty"`
	// Loop restarts a frames directory at its first image.
	Loop bool `json:"loop,omitempty" yaml:"loop,omitempty"`
	// Headless disables the window.
	Headless    bool   `json:"headless,omitempty" yaml:"headless,omitempty"`
	WindowTitle string `json:"window_title,omitempty" yaml:"window_title,omitempty"`
	// MaxFrames stops after that many frames when positive.
	MaxFrames int `json:"max_frames,omitempty" yaml:"max_frames,omitempty"`
}

// ModelIOConfig overrides what is read from an ONNX model's metadata. Shapes are required for
// models exported with dynamic dimensions, such as a dynamic batch axis.
type ModelIOConfig struct {
	InputName   string  `json:"input_name,omitempty" yaml:"input_name,omitempty"`
	OutputName  string  `json:"output_name,omitempty" yaml:"output_name,omitempty"`
	InputShape  []int64 `json:"input_shape,omitempty" yaml:"input_shape,omitempty"`
	OutputShape []int64 `json:"output_shape,omitempty" yaml:"output_shape,omitempty"`
	Threads     int     `json:"threads,omitempty" yaml:"threads,omitempty"`
}

// DetectorConfig selects the object detector.
type DetectorConfig struct {
	Type       string `json:"type" yaml:"type"`
	ModelPath  string `json:"model_path,omitempty" yaml:"model_path,omitempty"`
	LabelsPath string `json:"labels_path,omitempty" yaml:"labels_path,omitempty"`

	ModelIOConfig `yaml:",inline"`

	// ConfidenceThreshold and IoUThreshold tune YOLO decoding.
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty" yaml:"confidence_threshold,omitempty"`
	IoUThreshold        float64 `json:"iou_threshold,omitempty" yaml:"iou_threshold,omitempty"`
	// MinScore, MinArea and Classes filter detections after decoding. An empty Classes keeps
	// every class.
	MinScore float64  `json:"min_score,omitempty" yaml:"min_score,omitempty"`
	MinArea  int      `json:"min_area,omitempty" yaml:"min_area,omitempty"`
	Classes  []string `json:"classes,omitempty" yaml:"classes,omitempty"`
	// DarkThreshold, a luminance in [0, 256], and Label configure the simple dark blob detector.
	DarkThreshold float64 `json:"dark_threshold,omitempty" yaml:"dark_threshold,omitempty"`
	Label         string  `json:"label,omitempty" yaml:"label,omitempty"`
}

// DepthConfig selects the depth estimator.
type DepthConfig struct {
	Type      string `json:"type" yaml:"type"`
	ModelPath string `json:"model_path,omitempty" yaml:"model_path,omitempty"`

	ModelIOConfig `yaml:",inline"`

	Mean []float32 `json:"mean,omitempty" yaml:"mean,omitempty"`
	Std  []float32 `json:"std,omitempty" yaml:"std,omitempty"`
	// Constant is the depth reported by the constant estimator.
	Constant float64 `json:"constant,omitempty" yaml:"constant,omitempty"`
}

// OutputConfig controls the files written for alarms.
type OutputConfig struct {
	// Dir receives screenshots, point clouds and scene images.
	Dir string `json:"dir" yaml:"dir"`
	// PointCloudFormats lists the marker exports, "ply" and/or "pcd".
	PointCloudFormats []string `json:"point_cloud_formats" yaml:"point_cloud_formats"`
	// Scene saves a projected image of the markers on every alarm frame.
	Scene bool `json:"scene,omitempty" yaml:"scene,omitempty"`
	// Resolution is the spacing of sampled marker surface points.
	Resolution float64 `json:"resolution,omitempty" yaml:"resolution,omitempty"`
}

// RenderConfig controls how markers are rendered.
type RenderConfig struct {
	// Blocking renders on the frame loop instead of a background worker.
	Blocking  bool `json:"blocking,omitempty" yaml:"blocking,omitempty"`
	QueueSize int  `json:"queue_size,omitempty" yaml:"queue_size,omitempty"`
	// Window shows the projected scene in a window that waits for a key press. HighGUI windows
	// must all be driven from the frame loop, so Window implies Blocking.
	Window      bool    `json:"window,omitempty" yaml:"window,omitempty"`
	SceneWidth  int     `json:"scene_width,omitempty" yaml:"scene_width,omitempty"`
	SceneHeight int     `json:"scene_height,omitempty" yaml:"scene_height,omitempty"`
	FocalLength float64 `json:"focal_length,omitempty" yaml:"focal_length,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	// Address to serve /metrics on. Empty disables the endpoint.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
}

// Default returns a config that needs no model files: the webcam is run through the dark blob
// detector and a constant depth estimator.
func Default() *Config {
	cfg := &Config{
		Detector: DetectorConfig{Type: DetectorSimple},
		Depth:    DepthConfig{Type: DepthConstant},
	}
	if err := cfg.Ensure(); err != nil {
		panic(err)
	}
	return cfg
}

// Ensure fills defaults and validates the config.
func (c *Config) Ensure() error {
	if err := c.Camera.Validate("camera"); err != nil {
		return err
	}
	if err := c.Detector.Validate("detector"); err != nil {
		return err
	}
	if err := c.Depth.Validate("depth"); err != nil {
		return err
	}
	if err := c.Proximity.Validate("proximity"); err != nil {
		return err
	}
	if err := c.Output.Validate("output"); err != nil {
		return err
	}
	if err := c.Render.Validate("render"); err != nil {
		return err
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if _, err := logging.LevelFromString(c.LogLevel); err != nil {
		return utils.NewConfigValidationError("log_level", err)
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() logging.Level {
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// NeedsONNX reports whether any configured model runs on onnxruntime.
func (c *Config) NeedsONNX() bool {
	return c.Detector.Type == DetectorYOLO || c.Depth.Type == DepthMiDaS
}

// Validate fills defaults and checks the source settings.
func (cc *CameraConfig) Validate(path string) error {
	if cc.Type == "" {
		cc.Type = SourceCamera
	}
	switch cc.Type {
	case SourceCamera:
		if cc.Device < 0 {
			return utils.NewConfigValidationError(path, errors.Errorf("device must not be negative, got %d", cc.Device))
		}
	case SourceVideo:
		if cc.VideoPath == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "video_path")
		}
	case SourceFrames:
		if cc.FramesDir == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "frames_dir")
		}
	default:
		return utils.NewConfigValidationError(path, unknownTypeError(cc.Type, SourceCamera, SourceVideo, SourceFrames))
	}
	if cc.MaxFrames < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("max_frames must not be negative, got %d", cc.MaxFrames))
	}
	if cc.WindowTitle == "" {
		cc.WindowTitle = "proximity alarm"
	}
	return nil
}

// Validate checks the tensor overrides.
func (mc *ModelIOConfig) Validate(path string) error {
	for _, f := range []struct {
		name  string
		shape []int64
	}{
		{"input_shape", mc.InputShape},
		{"output_shape", mc.OutputShape},
	} {
		for _, dim := range f.shape {
			if dim <= 0 {
				return utils.NewConfigValidationError(path,
					errors.Errorf("%q dimensions must be positive, got %v", f.name, f.shape))
			}
		}
	}
	if len(mc.InputShape) != 0 && len(mc.InputShape) != 4 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("\"input_shape\" must be [N, C, H, W], got %v", mc.InputShape))
	}
	if mc.Threads < 0 {
		return utils.NewConfigValidationError(path, errors.New("threads must not be negative"))
	}
	return nil
}

// Session returns the settings used to load modelPath through the onnxruntime library at libPath.
func (mc ModelIOConfig) Session(modelPath, libPath string) inference.SessionConfig {
	return inference.SessionConfig{
		ModelPath:         modelPath,
		SharedLibraryPath: libPath,
		InputName:         mc.InputName,
		OutputName:        mc.OutputName,
		InputShape:        mc.InputShape,
		OutputShape:       mc.OutputShape,
		IntraOpThreads:    mc.Threads,
	}
}

// Validate fills defaults and checks the detector settings.
func (dc *DetectorConfig) Validate(path string) error {
	if dc.Type == "" {
		dc.Type = DetectorYOLO
	}
	switch dc.Type {
	case DetectorYOLO:
		if dc.ModelPath == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "model_path")
		}
	case DetectorSimple:
		if dc.DarkThreshold == 0 {
			dc.DarkThreshold = 40
		}
		if dc.Label == "" {
			dc.Label = "car"
		}
	default:
		return utils.NewConfigValidationError(path, unknownTypeError(dc.Type, DetectorYOLO, DetectorSimple))
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"confidence_threshold", dc.ConfidenceThreshold},
		{"iou_threshold", dc.IoUThreshold},
		{"min_score", dc.MinScore},
	} {
		if f.value < 0 || f.value > 1 {
			return utils.NewConfigValidationError(path, errors.Errorf("%q must be within [0, 1], got %v", f.name, f.value))
		}
	}
	if dc.DarkThreshold < 0 || dc.DarkThreshold > 256 {
		return utils.NewConfigValidationError(path, errors.Errorf("\"dark_threshold\" must be within [0, 256], got %v", dc.DarkThreshold))
	}
	if dc.MinArea < 0 {
		return utils.NewConfigValidationError(path, errors.New("min_area must not be negative"))
	}
	return dc.ModelIOConfig.Validate(path)
}

// Validate fills defaults and checks the depth settings.
func (dc *DepthConfig) Validate(path string) error {
	if dc.Type == "" {
		dc.Type = DepthMiDaS
	}
	switch dc.Type {
	case DepthMiDaS:
		if dc.ModelPath == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "model_path")
		}
		if len(dc.Mean) != len(dc.Std) || (len(dc.Mean) != 0 && len(dc.Mean) != 3) {
			return utils.NewConfigValidationError(path, errors.New("mean and std need three values each"))
		}
	case DepthConstant:
		if dc.Constant <= 0 {
			dc.Constant = 1
		}
	default:
		return utils.NewConfigValidationError(path, unknownTypeError(dc.Type, DepthMiDaS, DepthConstant))
	}
	return dc.ModelIOConfig.Validate(path)
}

// Validate fills defaults and checks the output settings.
func (oc *OutputConfig) Validate(path string) error {
	if oc.Dir == "" {
		oc.Dir = "."
	}
	if oc.PointCloudFormats == nil {
		oc.PointCloudFormats = []string{FormatPLY}
	}
	oc.PointCloudFormats = lo.Uniq(oc.PointCloudFormats)
	for _, f := range oc.PointCloudFormats {
		if f != FormatPLY && f != FormatPCD {
			return utils.NewConfigValidationError(path, unknownTypeError(f, FormatPLY, FormatPCD))
		}
	}
	if oc.Resolution < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("resolution must not be negative, got %v", oc.Resolution))
	}
	if oc.Resolution == 0 {
		oc.Resolution = viz.DefaultResolution
	}
	return nil
}

// Validate fills defaults and checks the render settings.
func (rc *RenderConfig) Validate(path string) error {
	if rc.QueueSize < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("queue_size must not be negative, got %d", rc.QueueSize))
	}
	if rc.QueueSize == 0 {
		rc.QueueSize = viz.DefaultQueueSize
	}
	if rc.Window {
		rc.Blocking = true
	}
	def := viz.DefaultSceneConfig()
	if rc.SceneWidth == 0 {
		rc.SceneWidth = def.Width
	}
	if rc.SceneHeight == 0 {
		rc.SceneHeight = def.Height
	}
	if rc.FocalLength == 0 {
		rc.FocalLength = def.FocalLength
	}
	if rc.SceneWidth < 0 || rc.SceneHeight < 0 || rc.FocalLength < 0 {
		return utils.NewConfigValidationError(path, errors.New("scene size and focal length must be positive"))
	}
	return nil
}

func unknownTypeError(got string, valid ...string) error {
	return errors.Errorf("unknown type %q, expected one of %s", got, fmt.Sprint(valid))
}
