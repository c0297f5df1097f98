package cli

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/proximity/components/camera"
	"go.viam.com/proximity/components/camera/fake"
	"go.viam.com/proximity/components/camera/gocvcamera"
	"go.viam.com/proximity/config"
	"go.viam.com/proximity/logging"
	"go.viam.com/proximity/metrics"
	"go.viam.com/proximity/ml/inference"
	"go.viam.com/proximity/proximity"
	"go.viam.com/proximity/utils"
	"go.viam.com/proximity/vision/depth"
	"go.viam.com/proximity/vision/objectdetection"
	"go.viam.com/proximity/viz"
)

// system owns every resource built from a config.
type system struct {
	runner  *proximity.Runner
	workers utils.StoppableWorkers
	closers []func() error
	logger  logging.Logger
}

func newSystem(ctx context.Context, cfg *config.Config, logger logging.Logger) (_ *system, err error) {
	sys := &system{logger: logger}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, sys.Close())
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Address != "" {
		m = metrics.New()
		sys.workers = utils.NewStoppableWorkersWithContext(ctx, func(ctx context.Context) {
			if err := m.Serve(ctx, cfg.Metrics.Address, logger.Sublogger("metrics")); err != nil {
				logger.Errorw("metrics server stopped", "error", err)
			}
		})
	}

	if cfg.NeedsONNX() {
		if err := inference.InitializeEnvironment(cfg.ONNXRuntimeLibrary); err != nil {
			return nil, err
		}
		sys.closers = append(sys.closers, inference.DestroyEnvironment)
	}

	source, err := newSource(cfg.Camera, logger.Sublogger("camera"))
	if err != nil {
		return nil, err
	}
	sys.closers = append(sys.closers, func() error { return source.Close(context.Background()) })

	det, err := sys.newDetector(cfg)
	if err != nil {
		return nil, err
	}
	est, err := sys.newEstimator(cfg)
	if err != nil {
		return nil, err
	}
	pipeline, err := proximity.NewPipeline(cfg.Proximity, det, est, logger.Sublogger("pipeline"))
	if err != nil {
		return nil, err
	}

	snapshots, err := proximity.NewSnapshotWriter(cfg.Output.Dir, nil)
	if err != nil {
		return nil, err
	}

	renderer, err := newRenderer(ctx, cfg, m, logger.Sublogger("viz"))
	if err != nil {
		return nil, err
	}
	// Closing the renderer flushes queued exports, so it closes first.
	sys.closers = append([]func() error{renderer.Close}, sys.closers...)

	var display camera.Display
	if cfg.Camera.Headless {
		display = &camera.HeadlessDisplay{}
	} else {
		display = gocvcamera.NewWindow(cfg.Camera.WindowTitle, 1)
	}
	sys.closers = append(sys.closers, display.Close)

	sys.runner = &proximity.Runner{
		Source:    source,
		Pipeline:  pipeline,
		Snapshots: snapshots,
		Renderer:  renderer,
		Display:   display,
		Metrics:   m,
		Logger:    logger,
		MaxFrames: cfg.Camera.MaxFrames,
	}
	return sys, nil
}

func (s *system) run(ctx context.Context) error {
	s.logger.Info("starting proximity alarm")
	if err := s.runner.Run(ctx); err != nil {
		return err
	}
	frames, alarms := s.runner.Stats()
	state := s.runner.State()
	s.logger.Infow("finished", "frames", frames, "alarms", alarms,
		"scale_factor", state.ScaleFactor, "calibrated", state.Calibrated)
	return nil
}

// Close releases resources in order. It is safe to call on a partially built system.
func (s *system) Close() error {
	var err error
	for _, closer := range s.closers {
		err = multierr.Combine(err, closer())
	}
	s.closers = nil
	if s.workers != nil {
		s.workers.Stop()
	}
	return err
}

func newSource(cfg config.CameraConfig, logger logging.Logger) (camera.VideoSource, error) {
	switch cfg.Type {
	case config.SourceFrames:
		return fake.NewImageDirSource(cfg.FramesDir, cfg.Loop)
	case config.SourceVideo:
		return gocvcamera.NewVideoFileSource(cfg.VideoPath, logger)
	case config.SourceCamera:
		return gocvcamera.NewCameraSource(cfg.Device, logger)
	}
	return nil, errors.Errorf("unknown camera type %q", cfg.Type)
}

func (s *system) newModel(cfg inference.SessionConfig) (inference.Model, error) {
	model, err := inference.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load model %q", cfg.ModelPath)
	}
	// Models close before the environment they were created in.
	s.closers = append([]func() error{model.Close}, s.closers...)
	s.logger.Debugw("loaded model", "path", cfg.ModelPath,
		"input_shape", model.InputShape(), "output_shape", model.OutputShape())
	return model, nil
}

func (s *system) newDetector(cfg *config.Config) (objectdetection.Detector, error) {
	dc := cfg.Detector
	var det objectdetection.Detector
	switch dc.Type {
	case config.DetectorYOLO:
		var labels []string
		if dc.LabelsPath != "" {
			var err error
			if labels, err = objectdetection.ReadLabels(dc.LabelsPath); err != nil {
				return nil, err
			}
		}
		model, err := s.newModel(dc.Session(dc.ModelPath, cfg.ONNXRuntimeLibrary))
		if err != nil {
			return nil, err
		}
		det, err = objectdetection.NewYOLODetector(model, objectdetection.YOLOConfig{
			Labels:              labels,
			ConfidenceThreshold: dc.ConfidenceThreshold,
			IoUThreshold:        dc.IoUThreshold,
		})
		if err != nil {
			return nil, err
		}
	case config.DetectorSimple:
		det = objectdetection.NewSimpleDetector(dc.DarkThreshold, dc.Label)
	default:
		return nil, errors.Errorf("unknown detector type %q", dc.Type)
	}

	return objectdetection.Build(nil, det, newPostprocessor(dc))
}

// newPostprocessor filters detections by score, area and class, skipping unset filters.
func newPostprocessor(dc config.DetectorConfig) objectdetection.Postprocessor {
	var posts []objectdetection.Postprocessor
	if dc.MinScore > 0 {
		posts = append(posts, objectdetection.NewScoreFilter(dc.MinScore))
	}
	if dc.MinArea > 0 {
		posts = append(posts, objectdetection.NewAreaFilter(dc.MinArea))
	}
	if len(dc.Classes) > 0 {
		posts = append(posts, objectdetection.NewLabelFilter(dc.Classes))
	}
	return objectdetection.Chain(posts...)
}

func (s *system) newEstimator(cfg *config.Config) (depth.Estimator, error) {
	dc := cfg.Depth
	switch dc.Type {
	case config.DepthMiDaS:
		model, err := s.newModel(dc.Session(dc.ModelPath, cfg.ONNXRuntimeLibrary))
		if err != nil {
			return nil, err
		}
		return depth.NewMiDaSEstimator(model, depth.MiDaSConfig{Mean: dc.Mean, Std: dc.Std})
	case config.DepthConstant:
		return depth.NewConstantEstimator(dc.Constant)
	}
	return nil, errors.Errorf("unknown depth type %q", dc.Type)
}

func newRenderer(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger logging.Logger) (viz.Renderer, error) {
	var renderers []viz.Renderer
	for _, format := range cfg.Output.PointCloudFormats {
		var exporter *viz.CloudExporter
		var err error
		switch format {
		case config.FormatPLY:
			exporter, err = viz.NewPLYExporter(cfg.Output.Dir, cfg.Output.Resolution, logger)
		case config.FormatPCD:
			exporter, err = viz.NewPCDExporter(cfg.Output.Dir, cfg.Output.Resolution, logger)
		default:
			err = errors.Errorf("unknown point cloud format %q", format)
		}
		if err != nil {
			return nil, err
		}
		renderers = append(renderers, exporter)
	}

	if cfg.Output.Scene || cfg.Render.Window {
		sceneCfg := viz.SceneConfig{
			Width:       cfg.Render.SceneWidth,
			Height:      cfg.Render.SceneHeight,
			FocalLength: cfg.Render.FocalLength,
		}
		if cfg.Output.Scene {
			sceneCfg.Dir = cfg.Output.Dir
		}
		var view viz.ViewFunc
		if cfg.Render.Window {
			view = gocvcamera.Viewer{Title: "proximity markers"}.View
		}
		scene, err := viz.NewSceneRenderer(sceneCfg, nil, view, logger)
		if err != nil {
			return nil, err
		}
		renderers = append(renderers, scene)
	}

	renderer := viz.Multi(renderers...)
	if cfg.Render.Blocking {
		return renderer, nil
	}
	return viz.NewAsyncRenderer(ctx, renderer, cfg.Render.QueueSize, m.IncRenderDropped, logger)
}
