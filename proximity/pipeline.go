package proximity

import (
	"context"
	"image"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/proximity/logging"
	"go.viam.com/proximity/spatialmath"
	"go.viam.com/proximity/vision/depth"
	"go.viam.com/proximity/vision/objectdetection"
)

// FrameResult is everything the pipeline derived from one frame.
type FrameResult struct {
	// Objects are the non-ignored detections in detector order.
	Objects []Object
	Alarms  []Alarm
	// Markers holds one marker per alarm, in alarm order.
	Markers []spatialmath.Geometry
	// Skipped counts detections whose box had no pixels inside the frame.
	Skipped int
	// Calibrations counts the calibration samples accepted during the frame.
	Calibrations int
}

// Labels returns the labels of the objects.
func (r *FrameResult) Labels() []string {
	labels := make([]string, 0, len(r.Objects))
	for _, o := range r.Objects {
		labels = append(labels, o.Label())
	}
	return labels
}

// Pipeline turns frames into objects, calibration updates and alarms.
type Pipeline struct {
	cfg      Config
	detect   objectdetection.Detector
	estimate depth.Estimator
	logger   logging.Logger
}

// NewPipeline validates cfg and returns a pipeline using the given detector and depth estimator.
func NewPipeline(cfg Config, det objectdetection.Detector, est depth.Estimator, logger logging.Logger) (*Pipeline, error) {
	if det == nil {
		return nil, errors.New("pipeline needs a detector")
	}
	if est == nil {
		return nil, errors.New("pipeline needs a depth estimator")
	}
	if err := cfg.Validate("proximity"); err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, detect: det, estimate: est, logger: logger}, nil
}

// Config returns the validated configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// ProcessFrame detects objects in frame, estimates their distance and decides on alarms. The
// calibration state is threaded through: each vehicle with a usable depth recalibrates before
// its own distance is computed, and the final state is returned. Detector and depth errors are
// returned as is; a detection whose box lies outside the frame is skipped.
func (p *Pipeline) ProcessFrame(
	ctx context.Context,
	frame image.Image,
	state CalibrationState,
) (*FrameResult, CalibrationState, error) {
	if frame == nil {
		return nil, state, errors.New("cannot process a nil frame")
	}
	detections, err := p.detect(ctx, frame)
	if err != nil {
		return nil, state, errors.Wrap(err, "detection failed")
	}

	result := &FrameResult{}
	threshold := p.cfg.Threshold()
	for _, det := range detections {
		label := det.Label()
		if p.cfg.IsIgnored(label) {
			continue
		}

		box := *det.BoundingBox()
		region, err := depth.Region(ctx, p.estimate, frame, box)
		if err != nil {
			if errors.Is(err, depth.ErrEmptyRegion) {
				result.Skipped++
				p.logger.Debugw("skipping detection with empty crop", "label", label, "box", box.String())
				continue
			}
			return nil, state, errors.Wrapf(err, "depth estimation failed for %s", label)
		}
		meanDepth, err := region.Mean()
		if err != nil {
			return nil, state, errors.Wrapf(err, "depth estimation failed for %s", label)
		}

		vehicle := p.cfg.IsVehicle(label)
		rejected := false
		if vehicle {
			next, ok := state.Calibrate(true, meanDepth, p.cfg.ReferenceDistanceM)
			if ok {
				state = next
				result.Calibrations++
				p.logger.Debugw("calibration updated", "label", label, "mean_depth", meanDepth, "scale_factor", state.ScaleFactor)
			} else {
				rejected = true
				p.logger.Warnw("rejected calibration sample", "label", label, "mean_depth", meanDepth)
			}
		}

		obj := Object{
			Detection:   det,
			MeanDepth:   meanDepth,
			Distance:    state.Distance(meanDepth, p.cfg.UnitConversion),
			Vehicle:     vehicle,
			Provisional: !state.Calibrated,
			Depth:       region,
		}
		result.Objects = append(result.Objects, obj)

		if !ShouldAlarm(obj, threshold) {
			continue
		}
		if rejected {
			p.logger.Warnw("alarm raised from a rejected depth sample",
				"label", label, "mean_depth", meanDepth, "distance", obj.Distance, "provisional", obj.Provisional)
		}
		marker, err := NewMarker(obj, p.cfg.MarkerSize)
		if err != nil {
			return nil, state, errors.Wrapf(err, "cannot build marker for %s", label)
		}
		result.Alarms = append(result.Alarms, Alarm{ID: uuid.New(), Object: obj, Marker: marker})
		result.Markers = append(result.Markers, marker)
	}
	return result, state, nil
}
