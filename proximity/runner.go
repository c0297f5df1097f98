package proximity

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/proximity/components/camera"
	"go.viam.com/proximity/logging"
	"go.viam.com/proximity/metrics"
	"go.viam.com/proximity/utils"
	"go.viam.com/proximity/viz"
)

const (
	frameTimeWindow = 30
	frameStatsEvery = 100
)

// Runner drives the pipeline frame by frame: it reads a frame, processes it, saves a screenshot
// for each alarm, submits the frame's markers for rendering, annotates and shows the frame.
type Runner struct {
	Source   camera.VideoSource
	Pipeline *Pipeline
	// Snapshots may be nil to skip screenshots.
	Snapshots *SnapshotWriter
	// Renderer may be nil to skip marker rendering.
	Renderer viz.Renderer
	// Display may be nil to run without showing frames.
	Display camera.Display
	// Metrics may be nil.
	Metrics *metrics.Metrics
	Logger  logging.Logger
	// Clock times frames. Defaults to the wall clock.
	Clock clock.Clock
	// MaxFrames stops the run after that many frames when positive.
	MaxFrames int
	// OnFrame, if set, is called after every processed frame.
	OnFrame func(frame image.Image, result *FrameResult)

	mu      sync.Mutex
	state   CalibrationState
	started bool
	frames  int
	alarms  int
}

// State returns the calibration state after the last processed frame.
func (r *Runner) State() CalibrationState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stats returns the number of frames processed and alarms raised so far.
func (r *Runner) Stats() (frames, alarms int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames, r.alarms
}

// Run processes frames until the source ends, the display asks to quit, MaxFrames is reached or
// ctx is done. The first three are clean exits and return nil.
func (r *Runner) Run(ctx context.Context) error {
	if r.Source == nil || r.Pipeline == nil || r.Logger == nil {
		return errors.New("runner needs a source, a pipeline and a logger")
	}
	if r.Clock == nil {
		r.Clock = clock.New()
	}
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("runner already started")
	}
	r.started = true
	r.state = NewCalibrationState(r.Pipeline.Config().DefaultScaleFactor)
	r.mu.Unlock()

	frameTimes := utils.NewRollingAverage(frameTimeWindow)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := r.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, camera.ErrEndOfStream) {
				r.Logger.Info("end of stream")
			} else {
				r.Logger.Warnw("cannot read frame, stopping", "error", err)
			}
			return nil
		}

		quit, err := r.processFrame(ctx, frame, frameTimes)
		if err != nil {
			return err
		}
		if quit {
			r.Logger.Info("quit requested")
			return nil
		}
		if r.MaxFrames > 0 {
			if frames, _ := r.Stats(); frames >= r.MaxFrames {
				return nil
			}
		}
	}
}

func (r *Runner) processFrame(ctx context.Context, frame image.Image, frameTimes *utils.RollingAverage) (bool, error) {
	start := r.Clock.Now()
	result, state, err := r.Pipeline.ProcessFrame(ctx, frame, r.State())
	if err != nil {
		return false, err
	}

	cfg := r.Pipeline.Config()
	for i := range result.Alarms {
		alarm := &result.Alarms[i]
		if r.Snapshots != nil {
			path, err := r.Snapshots.Save(frame)
			if err != nil {
				return false, err
			}
			alarm.SnapshotPath = path
			if alarm.Object.Depth != nil {
				if alarm.DepthSnapshotPath, err = r.Snapshots.SaveDepth(alarm.Object.Depth); err != nil {
					return false, err
				}
			}
		}
		r.Logger.Warnw("ALARM: vehicle closer than threshold",
			"id", alarm.ID.String(),
			"label", alarm.Object.Label(),
			"distance", cfg.FormatDistance(alarm.Object.Distance),
			"provisional", alarm.Object.Provisional,
			"snapshot", alarm.SnapshotPath,
			"depth_snapshot", alarm.DepthSnapshotPath)
	}

	if len(result.Markers) > 0 && r.Renderer != nil {
		if err := r.Renderer.Render(ctx, result.Markers); err != nil {
			return false, errors.Wrap(err, "cannot render markers")
		}
	}

	annotated := Annotate(frame, result.Objects, cfg)
	elapsed := r.Clock.Since(start)

	r.mu.Lock()
	r.state = state
	r.frames++
	r.alarms += len(result.Alarms)
	frames := r.frames
	r.mu.Unlock()

	r.Metrics.ObserveFrame(elapsed, result.Labels(), len(result.Alarms), result.Skipped, state.ScaleFactor)
	frameTimes.Add(elapsed.Seconds())
	if frames%frameStatsEvery == 0 {
		r.Logger.Debugw("frame stats",
			"frames", frames,
			"avg_frame_time", time.Duration(frameTimes.Average()*float64(time.Second)).String(),
			"scale_factor", state.ScaleFactor)
	}

	if r.OnFrame != nil {
		r.OnFrame(annotated, result)
	}
	if r.Display == nil {
		return false, nil
	}
	quit, err := r.Display.Show(annotated)
	if err != nil {
		return false, errors.Wrap(err, "cannot show frame")
	}
	return quit, nil
}
