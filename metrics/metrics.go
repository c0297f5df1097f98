// Package metrics exposes Prometheus instrumentation for the proximity alarm.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.viam.com/proximity/logging"
)

const namespace = "proximity"

// Metrics holds the collectors updated by the frame loop. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	FramesProcessed   prometheus.Counter
	Detections        *prometheus.CounterVec
	Alarms            prometheus.Counter
	SkippedDetections prometheus.Counter
	ScaleFactor       prometheus.Gauge
	FrameDuration     prometheus.Histogram
	RenderDropped     prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Frames run through the detection pipeline.",
		}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Non-ignored detections by class label.",
		}, []string{"label"}),
		Alarms: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_total",
			Help:      "Proximity alarms raised.",
		}),
		SkippedDetections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_detections_total",
			Help:      "Detections skipped because their crop was empty.",
		}),
		ScaleFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scale_factor",
			Help:      "Current depth to distance scale factor.",
		}),
		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Time spent processing one frame.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		RenderDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_dropped_total",
			Help:      "Marker render requests dropped because the render queue was full.",
		}),
	}
	m.registry.MustRegister(
		m.FramesProcessed,
		m.Detections,
		m.Alarms,
		m.SkippedDetections,
		m.ScaleFactor,
		m.FrameDuration,
		m.RenderDropped,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFrame records one processed frame.
func (m *Metrics) ObserveFrame(duration time.Duration, labels []string, alarms, skipped int, scaleFactor float64) {
	if m == nil {
		return
	}
	m.FramesProcessed.Inc()
	for _, l := range labels {
		m.Detections.WithLabelValues(l).Inc()
	}
	m.Alarms.Add(float64(alarms))
	m.SkippedDetections.Add(float64(skipped))
	m.ScaleFactor.Set(scaleFactor)
	m.FrameDuration.Observe(duration.Seconds())
}

// IncRenderDropped records a dropped render request.
func (m *Metrics) IncRenderDropped() {
	if m == nil {
		return
	}
	m.RenderDropped.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve listens on addr and serves /metrics until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger logging.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "cannot listen on %q", addr)
	}
	return m.serve(ctx, lis, logger)
}

func (m *Metrics) serve(ctx context.Context, lis net.Listener, logger logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()
	logger.Infow("serving metrics", "address", lis.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
