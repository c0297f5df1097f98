package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.viam.com/test"

	"go.viam.com/proximity/logging"
)

func TestObserveFrame(t *testing.T) {
	m := New()
	m.ObserveFrame(20*time.Millisecond, []string{"car", "car", "person"}, 1, 2, 0.5)
	m.ObserveFrame(10*time.Millisecond, nil, 0, 0, 0.25)
	m.IncRenderDropped()

	test.That(t, testutil.ToFloat64(m.FramesProcessed), test.ShouldEqual, 2)
	test.That(t, testutil.ToFloat64(m.Detections.WithLabelValues("car")), test.ShouldEqual, 2)
	test.That(t, testutil.ToFloat64(m.Detections.WithLabelValues("person")), test.ShouldEqual, 1)
	test.That(t, testutil.ToFloat64(m.Alarms), test.ShouldEqual, 1)
	test.That(t, testutil.ToFloat64(m.SkippedDetections), test.ShouldEqual, 2)
	test.That(t, testutil.ToFloat64(m.ScaleFactor), test.ShouldEqual, 0.25)
	test.That(t, testutil.ToFloat64(m.RenderDropped), test.ShouldEqual, 1)
	test.That(t, testutil.CollectAndCount(m.FrameDuration), test.ShouldEqual, 1)

	var nilMetrics *Metrics
	nilMetrics.ObserveFrame(time.Second, []string{"car"}, 1, 0, 1)
	nilMetrics.IncRenderDropped()
}

func TestServe(t *testing.T) {
	m := New()
	m.ObserveFrame(time.Millisecond, []string{"truck"}, 1, 0, 2)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.serve(ctx, lis, logging.NewTestLogger(t))
	}()

	resp, err := http.Get("http://" + lis.Addr().String() + "/metrics")
	test.That(t, err, test.ShouldBeNil)
	body, err := io.ReadAll(resp.Body)
	test.That(t, resp.Body.Close(), test.ShouldBeNil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.Contains(string(body), `proximity_detections_total{label="truck"} 1`), test.ShouldBeTrue)
	test.That(t, strings.Contains(string(body), "proximity_scale_factor 2"), test.ShouldBeTrue)

	cancel()
	test.That(t, <-done, test.ShouldBeNil)
}
