package viz

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/proximity/logging"
	"go.viam.com/proximity/spatialmath"
	"go.viam.com/proximity/utils"
)

// DefaultQueueSize is the number of pending render requests an AsyncRenderer holds.
const DefaultQueueSize = 4

// ErrRendererClosed is returned when rendering after Close.
var ErrRendererClosed = errors.New("renderer is closed")

// AsyncRenderer hands markers to another Renderer on a background worker. Render never blocks;
// when the queue is full the request is dropped. The worker's context ends when the parent
// context passed to NewAsyncRenderer is done or when Close is called.
type AsyncRenderer struct {
	inner  Renderer
	queue  chan []spatialmath.Geometry
	onDrop func()
	logger logging.Logger

	workers utils.StoppableWorkers

	mu     sync.RWMutex
	closed bool

	rendered *atomic.Int64
	dropped  *atomic.Int64
	failed   *atomic.Int64
}

// NewAsyncRenderer starts the worker under ctx. onDrop, if set, is called for every dropped
// request.
func NewAsyncRenderer(
	ctx context.Context,
	inner Renderer,
	queueSize int,
	onDrop func(),
	logger logging.Logger,
) (*AsyncRenderer, error) {
	if inner == nil {
		return nil, errors.New("async renderer needs a renderer to wrap")
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	r := &AsyncRenderer{
		inner:    inner,
		queue:    make(chan []spatialmath.Geometry, queueSize),
		onDrop:   onDrop,
		logger:   logger,
		rendered: atomic.NewInt64(0),
		dropped:  atomic.NewInt64(0),
		failed:   atomic.NewInt64(0),
	}
	r.workers = utils.NewStoppableWorkersWithContext(ctx, r.work)
	return r, nil
}

// work renders until the queue is closed. Requests still queued after ctx is done are handed
// the done context.
func (r *AsyncRenderer) work(ctx context.Context) {
	for markers := range r.queue {
		if err := r.inner.Render(ctx, markers); err != nil {
			r.failed.Inc()
			r.logger.Warnw("rendering markers failed", "error", err, "markers", len(markers))
			continue
		}
		r.rendered.Inc()
	}
}

// Render queues a copy of the markers.
func (r *AsyncRenderer) Render(ctx context.Context, markers []spatialmath.Geometry) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRendererClosed
	}
	if len(markers) == 0 {
		return nil
	}
	req := make([]spatialmath.Geometry, len(markers))
	copy(req, markers)
	select {
	case r.queue <- req:
	default:
		r.dropped.Inc()
		if r.onDrop != nil {
			r.onDrop()
		}
		r.logger.Debugw("render queue full, dropping markers", "markers", len(markers))
	}
	return nil
}

// Rendered returns the number of requests the wrapped renderer completed.
func (r *AsyncRenderer) Rendered() int64 {
	return r.rendered.Load()
}

// Dropped returns the number of requests dropped because the queue was full.
func (r *AsyncRenderer) Dropped() int64 {
	return r.dropped.Load()
}

// Failed returns the number of requests the wrapped renderer failed.
func (r *AsyncRenderer) Failed() int64 {
	return r.failed.Load()
}

// Close cancels the worker's context, waits for it to hand over everything still queued and
// closes the wrapped renderer. A render blocked on its context returns right away.
func (r *AsyncRenderer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.workers.Stop()
	return r.inner.Close()
}
