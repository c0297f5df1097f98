//go:build !no_cgo

// Package gocvcamera implements camera sources and displays on top of OpenCV.
package gocvcamera

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"go.viam.com/proximity/components/camera"
	"go.viam.com/proximity/logging"
)

// QuitKey is the key that ends the session when pressed in a window.
const QuitKey = 'q'

// Source reads frames from a webcam or video file.
type Source struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	frame   gocv.Mat
	logger  logging.Logger
}

// NewCameraSource opens the webcam with the given device index.
func NewCameraSource(deviceID int, logger logging.Logger) (*Source, error) {
	return open(deviceID, logger)
}

// NewVideoFileSource opens a video file.
func NewVideoFileSource(path string, logger logging.Logger) (*Source, error) {
	if path == "" {
		return nil, errors.New("video path is required")
	}
	return open(path, logger)
}

func open(device interface{}, logger logging.Logger) (*Source, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open video capture %v", device)
	}
	if !capture.IsOpened() {
		//nolint:errcheck
		capture.Close()
		return nil, errors.Errorf("video capture %v is not opened", device)
	}
	logger.Debugw("opened video capture", "device", device)
	return &Source{capture: capture, frame: gocv.NewMat(), logger: logger}, nil
}

// Next reads one frame. A failed read or an empty frame ends the stream.
func (s *Source) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture == nil {
		return nil, errors.New("video capture is closed")
	}
	if !s.capture.Read(&s.frame) || s.frame.Empty() {
		return nil, camera.ErrEndOfStream
	}
	img, err := s.frame.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "cannot convert frame")
	}
	return img, nil
}

// Close releases the capture device.
func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture == nil {
		return nil
	}
	err := multierr.Combine(s.capture.Close(), s.frame.Close())
	s.capture = nil
	return err
}

// Window is a Display backed by a HighGUI window.
type Window struct {
	window *gocv.Window
	delay  int
}

// NewWindow opens a named window. Show waits delayMS milliseconds for a key press.
func NewWindow(title string, delayMS int) *Window {
	if delayMS <= 0 {
		delayMS = 1
	}
	return &Window{window: gocv.NewWindow(title), delay: delayMS}
}

// Show draws the image and reports whether the quit key was pressed.
func (w *Window) Show(img image.Image) (bool, error) {
	if img == nil {
		return false, errors.New("cannot show a nil image")
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return false, errors.Wrap(err, "cannot convert image")
	}
	defer mat.Close()
	w.window.IMShow(mat)
	key := w.window.WaitKey(w.delay)
	return key == QuitKey, nil
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.window.Close()
}

// Viewer shows one image per call in its own window and waits for any key before returning.
type Viewer struct {
	Title string
}

// View blocks until a key is pressed or ctx is done.
func (v Viewer) View(ctx context.Context, img image.Image) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "cannot convert image")
	}
	defer mat.Close()
	window := gocv.NewWindow(v.Title)
	defer window.Close()
	window.IMShow(mat)
	for ctx.Err() == nil {
		if window.WaitKey(50) >= 0 {
			return nil
		}
	}
	return ctx.Err()
}

var (
	_ camera.VideoSource = (*Source)(nil)
	_ camera.Display     = (*Window)(nil)
)
