//go:build no_cgo

// Package gocvcamera implements camera sources and displays on top of OpenCV.
package gocvcamera

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"go.viam.com/proximity/logging"
)

// QuitKey is the key that ends the session when pressed in a window.
const QuitKey = 'q'

var errNoCgo = errors.New("OpenCV support requires cgo")

// Source reads frames from a webcam or video file.
type Source struct{}

// NewCameraSource is unavailable without cgo.
func NewCameraSource(deviceID int, logger logging.Logger) (*Source, error) {
	return nil, errNoCgo
}

// NewVideoFileSource is unavailable without cgo.
func NewVideoFileSource(path string, logger logging.Logger) (*Source, error) {
	return nil, errNoCgo
}

// Next always fails.
func (s *Source) Next(ctx context.Context) (image.Image, error) {
	return nil, errNoCgo
}

// Close does nothing.
func (s *Source) Close(ctx context.Context) error {
	return nil
}

// Window is a Display backed by a HighGUI window.
type Window struct{}

// NewWindow returns a window whose Show always fails.
func NewWindow(title string, delayMS int) *Window {
	return &Window{}
}

// Show always fails.
func (w *Window) Show(img image.Image) (bool, error) {
	return false, errNoCgo
}

// Close does nothing.
func (w *Window) Close() error {
	return nil
}

// Viewer shows one image per call in its own window.
type Viewer struct {
	Title string
}

// View always fails.
func (v Viewer) View(ctx context.Context, img image.Image) error {
	return errNoCgo
}
