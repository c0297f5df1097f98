// Package camera defines the frame sources and displays the proximity alarm reads from and
// draws to.
package camera

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
)

// ErrEndOfStream is returned by a VideoSource once it has no more frames to deliver.
var ErrEndOfStream = errors.New("end of stream")

// A VideoSource produces frames one at a time.
type VideoSource interface {
	// Next blocks until the next frame is available. It returns ErrEndOfStream when the source
	// is exhausted.
	Next(ctx context.Context) (image.Image, error)
	Close(ctx context.Context) error
}

// A Display shows annotated frames to the operator.
type Display interface {
	// Show draws the image and reports whether the operator asked to quit.
	Show(img image.Image) (quit bool, err error)
	Close() error
}

// HeadlessDisplay is a Display that shows nothing. It quits once it has been shown MaxFrames
// frames, or never when MaxFrames is zero.
type HeadlessDisplay struct {
	MaxFrames int

	mu     sync.Mutex
	shown  int
	closed bool
}

// Show counts the frame and reports quit once MaxFrames is reached.
func (d *HeadlessDisplay) Show(img image.Image) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, errors.New("display is closed")
	}
	if img == nil {
		return false, errors.New("cannot show a nil image")
	}
	d.shown++
	return d.MaxFrames > 0 && d.shown >= d.MaxFrames, nil
}

// Shown returns how many frames have been shown.
func (d *HeadlessDisplay) Shown() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown
}

// Close marks the display closed.
func (d *HeadlessDisplay) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}
