// Package viz renders and exports the 3D markers raised by proximity alarms.
package viz

import (
	"context"

	"go.uber.org/multierr"

	"go.viam.com/proximity/spatialmath"
)

// A Renderer consumes the markers produced for one frame.
type Renderer interface {
	Render(ctx context.Context, markers []spatialmath.Geometry) error
	Close() error
}

type multiRenderer []Renderer

// Multi returns a Renderer that hands the markers to every renderer in order. Every renderer is
// called even if an earlier one fails; the errors are combined.
func Multi(renderers ...Renderer) Renderer {
	flat := make(multiRenderer, 0, len(renderers))
	for _, r := range renderers {
		if r == nil {
			continue
		}
		if m, ok := r.(multiRenderer); ok {
			flat = append(flat, m...)
			continue
		}
		flat = append(flat, r)
	}
	return flat
}

func (m multiRenderer) Render(ctx context.Context, markers []spatialmath.Geometry) error {
	var err error
	for _, r := range m {
		err = multierr.Combine(err, r.Render(ctx, markers))
	}
	return err
}

func (m multiRenderer) Close() error {
	var err error
	for _, r := range m {
		err = multierr.Combine(err, r.Close())
	}
	return err
}
