package rimage

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// Color is an RGB color that also carries its HSV representation.
type Color struct {
	R, G, B uint8
	H, S, V float64
}

func (c Color) String() string {
	return fmt.Sprintf("%s (%3d,%4.2f,%4.2f)", c.Hex(), int(c.H), c.S, c.V)
}

// Hex returns the #rrggbb form of the color.
func (c Color) Hex() string {
	return fmt.Sprintf("#%.2x%.2x%.2x", c.R, c.G, c.B)
}

// RGBA implements color.Color. Colors are always opaque.
func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R)
	r |= r << 8
	g = uint32(c.G)
	g |= g << 8
	b = uint32(c.B)
	b |= b << 8
	a = 0xffff
	return
}

// RGB255 returns the 8 bit channels.
func (c Color) RGB255() (uint8, uint8, uint8) {
	return c.R, c.G, c.B
}

// NewColor builds a Color from 8 bit channels.
func NewColor(r, g, b uint8) Color {
	cc := colorful.Color{
		R: float64(r) / 255.0,
		G: float64(g) / 255.0,
		B: float64(b) / 255.0,
	}
	h, s, v := cc.Hsv()

	return Color{R: r, G: g, B: b, H: h, S: s, V: v}
}

// NewColorFromHex parses a #rrggbb string.
func NewColorFromHex(hex string) (Color, error) {
	cc, err := colorful.Hex(hex)
	if err != nil {
		return Color{}, errors.Wrapf(err, "couldn't parse hex %q", hex)
	}
	r, g, b := cc.RGB255()
	return NewColor(r, g, b), nil
}

// NewColorFromHSV builds a Color from hue in degrees, and saturation and value in [0, 1].
func NewColorFromHSV(h, s, v float64) Color {
	cc := colorful.Hsv(h, s, v)
	r, g, b := cc.Clamped().RGB255()
	return Color{R: r, G: g, B: b, H: h, S: s, V: v}
}

// NewColorFromColor converts any color.Color.
func NewColorFromColor(c color.Color) Color {
	if cc, ok := c.(Color); ok {
		return cc
	}
	cc, ok := colorful.MakeColor(c)
	if !ok {
		// Fully transparent colors have no defined RGB.
		return Black
	}
	r, g, b := cc.RGB255()
	return NewColor(r, g, b)
}

// Named colors used by the annotator and the marker renderers.
var (
	Red    = NewColor(255, 0, 0)
	Green  = NewColor(0, 255, 0)
	Blue   = NewColor(0, 0, 255)
	White  = NewColor(255, 255, 255)
	Gray   = NewColor(128, 128, 128)
	Black  = NewColor(0, 0, 0)
	Yellow = NewColor(255, 255, 0)
)
