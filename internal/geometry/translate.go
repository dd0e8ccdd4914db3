// Package geometry converts rectangles drawn over a scale-to-fit image
// display into source image pixels and crops the result.
package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// MinSelectionPx is the default noise threshold: translated selections whose
// width or height do not exceed it are discarded.
const MinSelectionPx = 5

var (
	// ErrSelectionTooSmall reports a selection at or below the noise threshold.
	ErrSelectionTooSmall = errors.New("selection too small")
	// ErrInvalidSize reports a non-positive display or image size.
	ErrInvalidSize = errors.New("invalid size")
)

// Rect is a rectangle in display coordinates relative to the image container.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Size is a width and height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PixelRect is a rectangle in source image pixels.
type PixelRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rectangle converts to an image.Rectangle.
func (p PixelRect) Rectangle() image.Rectangle {
	return image.Rect(p.X, p.Y, p.X+p.Width, p.Y+p.Height)
}

func (p PixelRect) String() string {
	return fmt.Sprintf("%d,%d %dx%d", p.X, p.Y, p.Width, p.Height)
}

// Normalize builds the rectangle spanned by a drag from (x0, y0) to (x1, y1).
func Normalize(x0, y0, x1, y1 float64) Rect {
	return Rect{
		X:      math.Min(x0, x1),
		Y:      math.Min(y0, y1),
		Width:  math.Abs(x1 - x0),
		Height: math.Abs(y1 - y0),
	}
}

// Translate maps a rectangle drawn over a display box into source pixels,
// using MinSelectionPx as the noise threshold.
func Translate(drawn Rect, display, natural Size) (PixelRect, error) {
	return Translator{MinPx: MinSelectionPx}.Translate(drawn, display, natural)
}

// Translator carries the noise threshold used when translating selections.
type Translator struct {
	MinPx int
}

// Translate maps drawn into source pixels. The image is assumed to be
// uniformly scaled to fit the display box and centered in it.
func (t Translator) Translate(drawn Rect, display, natural Size) (PixelRect, error) {
	if display.Width <= 0 || display.Height <= 0 || natural.Width <= 0 || natural.Height <= 0 {
		return PixelRect{}, ErrInvalidSize
	}

	naturalRatio := natural.Width / natural.Height
	displayRatio := display.Width / display.Height

	var renderedWidth, renderedHeight, offsetX, offsetY float64
	if naturalRatio > displayRatio {
		// width-constrained: bars above and below
		renderedWidth = display.Width
		renderedHeight = display.Width / naturalRatio
		offsetY = (display.Height - renderedHeight) / 2
	} else {
		// height-constrained: bars left and right
		renderedHeight = display.Height
		renderedWidth = display.Height * naturalRatio
		offsetX = (display.Width - renderedWidth) / 2
	}

	scale := natural.Width / renderedWidth

	out := PixelRect{
		X:      round((drawn.X - offsetX) * scale),
		Y:      round((drawn.Y - offsetY) * scale),
		Width:  round(drawn.Width * scale),
		Height: round(drawn.Height * scale),
	}

	if out.Width <= t.MinPx || out.Height <= t.MinPx {
		return PixelRect{}, fmt.Errorf("%w: %dx%d px", ErrSelectionTooSmall, out.Width, out.Height)
	}
	return out, nil
}

// Clamp intersects p with an image of the given size. The result is checked
// against the noise threshold again since clamping can shrink it.
func (t Translator) Clamp(p PixelRect, width, height int) (PixelRect, error) {
	r := p.Rectangle().Intersect(image.Rect(0, 0, width, height))
	out := PixelRect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
	if out.Width <= t.MinPx || out.Height <= t.MinPx {
		return PixelRect{}, fmt.Errorf("%w: %dx%d px inside image", ErrSelectionTooSmall, out.Width, out.Height)
	}
	return out, nil
}

// round rounds half toward positive infinity.
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}
