package overlay

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/MeKo-Tech/cellgrid/internal/utils"
)

// Style controls coverage rendering.
type Style struct {
	Box       color.Color
	Selected  color.Color
	Tagged    color.NRGBA
	Thickness int
}

// DefaultStyle outlines regions in blue, the selection in red and shades
// tagged regions green.
func DefaultStyle() Style {
	return Style{
		Box:       color.RGBA{0, 102, 255, 255},
		Selected:  color.RGBA{255, 0, 0, 255},
		Tagged:    color.NRGBA{R: 0, G: 200, B: 80, A: 90},
		Thickness: 2,
	}
}

// Render draws every region over a copy of img.
func Render(img image.Image, regions []Region, style Style) *image.RGBA {
	if img == nil {
		return nil
	}
	dst := utils.CloneRGBA(img)
	bounds := dst.Bounds()

	for _, r := range regions {
		rect := utils.FractionRect(r.Box.Left, r.Box.Top, r.Box.Width, r.Box.Height, bounds)
		if r.Tagged {
			utils.FillRect(dst, rect, style.Tagged)
		}
		if r.Selected {
			utils.DrawRect(dst, rect, style.Selected, style.Thickness+1)
			continue
		}
		utils.DrawRect(dst, rect, style.Box, style.Thickness)
	}
	return dst
}

// ParseHexColor parses colors like "#RRGGBB" or "RRGGBB".
func ParseHexColor(s string) (color.RGBA, bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{}, false
	}
	var r, g, b uint8
	if n, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil || n != 3 {
		return color.RGBA{}, false
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, true
}
