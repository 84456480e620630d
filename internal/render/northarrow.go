package render

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/cartoprint/api/internal/model"
)

var northArrowColor = color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 255}

// drawNorthArrow overlays a north arrow: an upward triangle with an "N"
// label underneath, anchored in the configured corner, 0.8 alpha.
func drawNorthArrow(dst *image.RGBA, position model.Position) {
	const (
		margin      = 10
		arrowWidth  = 16
		arrowHeight = 18
		labelGap    = 14
	)

	bounds := dst.Bounds()
	overlay := image.NewRGBA(bounds)

	x := float64(margin)
	if position == model.PositionTopRight || position == model.PositionBottomRight {
		x = float64(bounds.Dx() - margin - arrowWidth)
	}
	y := float64(margin)
	if position == model.PositionBottomLeft || position == model.PositionBottomRight {
		y = float64(bounds.Dy() - margin - arrowHeight - labelGap)
	}

	fillRings(overlay, [][][2]float64{{
		{x + arrowWidth/2, y},
		{x + arrowWidth, y + arrowHeight},
		{x, y + arrowHeight},
	}}, northArrowColor)

	drawer := &font.Drawer{
		Dst:  overlay,
		Src:  image.NewUniform(northArrowColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(x)+arrowWidth/2-3, int(y)+arrowHeight+labelGap-2),
	}
	drawer.DrawString("N")

	overlayWithAlpha(dst, overlay)
}
