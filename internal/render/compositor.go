package render

import (
	"image"
	"image/color"
	"image/draw"
)

// Compose stacks layer surfaces onto one output surface. Index 0 is the
// bottom of the stack regardless of which layer finished first; each layer's
// opacity is applied as a global alpha during its draw. Nil surfaces (layers
// that never produced pixels) are skipped.
func Compose(surfaces []*image.RGBA, opacities []float64, width, height int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for i, surface := range surfaces {
		if surface == nil {
			continue
		}
		opacity := 1.0
		if i < len(opacities) {
			opacity = opacities[i]
		}
		drawWithOpacity(out, surface, opacity)
	}
	return out
}

// drawWithOpacity draws src over dst applying a global alpha.
func drawWithOpacity(dst *image.RGBA, src image.Image, opacity float64) {
	if opacity <= 0 {
		return
	}
	if opacity >= 1 {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
		return
	}
	alpha := uint8(opacity*255 + 0.5)
	mask := image.NewUniform(color.Alpha{A: alpha})
	draw.DrawMask(dst, dst.Bounds(), src, src.Bounds().Min, mask, image.Point{}, draw.Over)
}
