package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

// fillRings rasterizes closed rings (non-zero winding) in pixel space onto
// the destination.
func fillRings(dst *image.RGBA, rings [][][2]float64, col color.Color) {
	b := dst.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	any := false
	for _, ring := range rings {
		if len(ring) < 3 {
			continue
		}
		any = true
		r.MoveTo(float32(ring[0][0]), float32(ring[0][1]))
		for _, pt := range ring[1:] {
			r.LineTo(float32(pt[0]), float32(pt[1]))
		}
		r.ClosePath()
	}
	if any {
		r.Draw(dst, b, image.NewUniform(col), image.Point{})
	}
}

// strokePolyline draws a line string as a sequence of filled quads of the
// given width. Joins are butt joins; good enough for simple geometry draw.
func strokePolyline(dst *image.RGBA, pts [][2]float64, width float64, col color.Color) {
	if len(pts) < 2 {
		return
	}
	b := dst.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	half := width / 2
	for i := 0; i < len(pts)-1; i++ {
		x0, y0 := pts[i][0], pts[i][1]
		x1, y1 := pts[i+1][0], pts[i+1][1]
		dx, dy := x1-x0, y1-y0
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		// Unit normal scaled to half the stroke width.
		nx := -dy / length * half
		ny := dx / length * half
		r.MoveTo(float32(x0+nx), float32(y0+ny))
		r.LineTo(float32(x1+nx), float32(y1+ny))
		r.LineTo(float32(x1-nx), float32(y1-ny))
		r.LineTo(float32(x0-nx), float32(y0-ny))
		r.ClosePath()
	}
	r.Draw(dst, b, image.NewUniform(col), image.Point{})
}

// fillCircle draws a filled circle approximated by a polygon.
func fillCircle(dst *image.RGBA, cx, cy, radius float64, col color.Color) {
	const segments = 20
	ring := make([][2]float64, segments)
	for i := 0; i < segments; i++ {
		a := 2 * math.Pi * float64(i) / segments
		ring[i] = [2]float64{cx + radius*math.Cos(a), cy + radius*math.Sin(a)}
	}
	fillRings(dst, [][][2]float64{ring}, col)
}
