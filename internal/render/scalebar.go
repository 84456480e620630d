package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/cartoprint/api/internal/geo"
	"github.com/cartoprint/api/internal/model"
)

// ScaleBarParams is the resolved scale bar: its on-screen width, the round
// distance value it represents and the unit label. Recomputed per render.
type ScaleBarParams struct {
	Width       int
	ScaleNumber float64
	Suffix      string
}

// leadingDigits are the mantissas tried when searching for a round scale
// value of the form {1,2,5} x 10^n.
var leadingDigits = [3]float64{1, 2, 5}

// Unit conversion constants (ground meters per unit).
const (
	metersPerFoot         = 0.3048
	metersPerUSFoot       = 0.30480061
	metersPerMile         = 1609.344
	metersPerUSMile       = 1609.3472
	metersPerNauticalMile = 1852.0
	inchesPerMeter        = 39.37
)

// computeScaleBarParams sizes the scale bar for the current view. Given the
// point resolution at the view center it picks a display unit from the
// requested system's threshold ladder, then searches increasing round
// numbers {1,2,5}x10^n for the smallest whose pixel width reaches minWidth.
func computeScaleBarParams(pointRes float64, proj *geo.Projection, unit model.ScaleUnit, minWidth int) (*ScaleBarParams, error) {
	metersPerPx := pointRes * proj.MetersPerUnit
	if metersPerPx <= 0 {
		return nil, fmt.Errorf("non-positive point resolution")
	}
	nominal := metersPerPx * float64(minWidth)

	var perPx float64
	var suffix string
	switch unit {
	case "", model.ScaleUnitMetric:
		switch {
		case nominal < 0.001:
			perPx, suffix = metersPerPx*1e6, "μm"
		case nominal < 1:
			perPx, suffix = metersPerPx*1000, "mm"
		case nominal < 1000:
			perPx, suffix = metersPerPx, "m"
		default:
			perPx, suffix = metersPerPx/1000, "km"
		}
	case model.ScaleUnitDegrees:
		degPerPx := metersPerPx / geo.DegreesMetersPerUnit
		switch nominalDeg := degPerPx * float64(minWidth); {
		case nominalDeg < 1.0/60:
			perPx, suffix = degPerPx*3600, "″"
		case nominalDeg < 1:
			perPx, suffix = degPerPx*60, "′"
		default:
			perPx, suffix = degPerPx, "°"
		}
	case model.ScaleUnitImperial:
		switch {
		case nominal < 0.9144:
			perPx, suffix = metersPerPx*inchesPerMeter, "in"
		case nominal < metersPerMile:
			perPx, suffix = metersPerPx/metersPerFoot, "ft"
		default:
			perPx, suffix = metersPerPx/metersPerMile, "mi"
		}
	case model.ScaleUnitUS:
		switch {
		case nominal < 0.9144:
			perPx, suffix = metersPerPx*inchesPerMeter, "in"
		case nominal < metersPerUSMile:
			perPx, suffix = metersPerPx/metersPerUSFoot, "ft"
		default:
			perPx, suffix = metersPerPx/metersPerUSMile, "mi"
		}
	case model.ScaleUnitNautical:
		perPx, suffix = metersPerPx/metersPerNauticalMile, "nm"
	default:
		return nil, fmt.Errorf("unknown scale bar unit %q", unit)
	}

	i := int(3 * math.Floor(math.Log10(float64(minWidth)*perPx)))
	for steps := 0; steps < 100; steps++ {
		pow := math.Floor(float64(i) / 3)
		count := leadingDigits[((i%3)+3)%3] * math.Pow(10, pow)
		width := int(math.Round(count / perPx))
		if width >= minWidth {
			return &ScaleBarParams{Width: width, ScaleNumber: count, Suffix: suffix}, nil
		}
		i++
	}
	return nil, fmt.Errorf("no suitable scale bar value found")
}

// drawScaleBar overlays the scale bar: a two-tone bar divided into quarters
// plus a label, anchored per configuration, composited with 0.8 alpha.
func drawScaleBar(dst *image.RGBA, params *ScaleBarParams, position model.Position) {
	const (
		margin    = 10
		barHeight = 8
	)

	bounds := dst.Bounds()
	overlay := image.NewRGBA(bounds)

	x := margin
	if position == model.PositionBottomRight {
		x = bounds.Dx() - margin - params.Width
	}
	barBottom := bounds.Dy() - margin
	barTop := barBottom - barHeight

	// Border, then alternating black/white quarters inside it.
	black := image.NewUniform(color.Black)
	white := image.NewUniform(color.White)
	draw.Draw(overlay, image.Rect(x-1, barTop-1, x+params.Width+1, barBottom+1), black, image.Point{}, draw.Src)
	for q := 0; q < 4; q++ {
		qx0 := x + q*params.Width/4
		qx1 := x + (q+1)*params.Width/4
		src := black
		if q%2 == 1 {
			src = white
		}
		draw.Draw(overlay, image.Rect(qx0, barTop, qx1, barBottom), src, image.Point{}, draw.Src)
	}

	label := strconv.FormatFloat(params.ScaleNumber, 'f', -1, 64) + " " + params.Suffix
	drawer := &font.Drawer{
		Dst:  overlay,
		Src:  black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, barTop-4),
	}
	drawer.DrawString(label)

	overlayWithAlpha(dst, overlay)
}

// overlayWithAlpha composites an annotation overlay at 0.8 global alpha.
func overlayWithAlpha(dst *image.RGBA, overlay image.Image) {
	mask := image.NewUniform(color.Alpha{A: 204})
	draw.DrawMask(dst, dst.Bounds(), overlay, dst.Bounds().Min, mask, image.Point{}, draw.Over)
}
