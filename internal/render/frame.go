package render

import (
	"fmt"
	"math"

	"github.com/cartoprint/api/internal/geo"
	"github.com/cartoprint/api/internal/model"
)

const metersPerInch = 0.0254

// FrameState is the transient view context one print job renders against:
// output size in pixels, view center, ground resolution and projection.
type FrameState struct {
	Width      int
	Height     int
	Center     [2]float64
	Resolution float64
	Projection *geo.Projection
	Extent     geo.Extent
}

// NewFrameState derives the frame from a print spec. Physical output sizes
// are converted to pixels through the DPI; the ground resolution follows
// from the denominator scale and the projection's meters-per-unit factor.
func NewFrameState(spec *model.PrintSpec, reg *geo.Registry) (*FrameState, error) {
	proj, err := reg.Get(spec.Projection)
	if err != nil {
		return nil, err
	}

	width, height, err := pixelSize(&spec.Size, spec.DPI)
	if err != nil {
		return nil, err
	}

	// One pixel is 1/dpi inch on paper; at scale 1:N it covers N times
	// that on the ground.
	resolution := spec.Scale * metersPerInch / spec.DPI / proj.MetersPerUnit

	center := [2]float64{spec.Center[0], spec.Center[1]}
	halfW := float64(width) * resolution / 2
	halfH := float64(height) * resolution / 2

	return &FrameState{
		Width:      width,
		Height:     height,
		Center:     center,
		Resolution: resolution,
		Projection: proj,
		Extent: geo.Extent{
			center[0] - halfW,
			center[1] - halfH,
			center[0] + halfW,
			center[1] + halfH,
		},
	}, nil
}

func pixelSize(size *model.PrintSize, dpi float64) (int, int, error) {
	var perUnit float64
	switch size.Unit {
	case "", model.SizeUnitPixels:
		return int(math.Round(size.Width)), int(math.Round(size.Height)), nil
	case model.SizeUnitMillimeters:
		perUnit = dpi / 25.4
	case model.SizeUnitCentimeters:
		perUnit = dpi / 2.54
	case model.SizeUnitInches:
		perUnit = dpi
	default:
		return 0, 0, fmt.Errorf("unknown size unit %q", size.Unit)
	}
	return int(math.Round(size.Width * perUnit)), int(math.Round(size.Height * perUnit)), nil
}

// toPixel maps ground coordinates into frame pixel space.
func (f *FrameState) toPixel(x, y float64) (float64, float64) {
	px := (x - f.Extent[0]) / f.Resolution
	py := (f.Extent[3] - y) / f.Resolution
	return px, py
}
