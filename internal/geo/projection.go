package geo

import (
	"fmt"
	"math"

	"github.com/cartoprint/api/internal/model"
)

// Earth radius used by the spherical mercator projection (meters).
const earthRadius = 6378137.0

// DegreesMetersPerUnit is the ground length of one degree at the equator,
// based on the normal sphere radius 6370997m.
const DegreesMetersPerUnit = 2 * math.Pi * 6370997 / 360

const mercatorHalfSize = math.Pi * earthRadius

// Extent is [minX, minY, maxX, maxY] in projection units.
type Extent [4]float64

// Width returns the horizontal span of the extent.
func (e Extent) Width() float64 { return e[2] - e[0] }

// Height returns the vertical span of the extent.
func (e Extent) Height() float64 { return e[3] - e[1] }

// Projection describes a coordinate reference system well enough to render
// with: its code, distance units, valid extent and meters-per-unit factor.
type Projection struct {
	Code          string
	Units         model.ProjUnits
	Extent        Extent
	MetersPerUnit float64
}

// PointResolution converts a nominal view resolution into the true
// ground resolution at the given point, in projection units per pixel.
// Spherical mercator stretches distances away from the equator; other
// projections are taken at face value.
func (p *Projection) PointResolution(resolution float64, center [2]float64) float64 {
	if p.Code == "EPSG:3857" {
		return resolution / math.Cosh(center[1]/earthRadius)
	}
	return resolution
}

// Registry holds the projections known to one render job. Each job gets its
// own registry so spec-supplied definitions cannot leak between jobs.
type Registry struct {
	projections map[string]*Projection
}

// NewRegistry creates a registry preloaded with the built-in projections
// EPSG:3857 and EPSG:4326.
func NewRegistry() *Registry {
	r := &Registry{projections: make(map[string]*Projection)}
	r.add(&Projection{
		Code:          "EPSG:3857",
		Units:         model.ProjUnitsMeters,
		Extent:        Extent{-mercatorHalfSize, -mercatorHalfSize, mercatorHalfSize, mercatorHalfSize},
		MetersPerUnit: 1,
	})
	r.add(&Projection{
		Code:          "EPSG:4326",
		Units:         model.ProjUnitsDegrees,
		Extent:        Extent{-180, -90, 180, 90},
		MetersPerUnit: DegreesMetersPerUnit,
	})
	return r
}

func (r *Registry) add(p *Projection) {
	r.projections[p.Code] = p
}

// Register adds a projection from a spec-supplied definition.
func (r *Registry) Register(def *model.ProjectionDef) error {
	if def.Code == "" {
		return fmt.Errorf("projection definition has no code")
	}
	mpu := 1.0
	if def.Units == model.ProjUnitsDegrees {
		mpu = DegreesMetersPerUnit
	}
	if def.MetersPerUnit != nil {
		mpu = *def.MetersPerUnit
	}
	r.add(&Projection{
		Code:          def.Code,
		Units:         def.Units,
		Extent:        Extent{def.Extent[0], def.Extent[1], def.Extent[2], def.Extent[3]},
		MetersPerUnit: mpu,
	})
	return nil
}

// Get returns the projection for a code.
func (r *Registry) Get(code string) (*Projection, error) {
	p, ok := r.projections[code]
	if !ok {
		return nil, fmt.Errorf("unknown projection %q", code)
	}
	return p, nil
}
