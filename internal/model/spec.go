package model

// PrintSpec is the declarative description of one map print. It is consumed
// once per job and never mutated afterwards.
type PrintSpec struct {
	Layers      []Layer         `json:"layers" validate:"required,min=1,dive"`
	Size        PrintSize       `json:"size" validate:"required"`
	Center      []float64       `json:"center" validate:"required,len=2"`
	DPI         float64         `json:"dpi" validate:"required,gt=0"`
	Scale       float64         `json:"scale" validate:"required,gt=0"`
	Projection  string          `json:"projection" validate:"required"`
	ScaleBar    *ScaleBarSpec   `json:"scaleBar,omitempty"`
	NorthArrow  *NorthArrowSpec `json:"northArrow,omitempty"`
	Projections []ProjectionDef `json:"projectionDefinitions,omitempty" validate:"omitempty,dive"`
}

// PrintSize is the output dimensions. Unit defaults to pixels; physical
// units are converted using the spec DPI.
type PrintSize struct {
	Width  float64  `json:"width" validate:"required,gt=0"`
	Height float64  `json:"height" validate:"required,gt=0"`
	Unit   SizeUnit `json:"unit,omitempty" validate:"omitempty,oneof=px mm cm in"`
}

// Layer is a tagged variant: the Type field selects which of the
// type-specific fields apply and which render task the layer maps to.
type Layer struct {
	Type LayerType `json:"type" validate:"required,oneof=xyz wms wmts wfs"`
	URL  string    `json:"url" validate:"required"`

	// Layer name for WMS / WMTS / WFS sources.
	Layer string `json:"layer,omitempty"`

	// Opacity in [0,1]; nil means fully opaque.
	Opacity *float64 `json:"opacity,omitempty" validate:"omitempty,gte=0,lte=1"`

	// Tiled switches a WMS source between tiled and single-image requests.
	Tiled bool `json:"tiled,omitempty"`

	// TileGrid is required for WMTS sources.
	TileGrid *TileGridSpec `json:"tileGrid,omitempty"`

	// MatrixSet names the WMTS tile matrix set.
	MatrixSet string `json:"matrixSet,omitempty"`

	// Format and Version apply to WFS sources.
	Format  VectorFormat `json:"format,omitempty" validate:"omitempty,oneof=geojson"`
	Version string       `json:"version,omitempty"`
}

// OpacityValue returns the layer opacity, defaulting to 1.
func (l *Layer) OpacityValue() float64 {
	if l.Opacity == nil {
		return 1
	}
	return *l.Opacity
}

// TileGridSpec describes a WMTS tile grid. Extent defaults to the
// projection's full extent, matrix ids to [0..len(resolutions)-1].
type TileGridSpec struct {
	Resolutions []float64 `json:"resolutions" validate:"required,min=1"`
	Extent      []float64 `json:"extent,omitempty" validate:"omitempty,len=4"`
	MatrixIDs   []string  `json:"matrixIds,omitempty"`
	TileSize    int       `json:"tileSize,omitempty"`
}

// ScaleBarSpec configures the scale bar annotation.
type ScaleBarSpec struct {
	Position Position  `json:"position,omitempty" validate:"omitempty,oneof=bottom-left bottom-right"`
	Units    ScaleUnit `json:"units,omitempty" validate:"omitempty,oneof=metric degrees imperial nautical us"`
}

// NorthArrowSpec configures the north arrow annotation.
type NorthArrowSpec struct {
	Position Position `json:"position,omitempty" validate:"omitempty,oneof=bottom-left bottom-right top-left top-right"`
}

// ProjectionDef registers a projection not built into the service. The
// definition is explicit (units, extent, meters per unit) rather than a
// proj4 string; definition-string parsing is the caller's concern.
type ProjectionDef struct {
	Code          string    `json:"code" validate:"required"`
	Units         ProjUnits `json:"units" validate:"required,oneof=m degrees"`
	Extent        []float64 `json:"extent" validate:"required,len=4"`
	MetersPerUnit *float64  `json:"metersPerUnit,omitempty" validate:"omitempty,gt=0"`
}
