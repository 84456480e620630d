package model

// Layer types
type LayerType string

const (
	LayerTypeXYZ  LayerType = "xyz"
	LayerTypeWMS  LayerType = "wms"
	LayerTypeWMTS LayerType = "wmts"
	LayerTypeWFS  LayerType = "wfs"
)

var ValidLayerTypes = []LayerType{
	LayerTypeXYZ, LayerTypeWMS, LayerTypeWMTS, LayerTypeWFS,
}

// Job status
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusOngoing  JobStatus = "ongoing"
	JobStatusFinished JobStatus = "finished"
)

// Scale bar units
type ScaleUnit string

const (
	ScaleUnitMetric   ScaleUnit = "metric"
	ScaleUnitDegrees  ScaleUnit = "degrees"
	ScaleUnitImperial ScaleUnit = "imperial"
	ScaleUnitNautical ScaleUnit = "nautical"
	ScaleUnitUS       ScaleUnit = "us"
)

// Output size units
type SizeUnit string

const (
	SizeUnitPixels      SizeUnit = "px"
	SizeUnitMillimeters SizeUnit = "mm"
	SizeUnitCentimeters SizeUnit = "cm"
	SizeUnitInches      SizeUnit = "in"
)

// Annotation anchor positions
type Position string

const (
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
)

// Vector feature formats
type VectorFormat string

const (
	VectorFormatGeoJSON VectorFormat = "geojson"
)

// Projection distance units
type ProjUnits string

const (
	ProjUnitsMeters  ProjUnits = "m"
	ProjUnitsDegrees ProjUnits = "degrees"
)
