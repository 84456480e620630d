package render

import (
	"context"
	"image"
	"image/color"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/cartoprint/api/internal/geo"
	"github.com/cartoprint/api/internal/model"
)

// Default vector style.
var (
	vectorFillColor   = color.NRGBA{R: 255, G: 255, B: 255, A: 102}
	vectorStrokeColor = color.NRGBA{R: 0x33, G: 0x99, B: 0xCC, A: 255}
)

const (
	vectorStrokeWidth = 1.5
	vectorPointRadius = 5.0
)

// vectorTask renders a WFS layer: one feature-collection request scoped to
// the frame extent, parsed as GeoJSON and drawn with the default style. A
// failed fetch or parse completes the layer with a blank surface and the
// layer URL recorded; there is no retry.
type vectorTask struct {
	layer  *model.Layer
	frame  *FrameState
	loader FeatureLoader
}

func (t *vectorTask) Run(ctx context.Context) <-chan ProgressEvent {
	events := make(chan ProgressEvent, 2)
	go func() {
		defer close(events)

		emit(ctx, events, ProgressEvent{Progress: 0})

		version := t.layer.Version
		if version == "" {
			version = geo.DefaultWFSVersion
		}
		format := t.layer.Format
		if format == "" {
			format = model.VectorFormatGeoJSON
		}
		reqURL := geo.GetFeatureURL(t.layer.URL, version, t.layer.Layer,
			t.frame.Projection.Code, t.frame.Extent, format)

		surface := newSurface(t.frame)
		var errURL string

		data, err := t.loader.LoadFeatures(ctx, reqURL)
		if err != nil {
			errURL = t.layer.URL
		} else if fc, perr := geojson.UnmarshalFeatureCollection(data); perr != nil {
			errURL = t.layer.URL
		} else {
			for _, f := range fc.Features {
				t.drawGeometry(surface, f.Geometry)
			}
		}

		emit(ctx, events, ProgressEvent{Progress: 1, Surface: surface, ErrorURL: errURL})
	}()
	return events
}

func (t *vectorTask) drawGeometry(dst *image.RGBA, g orb.Geometry) {
	switch geom := g.(type) {
	case orb.Point:
		x, y := t.frame.toPixel(geom[0], geom[1])
		fillCircle(dst, x, y, vectorPointRadius, vectorStrokeColor)
		fillCircle(dst, x, y, vectorPointRadius-vectorStrokeWidth, vectorFillColor)
	case orb.MultiPoint:
		for _, p := range geom {
			t.drawGeometry(dst, p)
		}
	case orb.LineString:
		strokePolyline(dst, t.toPixels(geom), vectorStrokeWidth, vectorStrokeColor)
	case orb.MultiLineString:
		for _, ls := range geom {
			t.drawGeometry(dst, ls)
		}
	case orb.Ring:
		fillRings(dst, [][][2]float64{t.toPixels(orb.LineString(geom))}, vectorFillColor)
	case orb.Polygon:
		rings := make([][][2]float64, 0, len(geom))
		for _, ring := range geom {
			rings = append(rings, t.toPixels(orb.LineString(ring)))
		}
		fillRings(dst, rings, vectorFillColor)
		for _, ring := range rings {
			strokePolyline(dst, ring, vectorStrokeWidth, vectorStrokeColor)
		}
	case orb.MultiPolygon:
		for _, poly := range geom {
			t.drawGeometry(dst, poly)
		}
	case orb.Collection:
		for _, sub := range geom {
			t.drawGeometry(dst, sub)
		}
	}
}

func (t *vectorTask) toPixels(ls orb.LineString) [][2]float64 {
	pts := make([][2]float64, len(ls))
	for i, p := range ls {
		x, y := t.frame.toPixel(p[0], p[1])
		pts[i] = [2]float64{x, y}
	}
	return pts
}
