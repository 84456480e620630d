package render

import (
	"context"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/cartoprint/api/internal/geo"
	"github.com/cartoprint/api/internal/model"
)

// imageTask renders a single-image raster layer (non-tiled WMS). Progress
// is binary: 0 until the one request settles, then the terminal event. A
// failed request still completes the layer, with whatever was drawn and the
// offending URL recorded.
type imageTask struct {
	layer  *model.Layer
	frame  *FrameState
	loader ImageLoader
}

func (t *imageTask) Run(ctx context.Context) <-chan ProgressEvent {
	events := make(chan ProgressEvent, 2)
	go func() {
		defer close(events)

		emit(ctx, events, ProgressEvent{Progress: 0})

		reqURL := geo.GetMapURL(t.layer.URL, t.layer.Layer, t.frame.Projection.Code,
			t.frame.Extent, t.frame.Width, t.frame.Height)

		surface := newSurface(t.frame)
		var errURL string

		img, err := t.loader.LoadImage(ctx, reqURL)
		if err != nil {
			errURL = t.layer.URL
		} else {
			xdraw.ApproxBiLinear.Scale(surface, surface.Bounds(), img, img.Bounds(), draw.Over, nil)
		}

		emit(ctx, events, ProgressEvent{Progress: 1, Surface: surface, ErrorURL: errURL})
	}()
	return events
}
