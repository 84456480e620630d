package render

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/cartoprint/api/internal/model"
)

// ProgressEvent is one tick of a layer render task's progress stream. The
// terminal event carries Progress == 1 and a populated surface; ErrorURL is
// set when at least one of the layer's source requests failed.
type ProgressEvent struct {
	Progress float64
	Surface  *image.RGBA
	ErrorURL string
}

// layerTask is a per-layer render state machine. Run returns a channel that
// emits progress events and closes after the terminal event.
type layerTask interface {
	Run(ctx context.Context) <-chan ProgressEvent
}

// Options are the scheduling knobs of the render pipeline. The zero value
// takes the service defaults.
type Options struct {
	// TickInterval drives tile reprioritization, admission and progress
	// recomputation for tiled layers.
	TickInterval time.Duration

	// MaxNewLoads caps how many queued tile requests one tick may start.
	MaxNewLoads int

	// MaxConcurrentLoads caps in-flight tile fetches per tiled layer.
	MaxConcurrentLoads int

	// ScaleBarMinWidth is the minimum on-screen scale bar width in pixels.
	ScaleBarMinWidth int
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = 500 * time.Millisecond
	}
	if o.MaxNewLoads <= 0 {
		o.MaxNewLoads = 12
	}
	if o.MaxConcurrentLoads <= 0 {
		o.MaxConcurrentLoads = 4
	}
	if o.ScaleBarMinWidth <= 0 {
		o.ScaleBarMinWidth = 64
	}
	return o
}

// newLayerTask maps a layer variant onto its render task. Adding a layer
// type means one new task implementation plus one arm here.
func newLayerTask(layer *model.Layer, frame *FrameState, loader SourceLoader, opts Options) (layerTask, error) {
	switch layer.Type {
	case model.LayerTypeXYZ, model.LayerTypeWMTS:
		return newTiledTask(layer, frame, loader, opts)
	case model.LayerTypeWMS:
		if layer.Tiled {
			return newTiledTask(layer, frame, loader, opts)
		}
		return &imageTask{layer: layer, frame: frame, loader: loader}, nil
	case model.LayerTypeWFS:
		return &vectorTask{layer: layer, frame: frame, loader: loader}, nil
	default:
		return nil, fmt.Errorf("unknown layer type %q", layer.Type)
	}
}

// emit sends an event unless the job context is gone.
func emit(ctx context.Context, ch chan<- ProgressEvent, ev ProgressEvent) {
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}
