package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log"

	"github.com/cartoprint/api/internal/geo"
	"github.com/cartoprint/api/internal/model"
)

// Engine executes one print spec into a composited, annotated PNG. It is
// stateless across jobs; all per-job state lives in the tasks it spawns.
type Engine struct {
	loader SourceLoader
	opts   Options
}

// NewEngine creates an engine using the given source loader. Zero option
// fields take the service defaults.
func NewEngine(loader SourceLoader, opts Options) *Engine {
	return &Engine{loader: loader, opts: opts.withDefaults()}
}

// Result is the outcome of a finished render.
type Result struct {
	PNG              []byte
	SourceLoadErrors []model.SourceLoadError
}

// Render runs the full pipeline: one render task per layer in parallel,
// progress aggregation, z-order compositing, annotations, PNG encoding.
// onProgress receives the monotonic job progress, ending at exactly 1.
// Individual source failures degrade their layer and are reported in the
// result; only configuration errors and cancellation fail the render.
func (e *Engine) Render(ctx context.Context, spec *model.PrintSpec, onProgress func(float64)) (*Result, error) {
	reg := geo.NewRegistry()
	for i := range spec.Projections {
		if err := reg.Register(&spec.Projections[i]); err != nil {
			return nil, err
		}
	}

	frame, err := NewFrameState(spec, reg)
	if err != nil {
		return nil, err
	}

	// Configuration errors surface before any network activity.
	tasks := make([]layerTask, len(spec.Layers))
	for i := range spec.Layers {
		task, err := newLayerTask(&spec.Layers[i], frame, e.loader, e.opts)
		if err != nil {
			return nil, err
		}
		tasks[i] = task
	}

	streams := make([]<-chan ProgressEvent, len(tasks))
	for i, task := range tasks {
		streams[i] = task.Run(ctx)
	}

	agg := newAggregator(len(tasks))
	merged := mergeEvents(streams)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-merged:
			if !ok {
				// Cancellation closes the layer streams too, and this branch
				// can win the select over ctx.Done.
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return nil, fmt.Errorf("layer streams ended before completion")
			}
			progress, allDone := agg.apply(ev)
			if onProgress != nil {
				onProgress(progress)
			}
			if allDone {
				return e.finish(spec, frame, agg)
			}
		}
	}
}

// finish composites the finished surfaces, draws annotations and encodes
// the artifact.
func (e *Engine) finish(spec *model.PrintSpec, frame *FrameState, agg *aggregator) (*Result, error) {
	opacities := make([]float64, len(spec.Layers))
	for i := range spec.Layers {
		opacities[i] = spec.Layers[i].OpacityValue()
	}
	composed := Compose(agg.surfaces(), opacities, frame.Width, frame.Height)

	if spec.ScaleBar != nil {
		pointRes := frame.Projection.PointResolution(frame.Resolution, frame.Center)
		params, err := computeScaleBarParams(pointRes, frame.Projection, spec.ScaleBar.Units, e.opts.ScaleBarMinWidth)
		if err != nil {
			// Non-fatal configuration error: the bar is omitted.
			log.Printf("Warning: scale bar omitted: %v", err)
		} else {
			position := spec.ScaleBar.Position
			if position == "" {
				position = model.PositionBottomLeft
			}
			drawScaleBar(composed, params, position)
		}
	}

	if spec.NorthArrow != nil {
		position := spec.NorthArrow.Position
		if position == "" {
			position = model.PositionTopRight
		}
		drawNorthArrow(composed, position)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, composed); err != nil {
		return nil, fmt.Errorf("failed to encode print image: %w", err)
	}

	var loadErrors []model.SourceLoadError
	for _, u := range agg.errorURLs() {
		loadErrors = append(loadErrors, model.SourceLoadError{URL: u})
	}

	return &Result{PNG: buf.Bytes(), SourceLoadErrors: loadErrors}, nil
}

// ValidateSpec performs the configuration checks the dispatcher runs before
// accepting a job: known layer types, resolvable projection, and a tile grid
// on every WMTS layer.
func ValidateSpec(spec *model.PrintSpec) error {
	reg := geo.NewRegistry()
	for i := range spec.Projections {
		if err := reg.Register(&spec.Projections[i]); err != nil {
			return err
		}
	}
	if _, err := reg.Get(spec.Projection); err != nil {
		return err
	}
	for i := range spec.Layers {
		layer := &spec.Layers[i]
		switch layer.Type {
		case model.LayerTypeXYZ, model.LayerTypeWMS, model.LayerTypeWFS:
		case model.LayerTypeWMTS:
			if layer.TileGrid == nil {
				return fmt.Errorf("wmts layer %q has no tile grid", layer.URL)
			}
		default:
			return fmt.Errorf("unknown layer type %q", layer.Type)
		}
	}
	return nil
}
