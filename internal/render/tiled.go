package render

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/cartoprint/api/internal/geo"
	"github.com/cartoprint/api/internal/model"
)

// tiledTask renders a tiled raster layer (XYZ, tiled WMS, WMTS). It builds
// the layer's tile set once, then advances loading through the coordinator
// on a fixed tick, recomputing progress from the queue drain.
type tiledTask struct {
	layer  *model.Layer
	frame  *FrameState
	loader ImageLoader
	opts   Options

	grid   *geo.TileGrid
	urlFor func(geo.TileCoord) string
}

func newTiledTask(layer *model.Layer, frame *FrameState, loader ImageLoader, opts Options) (*tiledTask, error) {
	t := &tiledTask{layer: layer, frame: frame, loader: loader, opts: opts}

	switch layer.Type {
	case model.LayerTypeXYZ:
		t.grid = geo.NewXYZGrid(frame.Projection.Extent)
		t.urlFor = func(c geo.TileCoord) string {
			return expandXYZTemplate(layer.URL, c)
		}
	case model.LayerTypeWMS:
		t.grid = geo.NewXYZGrid(frame.Projection.Extent)
		t.urlFor = func(c geo.TileCoord) string {
			return geo.GetMapURL(layer.URL, layer.Layer, frame.Projection.Code,
				t.grid.TileExtent(c), t.grid.TileSize, t.grid.TileSize)
		}
	case model.LayerTypeWMTS:
		if layer.TileGrid == nil {
			return nil, fmt.Errorf("wmts layer %q has no tile grid", layer.URL)
		}
		extent := frame.Projection.Extent
		if len(layer.TileGrid.Extent) == 4 {
			e := layer.TileGrid.Extent
			extent = geo.Extent{e[0], e[1], e[2], e[3]}
		}
		t.grid = geo.NewTileGrid(layer.TileGrid.Resolutions, extent,
			layer.TileGrid.MatrixIDs, layer.TileGrid.TileSize)
		t.urlFor = func(c geo.TileCoord) string {
			return wmtsTileURL(layer, t.grid, c)
		}
	default:
		return nil, fmt.Errorf("layer type %q is not tiled", layer.Type)
	}
	return t, nil
}

func (t *tiledTask) Run(ctx context.Context) <-chan ProgressEvent {
	events := make(chan ProgressEvent, 8)
	go t.run(ctx, events)
	return events
}

func (t *tiledTask) run(ctx context.Context, events chan<- ProgressEvent) {
	defer close(events)

	z := t.grid.ZoomForResolution(t.frame.Resolution)
	rng := t.grid.RangeForExtent(t.frame.Extent, z)

	requests := make([]*tileRequest, 0, rng.Count())
	for y := rng.MinY; y <= rng.MaxY; y++ {
		for x := rng.MinX; x <= rng.MaxX; x++ {
			coord := geo.TileCoord{Z: z, X: x, Y: y}
			requests = append(requests, &tileRequest{coord: coord, url: t.urlFor(coord)})
		}
	}

	total := len(requests)
	if total == 0 {
		emit(ctx, events, ProgressEvent{Progress: 1, Surface: newSurface(t.frame)})
		return
	}

	emit(ctx, events, ProgressEvent{Progress: 0})

	coord := NewCoordinator(t.loader, requests)
	coord.Reprioritize(t.frame.Center, t.grid)
	coord.LoadMore(ctx, t.opts.MaxNewLoads, t.opts.MaxConcurrentLoads)

	loaded := make(map[geo.TileCoord]image.Image, total)
	var errURL string
	received := 0

	ticker := time.NewTicker(t.opts.TickInterval)
	defer ticker.Stop()

	for received < total {
		select {
		case <-ctx.Done():
			return

		case res := <-coord.Results():
			received++
			if res.err != nil {
				errURL = t.layer.URL
			} else {
				loaded[res.req.coord] = res.img
			}

		case <-ticker.C:
			coord.Reprioritize(t.frame.Center, t.grid)
			coord.LoadMore(ctx, t.opts.MaxNewLoads, t.opts.MaxConcurrentLoads)

			progress := 1 - float64(coord.RemainingQueued())/float64(total)
			// The queue can drain while loads are still in flight; hold
			// the stream just below 1 until they settle.
			if progress >= 1 && (coord.ActiveCount() > 0 || received < total) {
				progress = 1 - 0.001
			}
			emit(ctx, events, ProgressEvent{Progress: progress, ErrorURL: errURL})
		}
	}

	emit(ctx, events, ProgressEvent{
		Progress: 1,
		Surface:  t.drawTiles(loaded),
		ErrorURL: errURL,
	})
}

// drawTiles is the final render pass: every loaded tile is scaled into its
// frame position on a fresh surface.
func (t *tiledTask) drawTiles(loaded map[geo.TileCoord]image.Image) *image.RGBA {
	surface := newSurface(t.frame)
	for coord, img := range loaded {
		xdraw.ApproxBiLinear.Scale(surface, t.tileRect(coord), img, img.Bounds(), draw.Over, nil)
	}
	return surface
}

// tileRect maps a tile onto frame pixels. Every edge is computed from the
// grid line it lies on and rounded once, so neighboring tiles always meet at
// the same pixel, without seams or overlaps.
func (t *tiledTask) tileRect(c geo.TileCoord) image.Rectangle {
	span := t.grid.Resolution(c.Z) * float64(t.grid.TileSize)
	return image.Rect(
		t.pixelX(float64(c.X)*span), t.pixelY(float64(c.Y)*span),
		t.pixelX(float64(c.X+1)*span), t.pixelY(float64(c.Y+1)*span),
	)
}

func (t *tiledTask) pixelX(offset float64) int {
	px, _ := t.frame.toPixel(t.grid.Extent[0]+offset, 0)
	return int(math.Round(px))
}

func (t *tiledTask) pixelY(offset float64) int {
	_, py := t.frame.toPixel(0, t.grid.Extent[3]-offset)
	return int(math.Round(py))
}

func newSurface(frame *FrameState) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
}

// expandXYZTemplate fills an XYZ URL template. Both {y} (origin top) and
// {-y} (origin bottom) placeholders are understood.
func expandXYZTemplate(template string, c geo.TileCoord) string {
	s := strings.ReplaceAll(template, "{z}", strconv.Itoa(c.Z))
	s = strings.ReplaceAll(s, "{x}", strconv.Itoa(c.X))
	if strings.Contains(s, "{-y}") {
		flipped := (1 << uint(c.Z)) - 1 - c.Y
		s = strings.ReplaceAll(s, "{-y}", strconv.Itoa(flipped))
	}
	return strings.ReplaceAll(s, "{y}", strconv.Itoa(c.Y))
}

// wmtsTileURL resolves a WMTS tile address, through the REST template when
// the URL carries placeholders and KVP encoding otherwise.
func wmtsTileURL(layer *model.Layer, grid *geo.TileGrid, c geo.TileCoord) string {
	matrix := grid.MatrixID(c.Z)

	if strings.Contains(layer.URL, "{TileMatrix}") {
		s := strings.ReplaceAll(layer.URL, "{Layer}", layer.Layer)
		s = strings.ReplaceAll(s, "{TileMatrixSet}", layer.MatrixSet)
		s = strings.ReplaceAll(s, "{TileMatrix}", matrix)
		s = strings.ReplaceAll(s, "{TileRow}", strconv.Itoa(c.Y))
		return strings.ReplaceAll(s, "{TileCol}", strconv.Itoa(c.X))
	}

	u, err := url.Parse(layer.URL)
	if err != nil {
		return layer.URL
	}
	q := u.Query()
	q.Set("SERVICE", "WMTS")
	q.Set("VERSION", "1.0.0")
	q.Set("REQUEST", "GetTile")
	q.Set("LAYER", layer.Layer)
	q.Set("STYLE", "default")
	q.Set("TILEMATRIXSET", layer.MatrixSet)
	q.Set("TILEMATRIX", matrix)
	q.Set("TILEROW", strconv.Itoa(c.Y))
	q.Set("TILECOL", strconv.Itoa(c.X))
	q.Set("FORMAT", "image/png")
	u.RawQuery = q.Encode()
	return u.String()
}
