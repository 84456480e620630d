package render

import (
	"context"
	"image"
	"sort"
	"sync"

	"github.com/cartoprint/api/internal/geo"
)

// tileRequest is one pending tile fetch.
type tileRequest struct {
	coord    geo.TileCoord
	url      string
	priority float64
}

// tileResult is the outcome of one tile fetch.
type tileResult struct {
	req *tileRequest
	img image.Image
	err error
}

// Coordinator throttles the in-flight tile fetches of one tiled layer task.
// It admits new loads in bounded batches so a high-zoom tile grid cannot fan
// out into unbounded parallel requests, and reorders the pending queue by
// relevance to the current view.
type Coordinator struct {
	loader ImageLoader

	mu     sync.Mutex
	queued []*tileRequest
	active int

	results chan tileResult
}

// NewCoordinator creates a coordinator over a fixed initial tile set.
func NewCoordinator(loader ImageLoader, requests []*tileRequest) *Coordinator {
	return &Coordinator{
		loader:  loader,
		queued:  requests,
		results: make(chan tileResult, len(requests)),
	}
}

// Reprioritize reorders pending requests so tiles nearest the view center
// load first.
func (c *Coordinator) Reprioritize(center [2]float64, grid *geo.TileGrid) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, req := range c.queued {
		tc := grid.TileCenter(req.coord)
		dx := tc[0] - center[0]
		dy := tc[1] - center[1]
		req.priority = dx*dx + dy*dy
	}
	sort.SliceStable(c.queued, func(i, j int) bool {
		return c.queued[i].priority < c.queued[j].priority
	})
}

// LoadMore admits up to maxNew pending requests while keeping the number of
// concurrent loads at or below maxConcurrent. It returns how many loads were
// started.
func (c *Coordinator) LoadMore(ctx context.Context, maxNew, maxConcurrent int) int {
	c.mu.Lock()
	n := maxNew
	if room := maxConcurrent - c.active; n > room {
		n = room
	}
	if n > len(c.queued) {
		n = len(c.queued)
	}
	if n <= 0 {
		c.mu.Unlock()
		return 0
	}
	batch := c.queued[:n]
	c.queued = c.queued[n:]
	c.active += n
	c.mu.Unlock()

	for _, req := range batch {
		go func(req *tileRequest) {
			img, err := c.loader.LoadImage(ctx, req.url)
			c.mu.Lock()
			c.active--
			c.mu.Unlock()
			c.results <- tileResult{req: req, img: img, err: err}
		}(req)
	}
	return n
}

// Results delivers finished loads. The channel is buffered for the full
// initial tile set so senders never block.
func (c *Coordinator) Results() <-chan tileResult {
	return c.results
}

// RemainingQueued reports how many requests have not been admitted yet.
func (c *Coordinator) RemainingQueued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queued)
}

// ActiveCount reports how many loads are in flight.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
