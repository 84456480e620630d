package render

import (
	"image"
	"sync"
)

// indexedEvent tags a layer event with the layer's position in the spec.
type indexedEvent struct {
	index int
	event ProgressEvent
}

// mergeEvents fans the per-layer progress streams into one channel, closed
// once every layer stream has terminated.
func mergeEvents(streams []<-chan ProgressEvent) <-chan indexedEvent {
	merged := make(chan indexedEvent, len(streams))
	var wg sync.WaitGroup
	wg.Add(len(streams))
	for i, stream := range streams {
		go func(i int, stream <-chan ProgressEvent) {
			defer wg.Done()
			for ev := range stream {
				merged <- indexedEvent{index: i, event: ev}
			}
		}(i, stream)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()
	return merged
}

// layerState is the aggregator's view of one layer render task.
type layerState struct {
	progress float64
	surface  *image.RGBA
	errURL   string
	done     bool
}

// aggregator folds layer progress events into a single monotonic job
// progress value. Layers are weighted equally; the job reaches 1 exactly
// when every layer stream has emitted its terminal event.
type aggregator struct {
	layers []layerState
	last   float64
}

func newAggregator(layerCount int) *aggregator {
	return &aggregator{layers: make([]layerState, layerCount)}
}

// apply folds one layer event and returns the new job progress and whether
// the job is complete. Per-layer and job progress never decrease.
func (a *aggregator) apply(ev indexedEvent) (float64, bool) {
	state := &a.layers[ev.index]
	if ev.event.Progress > state.progress {
		state.progress = ev.event.Progress
	}
	if ev.event.ErrorURL != "" {
		state.errURL = ev.event.ErrorURL
	}
	if ev.event.Surface != nil && state.surface == nil {
		state.surface = ev.event.Surface
	}
	if ev.event.Progress >= 1 {
		state.done = true
	}

	sum := 0.0
	allDone := true
	for i := range a.layers {
		sum += a.layers[i].progress
		allDone = allDone && a.layers[i].done
	}
	progress := sum / float64(len(a.layers))
	if allDone {
		progress = 1
	} else if progress >= 1 {
		// The mean can round up to 1 while a layer is still running.
		progress = 1 - 0.001
	}
	if progress < a.last {
		progress = a.last
	}
	a.last = progress
	return progress, allDone
}

// surfaces returns the finished layer surfaces in spec order.
func (a *aggregator) surfaces() []*image.RGBA {
	out := make([]*image.RGBA, len(a.layers))
	for i := range a.layers {
		out[i] = a.layers[i].surface
	}
	return out
}

// errorURLs returns one URL per degraded layer, in spec order.
func (a *aggregator) errorURLs() []string {
	var out []string
	for i := range a.layers {
		if a.layers[i].errURL != "" {
			out = append(out, a.layers[i].errURL)
		}
	}
	return out
}
