package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cartoprint/api/internal/model"
)

// fastOptions keeps the scheduling tick short so tests settle quickly.
var fastOptions = Options{
	TickInterval:       5 * time.Millisecond,
	MaxNewLoads:        12,
	MaxConcurrentLoads: 4,
	ScaleBarMinWidth:   64,
}

func tilePNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// worldSpec builds a one-tile mercator spec against the given tile server.
func worldSpec(tileURL string) *model.PrintSpec {
	return &model.PrintSpec{
		Layers: []model.Layer{
			{Type: model.LayerTypeXYZ, URL: tileURL + "/{z}/{x}/{y}.png"},
		},
		Size:       model.PrintSize{Width: 128, Height: 128},
		Center:     []float64{0, 0},
		DPI:        96,
		Scale:      2 * 156543.03392804097 * 96 / 0.0254,
		Projection: "EPSG:3857",
	}
}

func TestEngineRendersTiledLayer(t *testing.T) {
	tile := tilePNG(t, color.NRGBA{0, 128, 0, 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(tile)
	}))
	defer srv.Close()

	engine := NewEngine(NewHTTPSourceLoader(5*time.Second), fastOptions)

	var progresses []float64
	result, err := engine.Render(context.Background(), worldSpec(srv.URL), func(p float64) {
		progresses = append(progresses, p)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.SourceLoadErrors) != 0 {
		t.Errorf("unexpected source errors: %v", result.SourceLoadErrors)
	}

	img, err := png.Decode(bytes.NewReader(result.PNG))
	if err != nil {
		t.Fatalf("artifact is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 128 {
		t.Errorf("artifact size = %dx%d, want 128x128", b.Dx(), b.Dy())
	}

	if len(progresses) == 0 {
		t.Fatal("no progress reported")
	}
	last := 0.0
	onesSeen := 0
	for _, p := range progresses {
		if p < last {
			t.Fatalf("progress regressed: %v after %v", p, last)
		}
		if p == 1 {
			onesSeen++
		}
		last = p
	}
	if last != 1 {
		t.Errorf("final progress = %v, want exactly 1", last)
	}
	if onesSeen != 1 {
		t.Errorf("progress hit 1 %d times, want exactly once", onesSeen)
	}
}

func TestEngineDegradesOnSourceFailure(t *testing.T) {
	tile := tilePNG(t, color.NRGBA{0, 0, 200, 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/broken") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(tile)
	}))
	defer srv.Close()

	spec := worldSpec(srv.URL)
	brokenURL := srv.URL + "/broken/wfs"
	spec.Layers = append(spec.Layers, model.Layer{
		Type:  model.LayerTypeWFS,
		URL:   brokenURL,
		Layer: "rivers",
	})

	engine := NewEngine(NewHTTPSourceLoader(5*time.Second), fastOptions)

	var last float64
	result, err := engine.Render(context.Background(), spec, func(p float64) { last = p })
	if err != nil {
		t.Fatalf("source failure must degrade, not fail: %v", err)
	}
	if last != 1 {
		t.Errorf("final progress = %v, want 1 despite failures", last)
	}

	if len(result.SourceLoadErrors) != 1 {
		t.Fatalf("got %d source errors, want 1", len(result.SourceLoadErrors))
	}
	if result.SourceLoadErrors[0].URL != brokenURL {
		t.Errorf("error url = %q, want %q", result.SourceLoadErrors[0].URL, brokenURL)
	}

	if _, err := png.Decode(bytes.NewReader(result.PNG)); err != nil {
		t.Errorf("degraded job still produces an artifact: %v", err)
	}
}

func TestEngineRendersVectorLayer(t *testing.T) {
	const featureCollection = `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [0, 0]}, "properties": {}},
			{"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[-5000000, -5000000], [5000000, 5000000]]}, "properties": {}}
		]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("request") != "GetFeature" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(featureCollection))
	}))
	defer srv.Close()

	spec := worldSpec(srv.URL)
	spec.Layers = []model.Layer{
		{Type: model.LayerTypeWFS, URL: srv.URL + "/wfs", Layer: "rivers"},
	}

	engine := NewEngine(NewHTTPSourceLoader(5*time.Second), fastOptions)
	result, err := engine.Render(context.Background(), spec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.SourceLoadErrors) != 0 {
		t.Errorf("unexpected source errors: %v", result.SourceLoadErrors)
	}

	img, err := png.Decode(bytes.NewReader(result.PNG))
	if err != nil {
		t.Fatal(err)
	}
	// The diagonal line must have left non-white pixels.
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	painted := false
	for y := 0; y < rgba.Bounds().Dy() && !painted; y++ {
		for x := 0; x < rgba.Bounds().Dx(); x++ {
			if rgba.RGBAAt(x, y) != (color.RGBA{255, 255, 255, 255}) {
				painted = true
				break
			}
		}
	}
	if !painted {
		t.Error("vector layer drew nothing")
	}
}

func TestEngineAnnotations(t *testing.T) {
	tile := tilePNG(t, color.NRGBA{255, 255, 255, 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(tile)
	}))
	defer srv.Close()

	plain := worldSpec(srv.URL)
	annotated := worldSpec(srv.URL)
	annotated.ScaleBar = &model.ScaleBarSpec{Units: model.ScaleUnitMetric}
	annotated.NorthArrow = &model.NorthArrowSpec{}

	engine := NewEngine(NewHTTPSourceLoader(5*time.Second), fastOptions)

	plainResult, err := engine.Render(context.Background(), plain, nil)
	if err != nil {
		t.Fatal(err)
	}
	annotatedResult, err := engine.Render(context.Background(), annotated, nil)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(plainResult.PNG, annotatedResult.PNG) {
		t.Error("annotations did not change the artifact")
	}
}

func TestEngineCancellation(t *testing.T) {
	started := make(chan struct{}, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	engine := NewEngine(NewHTTPSourceLoader(time.Minute), fastOptions)

	done := make(chan error, 1)
	go func() {
		_, err := engine.Render(ctx, worldSpec(srv.URL), nil)
		done <- err
	}()

	<-started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled render returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("render did not stop after cancellation")
	}
}

// With an already-cancelled context the layer streams close almost
// immediately, racing the context branch of the render loop. The error must
// still be the context's, not a generic stream-ended failure.
func TestEngineCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(NewHTTPSourceLoader(time.Second), fastOptions)
	_, err := engine.Render(ctx, worldSpec("https://tiles.invalid"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestValidateSpec(t *testing.T) {
	base := func() *model.PrintSpec { return worldSpec("https://tiles.example.com") }

	if err := ValidateSpec(base()); err != nil {
		t.Errorf("valid spec rejected: %v", err)
	}

	spec := base()
	spec.Layers[0].Type = "hologram"
	if err := ValidateSpec(spec); err == nil {
		t.Error("unknown layer type accepted")
	}

	spec = base()
	spec.Layers = append(spec.Layers, model.Layer{Type: model.LayerTypeWMTS, URL: "https://wmts.example.com"})
	if err := ValidateSpec(spec); err == nil {
		t.Error("WMTS layer without tile grid accepted")
	}

	spec = base()
	spec.Projection = "EPSG:31287"
	if err := ValidateSpec(spec); err == nil {
		t.Error("unknown projection accepted")
	}

	// A projection definition supplied with the spec makes its code valid.
	spec = base()
	spec.Projection = "EPSG:31287"
	spec.Projections = []model.ProjectionDef{{
		Code:   "EPSG:31287",
		Units:  model.ProjUnitsMeters,
		Extent: []float64{107778, 286080, 694884, 575954},
	}}
	if err := ValidateSpec(spec); err != nil {
		t.Errorf("spec-defined projection rejected: %v", err)
	}
}
