package render

import (
	"image"
	"math"
	"testing"

	"github.com/cartoprint/api/internal/geo"
	"github.com/cartoprint/api/internal/model"
)

func mercatorProjection(t *testing.T) *geo.Projection {
	t.Helper()
	p, err := geo.NewRegistry().Get("EPSG:3857")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestComputeScaleBarParamsMetric(t *testing.T) {
	proj := mercatorProjection(t)

	// 1 m/px, 64px minimum: the 1-2-5 ladder runs 10, 20, 50, 100 and stops
	// at the first round value at least 64px wide.
	params, err := computeScaleBarParams(1, proj, model.ScaleUnitMetric, 64)
	if err != nil {
		t.Fatal(err)
	}
	if params.ScaleNumber != 100 || params.Width != 100 || params.Suffix != "m" {
		t.Errorf("got %v %q width %d, want 100 m width 100", params.ScaleNumber, params.Suffix, params.Width)
	}

	// The empty unit behaves as metric.
	same, err := computeScaleBarParams(1, proj, "", 64)
	if err != nil {
		t.Fatal(err)
	}
	if *same != *params {
		t.Errorf("empty unit differs from metric: %+v vs %+v", same, params)
	}
}

func TestComputeScaleBarParamsKilometers(t *testing.T) {
	proj := mercatorProjection(t)

	// 100 m/px pushes the nominal bar length past 1000m, switching to km.
	params, err := computeScaleBarParams(100, proj, model.ScaleUnitMetric, 64)
	if err != nil {
		t.Fatal(err)
	}
	if params.Suffix != "km" {
		t.Fatalf("suffix = %q, want km", params.Suffix)
	}
	if params.ScaleNumber != 10 || params.Width != 100 {
		t.Errorf("got %v km width %d, want 10 km width 100", params.ScaleNumber, params.Width)
	}
}

func TestComputeScaleBarParamsMillimeters(t *testing.T) {
	proj := mercatorProjection(t)

	params, err := computeScaleBarParams(0.001, proj, model.ScaleUnitMetric, 64)
	if err != nil {
		t.Fatal(err)
	}
	if params.Suffix != "mm" {
		t.Errorf("suffix = %q, want mm", params.Suffix)
	}
	if params.Width < 64 {
		t.Errorf("width %d below minimum", params.Width)
	}
}

func TestComputeScaleBarParamsDegrees(t *testing.T) {
	reg := geo.NewRegistry()
	proj, _ := reg.Get("EPSG:4326")

	// 0.01 deg/px over 64px is 0.64 degrees, displayed in minutes.
	params, err := computeScaleBarParams(0.01, proj, model.ScaleUnitDegrees, 64)
	if err != nil {
		t.Fatal(err)
	}
	if params.Suffix != "′" {
		t.Fatalf("suffix = %q, want minutes", params.Suffix)
	}
	if params.ScaleNumber != 50 {
		t.Errorf("scale number = %v, want 50", params.ScaleNumber)
	}
	// 50 minutes at 0.6 minutes per pixel.
	if want := int(math.Round(50.0 / 0.6)); params.Width != want {
		t.Errorf("width = %d, want %d", params.Width, want)
	}
}

func TestComputeScaleBarParamsNautical(t *testing.T) {
	proj := mercatorProjection(t)

	params, err := computeScaleBarParams(1852, proj, model.ScaleUnitNautical, 64)
	if err != nil {
		t.Fatal(err)
	}
	if params.Suffix != "nm" || params.ScaleNumber != 100 || params.Width != 100 {
		t.Errorf("got %v %q width %d, want 100 nm width 100", params.ScaleNumber, params.Suffix, params.Width)
	}
}

func TestComputeScaleBarParamsImperial(t *testing.T) {
	proj := mercatorProjection(t)

	params, err := computeScaleBarParams(10, proj, model.ScaleUnitImperial, 64)
	if err != nil {
		t.Fatal(err)
	}
	if params.Suffix != "ft" {
		t.Errorf("suffix = %q, want ft", params.Suffix)
	}
	if params.Width < 64 {
		t.Errorf("width %d below minimum", params.Width)
	}
}

func TestComputeScaleBarParamsErrors(t *testing.T) {
	proj := mercatorProjection(t)

	if _, err := computeScaleBarParams(1, proj, "furlongs", 64); err == nil {
		t.Error("expected error for unknown unit")
	}
	if _, err := computeScaleBarParams(0, proj, model.ScaleUnitMetric, 64); err == nil {
		t.Error("expected error for non-positive resolution")
	}
}

func TestDrawScaleBarWritesPixels(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 200, 100))
	before := countNonZero(dst)
	drawScaleBar(dst, &ScaleBarParams{Width: 100, ScaleNumber: 100, Suffix: "m"}, model.PositionBottomLeft)
	if countNonZero(dst) == before {
		t.Error("scale bar drew nothing")
	}
}

func countNonZero(img *image.RGBA) int {
	n := 0
	for _, v := range img.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}
