package render

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func solidSurface(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestComposeBackgroundIsWhite(t *testing.T) {
	out := Compose(nil, nil, 4, 4)
	if got := out.RGBAAt(0, 0); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("background = %+v, want white", got)
	}
}

func TestComposeStacksInArrayOrder(t *testing.T) {
	red := solidSurface(4, 4, color.NRGBA{255, 0, 0, 255})
	blue := solidSurface(4, 4, color.NRGBA{0, 0, 255, 255})

	out := Compose([]*image.RGBA{red, blue}, []float64{1, 1}, 4, 4)
	if got := out.RGBAAt(2, 2); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("top pixel = %+v, want blue (index order, not finish order)", got)
	}

	out = Compose([]*image.RGBA{blue, red}, []float64{1, 1}, 4, 4)
	if got := out.RGBAAt(2, 2); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("top pixel = %+v, want red", got)
	}
}

func TestComposeSkipsNilSurfaces(t *testing.T) {
	red := solidSurface(4, 4, color.NRGBA{255, 0, 0, 255})

	out := Compose([]*image.RGBA{nil, red, nil}, []float64{1, 1, 1}, 4, 4)
	if got := out.RGBAAt(0, 0); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("pixel = %+v, want red despite nil neighbors", got)
	}
}

func TestComposeAppliesOpacity(t *testing.T) {
	red := solidSurface(4, 4, color.NRGBA{255, 0, 0, 255})

	out := Compose([]*image.RGBA{red}, []float64{0.5}, 4, 4)
	got := out.RGBAAt(1, 1)

	// Half-opaque red over white: red stays saturated, green and blue land
	// near the midpoint.
	if got.R != 255 {
		t.Errorf("red channel = %d, want 255", got.R)
	}
	if got.G < 120 || got.G > 135 || got.B < 120 || got.B > 135 {
		t.Errorf("half blend = %+v, want green/blue near 127", got)
	}

	// Zero opacity leaves the background untouched.
	out = Compose([]*image.RGBA{red}, []float64{0}, 4, 4)
	if got := out.RGBAAt(1, 1); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("zero opacity pixel = %+v, want white", got)
	}
}

func TestComposeMissingOpacityDefaultsToOpaque(t *testing.T) {
	red := solidSurface(4, 4, color.NRGBA{255, 0, 0, 255})

	out := Compose([]*image.RGBA{red}, nil, 4, 4)
	if got := out.RGBAAt(0, 0); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("pixel = %+v, want fully opaque red", got)
	}
}
