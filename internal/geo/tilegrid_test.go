package geo

import (
	"math"
	"testing"
)

func mercatorExtent() Extent {
	half := math.Pi * 6378137.0
	return Extent{-half, -half, half, half}
}

func TestNewTileGridDefaults(t *testing.T) {
	grid := NewTileGrid([]float64{100, 50, 25}, Extent{0, 0, 1000, 1000}, nil, 0)

	if grid.TileSize != DefaultTileSize {
		t.Errorf("tile size = %d, want %d", grid.TileSize, DefaultTileSize)
	}
	want := []string{"0", "1", "2"}
	if len(grid.MatrixIDs) != len(want) {
		t.Fatalf("matrix ids = %v, want %v", grid.MatrixIDs, want)
	}
	for i, id := range want {
		if grid.MatrixIDs[i] != id {
			t.Errorf("matrix id[%d] = %q, want %q", i, grid.MatrixIDs[i], id)
		}
	}

	grid = NewTileGrid([]float64{100}, Extent{0, 0, 1000, 1000}, []string{"EPSG:4326:0"}, 512)
	if grid.TileSize != 512 || grid.MatrixID(0) != "EPSG:4326:0" {
		t.Errorf("explicit grid settings not kept: size=%d id=%q", grid.TileSize, grid.MatrixID(0))
	}
}

func TestXYZGridResolutions(t *testing.T) {
	grid := NewXYZGrid(mercatorExtent())

	base := mercatorExtent().Width() / 256
	for z := 0; z < 5; z++ {
		want := base / math.Exp2(float64(z))
		if math.Abs(grid.Resolution(z)-want) > 1e-6 {
			t.Errorf("resolution(%d) = %v, want %v", z, grid.Resolution(z), want)
		}
	}
}

func TestZoomForResolution(t *testing.T) {
	grid := NewXYZGrid(mercatorExtent())

	// Exact matches pick their own level.
	for _, z := range []int{0, 3, 10} {
		if got := grid.ZoomForResolution(grid.Resolution(z)); got != z {
			t.Errorf("exact resolution of z=%d resolved to %d", z, got)
		}
	}

	// Resolutions between levels snap to the nearer one in log space. The
	// geometric midpoint between z and z+1 is resolution(z)/sqrt(2); just
	// above it belongs to z, just below to z+1.
	mid := grid.Resolution(4) / math.Sqrt2
	if got := grid.ZoomForResolution(mid * 1.01); got != 4 {
		t.Errorf("above midpoint resolved to %d, want 4", got)
	}
	if got := grid.ZoomForResolution(mid * 0.99); got != 5 {
		t.Errorf("below midpoint resolved to %d, want 5", got)
	}
}

func TestRangeForExtent(t *testing.T) {
	grid := NewXYZGrid(mercatorExtent())

	full := mercatorExtent()
	rng := grid.RangeForExtent(full, 0)
	if rng != (TileRange{0, 0, 0, 0}) {
		t.Errorf("z0 full extent range = %+v, want single tile", rng)
	}
	if rng.Count() != 1 {
		t.Errorf("z0 count = %d, want 1", rng.Count())
	}

	rng = grid.RangeForExtent(full, 2)
	if rng != (TileRange{MinX: 0, MinY: 0, MaxX: 3, MaxY: 3}) {
		t.Errorf("z2 full extent range = %+v, want 0..3 both axes", rng)
	}
	if rng.Count() != 16 {
		t.Errorf("z2 count = %d, want 16", rng.Count())
	}

	// A quarter-size view around the origin touches the four central tiles.
	half := full[2]
	quarter := Extent{-half / 4, -half / 4, half / 4, half / 4}
	rng = grid.RangeForExtent(quarter, 2)
	if rng != (TileRange{MinX: 1, MinY: 1, MaxX: 2, MaxY: 2}) {
		t.Errorf("central view range = %+v, want 1..2 both axes", rng)
	}
}

func TestRangeForExtentClipsToGrid(t *testing.T) {
	grid := NewXYZGrid(mercatorExtent())
	half := mercatorExtent()[2]

	// A view hanging over the edge never addresses tiles outside the grid.
	over := Extent{half / 2, half / 2, half * 3, half * 3}
	rng := grid.RangeForExtent(over, 1)
	if rng.MaxX > 1 || rng.MaxY > 1 || rng.MinX < 0 || rng.MinY < 0 {
		t.Errorf("range %+v escapes the z1 grid", rng)
	}
}

func TestTileExtentAndCenter(t *testing.T) {
	grid := NewXYZGrid(mercatorExtent())
	half := mercatorExtent()[2]

	// z1 tile (0,0) is the top-left quadrant.
	ext := grid.TileExtent(TileCoord{Z: 1, X: 0, Y: 0})
	want := Extent{-half, 0, 0, half}
	for i := range want {
		if math.Abs(ext[i]-want[i]) > 1e-6 {
			t.Fatalf("tile extent = %v, want %v", ext, want)
		}
	}

	c := grid.TileCenter(TileCoord{Z: 1, X: 0, Y: 0})
	if math.Abs(c[0]+half/2) > 1e-6 || math.Abs(c[1]-half/2) > 1e-6 {
		t.Errorf("tile center = %v, want (-half/2, half/2)", c)
	}
}
