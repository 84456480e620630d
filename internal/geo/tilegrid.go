package geo

import (
	"math"
	"strconv"
)

// DefaultTileSize is used when a tile grid does not specify one.
const DefaultTileSize = 256

const defaultMaxZoom = 19

// TileCoord addresses one tile: zoom level plus column/row counted from the
// grid origin (top-left corner of the grid extent).
type TileCoord struct {
	Z int
	X int
	Y int
}

// TileRange is an inclusive rectangle of tile columns/rows at one zoom.
type TileRange struct {
	MinX, MinY, MaxX, MaxY int
}

// Count returns the number of tiles in the range.
func (r TileRange) Count() int {
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// TileGrid partitions an extent into addressable tiles at a ladder of
// resolutions. Matrix ids map zoom levels onto WMTS TileMatrix identifiers.
type TileGrid struct {
	Extent      Extent
	Resolutions []float64
	MatrixIDs   []string
	TileSize    int
}

// NewTileGrid builds a grid, applying the defaults the WMTS source relies
// on: extent falls back to the projection's full extent (caller passes it),
// matrix ids to "0".."n-1" and tile size to 256.
func NewTileGrid(resolutions []float64, extent Extent, matrixIDs []string, tileSize int) *TileGrid {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	if len(matrixIDs) == 0 {
		matrixIDs = make([]string, len(resolutions))
		for i := range matrixIDs {
			matrixIDs[i] = strconv.Itoa(i)
		}
	}
	return &TileGrid{
		Extent:      extent,
		Resolutions: resolutions,
		MatrixIDs:   matrixIDs,
		TileSize:    tileSize,
	}
}

// NewXYZGrid builds the standard power-of-two grid covering a projection
// extent, as used by XYZ and tiled WMS sources.
func NewXYZGrid(extent Extent) *TileGrid {
	resolutions := make([]float64, defaultMaxZoom+1)
	base := extent.Width() / DefaultTileSize
	for z := range resolutions {
		resolutions[z] = base / math.Exp2(float64(z))
	}
	return NewTileGrid(resolutions, extent, nil, DefaultTileSize)
}

// ZoomForResolution picks the zoom level whose resolution is nearest to the
// requested one in log space.
func (g *TileGrid) ZoomForResolution(resolution float64) int {
	best := 0
	bestDist := math.Inf(1)
	for z, r := range g.Resolutions {
		d := math.Abs(math.Log(r) - math.Log(resolution))
		if d < bestDist {
			bestDist = d
			best = z
		}
	}
	return best
}

// Resolution returns the resolution at a zoom level.
func (g *TileGrid) Resolution(z int) float64 {
	return g.Resolutions[z]
}

// MatrixID returns the WMTS matrix identifier for a zoom level.
func (g *TileGrid) MatrixID(z int) string {
	return g.MatrixIDs[z]
}

// RangeForExtent enumerates the tiles needed to cover an extent at a zoom
// level, clipped to the tiles that exist within the grid extent.
func (g *TileGrid) RangeForExtent(extent Extent, z int) TileRange {
	res := g.Resolutions[z]
	tileSpan := res * float64(g.TileSize)
	originX := g.Extent[0]
	originY := g.Extent[3]

	minX := int(math.Floor((extent[0] - originX) / tileSpan))
	maxX := int(math.Ceil((extent[2]-originX)/tileSpan)) - 1
	minY := int(math.Floor((originY - extent[3]) / tileSpan))
	maxY := int(math.Ceil((originY-extent[1])/tileSpan)) - 1

	lastX := int(math.Ceil(g.Extent.Width()/tileSpan)) - 1
	lastY := int(math.Ceil(g.Extent.Height()/tileSpan)) - 1
	minX = clampInt(minX, 0, lastX)
	maxX = clampInt(maxX, minX, lastX)
	minY = clampInt(minY, 0, lastY)
	maxY = clampInt(maxY, minY, lastY)

	return TileRange{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// TileExtent returns the ground extent covered by one tile.
func (g *TileGrid) TileExtent(c TileCoord) Extent {
	res := g.Resolutions[c.Z]
	tileSpan := res * float64(g.TileSize)
	minX := g.Extent[0] + float64(c.X)*tileSpan
	maxY := g.Extent[3] - float64(c.Y)*tileSpan
	return Extent{minX, maxY - tileSpan, minX + tileSpan, maxY}
}

// TileCenter returns the ground coordinates of the tile center.
func (g *TileGrid) TileCenter(c TileCoord) [2]float64 {
	e := g.TileExtent(c)
	return [2]float64{(e[0] + e[2]) / 2, (e[1] + e[3]) / 2}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
