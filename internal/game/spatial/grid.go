// Package spatial provides the broad-phase index behind radius queries.
//
// The grid stores integer entity indices (not pointers) in preallocated
// cells so a rebuild every tick does not allocate.
package spatial

import (
	"math"
)

// SpatialGrid buckets entities into fixed-size square cells over a
// rectangular area whose corner is at (minX, minY).
//
// Optimal cell size equals the most common query radius. For the court the
// ball detection radius is 5 m, so 5 m cells cover any query with at most
// 3x3 cells.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col])
type SpatialGrid struct {
	minX, minY  float64
	cellSize    float64
	invCellSize float64
	cols, rows  int
	cells       [][]uint32
	scratch     []uint32 // reusable buffer for query results
	count       int
}

// NewSpatialGrid creates a grid covering [minX, minX+width] x [minY, minY+height].
// maxEntities is used to preallocate cell capacity.
func NewSpatialGrid(minX, minY, width, height, cellSize float64, maxEntities int) *SpatialGrid {
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))

	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	avgPerCell := maxEntities / len(cells)
	if avgPerCell < 4 {
		avgPerCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, avgPerCell)
	}

	return &SpatialGrid{
		minX:        minX,
		minY:        minY,
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 32),
	}
}

// Clear resets all cells without deallocating underlying memory
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.count = 0
}

// Insert adds an entity at (x, y). Positions outside the grid are stored
// in the nearest edge cell so they stay queryable.
func (g *SpatialGrid) Insert(entityID uint32, x, y float64) {
	idx := g.cellIndex(x, y)
	g.cells[idx] = append(g.cells[idx], entityID)
	g.count++
}

func (g *SpatialGrid) colRow(x, y float64) (int, int) {
	col := int(math.Floor((x - g.minX) * g.invCellSize))
	row := int(math.Floor((y - g.minY) * g.invCellSize))
	return g.clampCol(col), g.clampRow(row)
}

func (g *SpatialGrid) clampCol(col int) int {
	if col < 0 {
		return 0
	}
	if col >= g.cols {
		return g.cols - 1
	}
	return col
}

func (g *SpatialGrid) clampRow(row int) int {
	if row < 0 {
		return 0
	}
	if row >= g.rows {
		return g.rows - 1
	}
	return row
}

func (g *SpatialGrid) cellIndex(x, y float64) int {
	col, row := g.colRow(x, y)
	return row*g.cols + col
}

// QueryRadius returns all entity IDs potentially within radius of (cx, cy).
//
// IMPORTANT: The returned slice is reused on subsequent calls.
// Candidates may lie outside the radius; callers do the exact distance check.
func (g *SpatialGrid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol, minRow := g.colRow(cx-radius, cy-radius)
	maxCol, maxRow := g.colRow(cx+radius, cy+radius)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}

	return g.scratch
}

// QueryCell returns all entity IDs in the cell containing (x, y)
func (g *SpatialGrid) QueryCell(x, y float64) []uint32 {
	return g.cells[g.cellIndex(x, y)]
}

// Len returns the number of inserted entities
func (g *SpatialGrid) Len() int {
	return g.count
}

// Dimensions returns the grid dimensions
func (g *SpatialGrid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}
