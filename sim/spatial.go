package sim

import "math"

// EntityRef identifies an entity in the grid by kind and index into that
// kind's collection for the current tick.
type EntityRef struct {
	Kind Kind
	Idx  int
}

// SpatialGrid is a uniform grid for broad-phase collision queries. It is
// rebuilt every collision pass.
type SpatialGrid struct {
	cell  float64
	cols  int
	rows  int
	cells [][]EntityRef
}

// NewSpatialGrid covers a width x height canvas with square cells.
func NewSpatialGrid(width, height, cell float64) *SpatialGrid {
	if cell <= 0 {
		cell = 64
	}
	cols := int(math.Ceil(width/cell)) + 1
	rows := int(math.Ceil(height/cell)) + 1
	return &SpatialGrid{
		cell:  cell,
		cols:  cols,
		rows:  rows,
		cells: make([][]EntityRef, cols*rows),
	}
}

// Clear resets all cells and keeps their capacity.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// span returns the clamped cell range covering a box around (x, y).
func (g *SpatialGrid) span(x, y, radius float64) (minCX, minCY, maxCX, maxCY int) {
	clampTo := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v >= hi {
			return hi - 1
		}
		return v
	}
	minCX = clampTo(int(math.Floor((x-radius)/g.cell)), g.cols)
	maxCX = clampTo(int(math.Floor((x+radius)/g.cell)), g.cols)
	minCY = clampTo(int(math.Floor((y-radius)/g.cell)), g.rows)
	maxCY = clampTo(int(math.Floor((y+radius)/g.cell)), g.rows)
	return
}

// InsertCircle adds ref to every cell its bounding box overlaps.
func (g *SpatialGrid) InsertCircle(x, y, radius float64, ref EntityRef) {
	minCX, minCY, maxCX, maxCY := g.span(x, y, radius)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			idx := cy*g.cols + cx
			g.cells[idx] = append(g.cells[idx], ref)
		}
	}
}

// QueryBuf appends refs from every cell overlapping the box to buf. A ref
// spanning several cells appears once per cell; callers dedupe.
func (g *SpatialGrid) QueryBuf(x, y, radius float64, buf []EntityRef) []EntityRef {
	minCX, minCY, maxCX, maxCY := g.span(x, y, radius)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			buf = append(buf, g.cells[cy*g.cols+cx]...)
		}
	}
	return buf
}
