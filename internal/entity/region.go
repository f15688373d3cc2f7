package entity

import "image"

// RegionKind tags a classified page region.
type RegionKind string

const (
	RegionProse   RegionKind = "PROSE"
	RegionTable   RegionKind = "TABLE"
	RegionUnknown RegionKind = "UNKNOWN"
)

// Region is a rectangular sub-area of a page. Regions on the same page are
// non-overlapping; their union need not cover the page (margins excluded).
// Table regions additionally carry the pixel positions of the detected grid
// boundaries, so RowBounds/ColBounds are nil for prose regions.
type Region struct {
	Kind       RegionKind
	BBox       image.Rectangle
	RowBounds  []int // y pixel positions of horizontal grid boundaries, ascending
	ColBounds  []int // x pixel positions of vertical grid boundaries, ascending
	Confidence float64
}

// Rows returns the number of table rows implied by the grid boundaries.
func (r *Region) Rows() int {
	if len(r.RowBounds) < 2 {
		return 0
	}
	return len(r.RowBounds) - 1
}

// Cols returns the number of table columns implied by the grid boundaries.
func (r *Region) Cols() int {
	if len(r.ColBounds) < 2 {
		return 0
	}
	return len(r.ColBounds) - 1
}

// CellRect returns the pixel rectangle of cell (row, col).
// Callers must ensure row < Rows() and col < Cols().
func (r *Region) CellRect(row, col int) image.Rectangle {
	return image.Rect(r.ColBounds[col], r.RowBounds[row], r.ColBounds[col+1], r.RowBounds[row+1])
}
