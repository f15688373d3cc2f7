package entity

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint is the opaque identity of one (document, page, parameters)
// extraction. Two fingerprints are equal iff every input that affects the
// extraction output is equal.
type Fingerprint [32]byte

// Hex returns the fingerprint as lowercase hex.
func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f[:])
}

// ContentKind tags what an ExtractedContent carries.
type ContentKind string

const (
	ContentProse ContentKind = "PROSE"
	ContentTable ContentKind = "TABLE"
	ContentMixed ContentKind = "MIXED"
)

// Line is one stitched text line of a prose region.
// Low-confidence recognition is flagged, never dropped.
type Line struct {
	Text          string  `json:"text"`
	Confidence    float64 `json:"confidence"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
}

// Cell is one table cell. Empty recognition yields an empty Text so the
// containing grid stays rectangular.
type Cell struct {
	Text          string  `json:"text"`
	Confidence    float64 `json:"confidence"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
}

// Table is a rectangular grid of cells: every row has the same column count.
type Table struct {
	Cells [][]Cell `json:"cells"`
}

// Rows returns the number of rows.
func (t *Table) Rows() int { return len(t.Cells) }

// Cols returns the column count of the first row, or 0 for an empty table.
func (t *Table) Cols() int {
	if len(t.Cells) == 0 {
		return 0
	}
	return len(t.Cells[0])
}

// Validate checks the rectangularity invariant.
func (t *Table) Validate() error {
	cols := t.Cols()
	for i, row := range t.Cells {
		if len(row) != cols {
			return fmt.Errorf("table row %d has %d cells, want %d", i, len(row), cols)
		}
	}
	return nil
}

// ExtractedContent is the pipeline's output unit for one page: the stitched
// prose lines and/or table grids, plus the fingerprint they were derived
// under. It is created once on a cache miss and never mutated afterwards.
type ExtractedContent struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	PageIndex   int         `json:"page_index"`
	Kind        ContentKind `json:"kind"`
	Lines       []Line      `json:"lines,omitempty"`
	Tables      []Table     `json:"tables,omitempty"`
}

// Validate checks the invariants a stored content must satisfy.
func (c *ExtractedContent) Validate() error {
	switch c.Kind {
	case ContentProse, ContentTable, ContentMixed:
	default:
		return fmt.Errorf("unknown content kind %q", c.Kind)
	}
	for i := range c.Tables {
		if err := c.Tables[i].Validate(); err != nil {
			return fmt.Errorf("table %d: %w", i, err)
		}
	}
	return nil
}

// PlainText renders the content as text for the cleaning and rendering
// stages: prose lines in order, tables as tab-separated rows.
func (c *ExtractedContent) PlainText() string {
	var b strings.Builder
	for _, ln := range c.Lines {
		b.WriteString(ln.Text)
		b.WriteByte('\n')
	}
	for ti := range c.Tables {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		for _, row := range c.Tables[ti].Cells {
			texts := make([]string, len(row))
			for i, cell := range row {
				texts[i] = cell.Text
			}
			b.WriteString(strings.Join(texts, "\t"))
			b.WriteByte('\n')
		}
	}
	return b.String()
}
