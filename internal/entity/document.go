package entity

import (
	"encoding/hex"
	"image"
)

// Document is a read-only view of one source PDF. It is identified by the
// sha256 of its source bytes and constructed once per run; nothing mutates
// it after loading.
type Document struct {
	SourcePath string
	Hash       [32]byte
	Pages      []Page
}

// HashHex returns the document content hash as lowercase hex.
func (d *Document) HashHex() string {
	return hex.EncodeToString(d.Hash[:])
}

// Page is a single rendered page of a Document. Index is 0-based.
type Page struct {
	Index  int
	Image  *image.Gray
	Width  int
	Height int
	DPI    int
}

// Bounds returns the page rectangle in pixel coordinates.
func (p *Page) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.Width, p.Height)
}
