package layout

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/joseph-ayodele/retypeset/internal/common"
	"github.com/joseph-ayodele/retypeset/internal/entity"
)

func newPage(t *testing.T, w, h int) *entity.Page {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return &entity.Page{Index: 0, Image: img, Width: w, Height: h, DPI: 300}
}

func fillRect(img *image.Gray, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
}

func hline(img *image.Gray, x0, x1, y int) {
	fillRect(img, image.Rect(x0, y, x1, y+2))
}

func vline(img *image.Gray, x, y0, y1 int) {
	fillRect(img, image.Rect(x, y0, x+2, y1))
}

// drawGrid draws a ruled rows x cols grid spanning the given rectangle and
// puts a small ink blob in every cell.
func drawGrid(img *image.Gray, r image.Rectangle, rows, cols int) {
	for i := 0; i <= rows; i++ {
		y := r.Min.Y + i*r.Dy()/rows
		hline(img, r.Min.X, r.Max.X, min(y, r.Max.Y-2))
	}
	for j := 0; j <= cols; j++ {
		x := r.Min.X + j*r.Dx()/cols
		vline(img, min(x, r.Max.X-2), r.Min.Y, r.Max.Y)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			cx := r.Min.X + j*r.Dx()/cols + r.Dx()/cols/2
			cy := r.Min.Y + i*r.Dy()/rows + r.Dy()/rows/2
			fillRect(img, image.Rect(cx-8, cy-4, cx+8, cy+4))
		}
	}
}

func classify(t *testing.T, page *entity.Page) []entity.Region {
	t.Helper()
	regions, err := NewClassifier(DefaultConfig()).Classify(page)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	return regions
}

func TestBlankPageYieldsWholePageProse(t *testing.T) {
	page := newPage(t, 600, 800)
	regions := classify(t, page)
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	if regions[0].Kind != entity.RegionProse {
		t.Fatalf("got kind %s, want prose", regions[0].Kind)
	}
	if regions[0].BBox.Empty() {
		t.Fatal("fallback region is empty")
	}
}

func TestGridPageClassifiedAsTable(t *testing.T) {
	page := newPage(t, 1000, 1200)
	// 3x4 ruled grid covering most of the content area.
	gridRect := image.Rect(100, 120, 900, 1080)
	drawGrid(page.Image, gridRect, 3, 4)

	regions := classify(t, page)

	var table *entity.Region
	for i := range regions {
		if regions[i].Kind == entity.RegionTable {
			if table != nil {
				t.Fatal("more than one table region")
			}
			table = &regions[i]
		}
	}
	if table == nil {
		t.Fatalf("no table region detected in %d regions", len(regions))
	}
	if table.Rows() != 3 || table.Cols() != 4 {
		t.Fatalf("grid is %dx%d, want 3x4", table.Rows(), table.Cols())
	}
	if table.Confidence < DefaultConfig().MinTableConfidence {
		t.Fatalf("confidence %.2f below threshold", table.Confidence)
	}
}

func TestWeakGridEvidenceFallsBackToProse(t *testing.T) {
	page := newPage(t, 1000, 1200)
	// Short dashes instead of ruling lines: below the coverage threshold.
	for i := 0; i <= 3; i++ {
		y := 120 + i*300
		hline(page.Image, 100, 300, y)
	}
	for j := 0; j <= 4; j++ {
		x := 100 + j*200
		vline(page.Image, x, 120, 260)
	}

	regions := classify(t, page)
	for _, r := range regions {
		if r.Kind == entity.RegionTable {
			t.Fatal("weak line evidence classified as table")
		}
	}
	if len(regions) == 0 {
		t.Fatal("no regions at all")
	}
}

func TestParagraphGapsSplitProseRegions(t *testing.T) {
	page := newPage(t, 600, 800)
	// Two text bands separated by a gap much wider than MinGapPx.
	fillRect(page.Image, image.Rect(60, 100, 540, 160))
	fillRect(page.Image, image.Rect(60, 300, 540, 380))

	regions := classify(t, page)
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(regions))
	}
	for _, r := range regions {
		if r.Kind != entity.RegionProse {
			t.Fatalf("unexpected region kind %s", r.Kind)
		}
	}
	if regions[0].BBox.Min.Y >= regions[1].BBox.Min.Y {
		t.Fatal("regions not in top-to-bottom order")
	}
	// Regions must not overlap.
	if regions[0].BBox.Intersect(regions[1].BBox) != (image.Rectangle{}) {
		t.Fatal("prose regions overlap")
	}
}

func TestTableAndProseCoexist(t *testing.T) {
	page := newPage(t, 1000, 1400)
	fillRect(page.Image, image.Rect(100, 100, 900, 180)) // heading band
	drawGrid(page.Image, image.Rect(100, 400, 900, 1000), 2, 3)

	regions := classify(t, page)

	var tables, prose int
	for _, r := range regions {
		switch r.Kind {
		case entity.RegionTable:
			tables++
		case entity.RegionProse:
			prose++
		}
	}
	if tables != 1 {
		t.Fatalf("got %d table regions, want 1", tables)
	}
	if prose == 0 {
		t.Fatal("heading band not detected as prose")
	}
	// No prose region may overlap the table.
	for _, a := range regions {
		if a.Kind != entity.RegionTable {
			continue
		}
		for _, b := range regions {
			if b.Kind == entity.RegionProse && a.BBox.Overlaps(b.BBox) {
				t.Fatalf("prose region %v overlaps table %v", b.BBox, a.BBox)
			}
		}
	}
}

func TestUnscannablePageIsClassificationError(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	if _, err := c.Classify(&entity.Page{Index: 0, Width: 600, Height: 800}); !errors.Is(err, common.ErrClassification) {
		t.Fatalf("nil raster: got %v, want ErrClassification", err)
	}

	page := newPage(t, 600, 800)
	page.Width, page.Height = 0, 0
	if _, err := c.Classify(page); !errors.Is(err, common.ErrClassification) {
		t.Fatalf("zero area: got %v, want ErrClassification", err)
	}
}
