// Package layout segments a rendered page into table and prose regions.
//
// The classifier works on the binarized raster: long runs of dark pixels are
// treated as ruling lines, clustered line positions form a candidate cell
// grid, and the remaining content area is split into prose regions at
// vertical whitespace gaps. Ambiguous grid evidence deliberately degrades to
// prose: a table read as prose is still legible downstream, prose mangled
// into a broken grid is not.
package layout

import (
	"image"
	"math"
	"sort"

	"github.com/joseph-ayodele/retypeset/internal/common"
	"github.com/joseph-ayodele/retypeset/internal/entity"
)

// Version identifies the classification algorithm and its tunables' meaning.
// It feeds the fingerprint: bump it whenever segmentation behavior changes.
const Version = "geometric/1"

// Config holds classifier parameters.
type Config struct {
	// Minimum rows and columns for a valid table grid.
	MinRows int
	MinCols int

	// Grids scoring below this confidence are classified as prose.
	MinTableConfidence float64

	// Vertical whitespace (in pixels) that separates prose regions.
	MinGapPx int

	// Page margin excluded from all regions.
	MarginPx int

	// Pixels darker than this count as ink.
	InkThreshold uint8

	// Fraction of the content span a dark run must cover to be a ruling line.
	LineCoverage float64

	// Detected line positions closer than this merge into one boundary.
	LineMergePx int
}

// DefaultConfig returns defaults tuned for 300 DPI scans.
func DefaultConfig() Config {
	return Config{
		MinRows:            2,
		MinCols:            2,
		MinTableConfidence: 0.5,
		MinGapPx:           18,
		MarginPx:           24,
		InkThreshold:       128,
		LineCoverage:       0.5,
		LineMergePx:        6,
	}
}

// Classifier segments pages into ordered, non-overlapping regions.
type Classifier struct {
	cfg Config
}

func NewClassifier(cfg Config) *Classifier {
	if cfg.MinRows == 0 {
		cfg = DefaultConfig()
	}
	return &Classifier{cfg: cfg}
}

func (c *Classifier) Version() string { return Version }

// detectedLine is one ruling-line candidate: its pixel position along the
// perpendicular axis, the extent of its longest dark run along the span, and
// the fraction of the span that run covers.
type detectedLine struct {
	pos        int
	start, end int
	coverage   float64
}

// Classify returns the page's regions in top-to-bottom order. A page with no
// detectable structure yields a single whole-content prose region, never an
// empty result. A page that cannot be analyzed at all (no raster to scan)
// returns an error wrapping common.ErrClassification; the caller recovers
// with a whole-page prose region.
func (c *Classifier) Classify(page *entity.Page) ([]entity.Region, error) {
	if page.Image == nil {
		return nil, common.WrapError(common.ErrClassification, "page has no raster")
	}
	if page.Bounds().Empty() {
		return nil, common.WrapError(common.ErrClassification, "page has zero area")
	}
	content := page.Bounds().Inset(c.cfg.MarginPx)
	if content.Empty() {
		content = page.Bounds()
	}

	var regions []entity.Region

	hLines := c.rulingLines(page.Image, content, true)
	vLines := c.rulingLines(page.Image, content, false)

	var table *entity.Region
	gridH, gridV := c.gridLines(hLines, vLines)
	if len(gridH) >= c.cfg.MinRows+1 && len(gridV) >= c.cfg.MinCols+1 {
		cand := c.buildTable(page.Image, gridH, gridV)
		if cand.Confidence >= c.cfg.MinTableConfidence {
			table = &cand
		}
		// Weak grid evidence falls through: the area is reconsidered as prose.
	}
	if table != nil {
		regions = append(regions, *table)
	}

	regions = append(regions, c.proseRegions(page.Image, content, table)...)

	if len(regions) == 0 {
		regions = append(regions, entity.Region{Kind: entity.RegionProse, BBox: content})
	}

	sort.Slice(regions, func(i, j int) bool {
		if regions[i].BBox.Min.Y != regions[j].BBox.Min.Y {
			return regions[i].BBox.Min.Y < regions[j].BBox.Min.Y
		}
		return regions[i].BBox.Min.X < regions[j].BBox.Min.X
	})
	return regions, nil
}

// rulingLines scans the content area for long straight dark runs.
// horizontal selects the scan direction; returned positions are clustered.
func (c *Classifier) rulingLines(img *image.Gray, content image.Rectangle, horizontal bool) []detectedLine {
	span, breadth := content.Dx(), content.Dy()
	if !horizontal {
		span, breadth = breadth, span
	}
	if span <= 0 || breadth <= 0 {
		return nil
	}

	var raw []detectedLine
	for i := 0; i < breadth; i++ {
		longest, longestEnd, run := 0, 0, 0
		for j := 0; j < span; j++ {
			x, y := content.Min.X+j, content.Min.Y+i
			if !horizontal {
				x, y = content.Min.X+i, content.Min.Y+j
			}
			if img.GrayAt(x, y).Y < c.cfg.InkThreshold {
				run++
				if run > longest {
					longest = run
					longestEnd = j + 1
				}
			} else {
				run = 0
			}
		}
		coverage := float64(longest) / float64(span)
		if coverage >= c.cfg.LineCoverage {
			pos := content.Min.Y + i
			base := content.Min.X
			if !horizontal {
				pos = content.Min.X + i
				base = content.Min.Y
			}
			raw = append(raw, detectedLine{
				pos:      pos,
				start:    base + longestEnd - longest,
				end:      base + longestEnd,
				coverage: coverage,
			})
		}
	}
	return c.clusterLines(raw)
}

// clusterLines merges adjacent positions (a drawn line is several pixels
// thick) into one boundary, keeping the strongest coverage.
func (c *Classifier) clusterLines(lines []detectedLine) []detectedLine {
	if len(lines) == 0 {
		return nil
	}
	var out []detectedLine
	cur := lines[0]
	for _, ln := range lines[1:] {
		if ln.pos-cur.pos <= c.cfg.LineMergePx {
			// Same physical line: keep the midpoint, the widest extent, and
			// the best coverage.
			cur.pos = (cur.pos + ln.pos) / 2
			if ln.start < cur.start {
				cur.start = ln.start
			}
			if ln.end > cur.end {
				cur.end = ln.end
			}
			if ln.coverage > cur.coverage {
				cur.coverage = ln.coverage
			}
		} else {
			out = append(out, cur)
			cur = ln
		}
	}
	return append(out, cur)
}

// gridLines filters ruling-line candidates down to the mutually consistent
// set that forms a grid: horizontal boundaries must sit inside the span the
// vertical lines cover, and vice versa. A solid band of text reads as a long
// dark run but has no crossing lines, so it never survives this filter.
func (c *Classifier) gridLines(hLines, vLines []detectedLine) ([]detectedLine, []detectedLine) {
	if len(hLines) < 2 || len(vLines) < 2 {
		return nil, nil
	}
	tol := 3 * c.cfg.LineMergePx

	vy0, vy1 := medianExtent(vLines)
	var gridH []detectedLine
	for _, ln := range hLines {
		if ln.pos >= vy0-tol && ln.pos <= vy1+tol {
			gridH = append(gridH, ln)
		}
	}
	if len(gridH) < 2 {
		return nil, nil
	}

	hx0, hx1 := medianExtent(gridH)
	var gridV []detectedLine
	for _, ln := range vLines {
		if ln.pos >= hx0-tol && ln.pos <= hx1+tol {
			gridV = append(gridV, ln)
		}
	}
	if len(gridV) < 2 {
		return nil, nil
	}
	return gridH, gridV
}

// medianExtent returns the median start and end of the lines' dark runs.
func medianExtent(lines []detectedLine) (int, int) {
	starts := make([]int, len(lines))
	ends := make([]int, len(lines))
	for i, ln := range lines {
		starts[i] = ln.start
		ends[i] = ln.end
	}
	sort.Ints(starts)
	sort.Ints(ends)
	return starts[len(starts)/2], ends[len(ends)/2]
}

// buildTable assembles a table region candidate from the detected grid
// boundaries and scores it.
func (c *Classifier) buildTable(img *image.Gray, hLines, vLines []detectedLine) entity.Region {
	rowBounds := make([]int, len(hLines))
	for i, ln := range hLines {
		rowBounds[i] = ln.pos
	}
	colBounds := make([]int, len(vLines))
	for i, ln := range vLines {
		colBounds[i] = ln.pos
	}

	region := entity.Region{
		Kind:      entity.RegionTable,
		BBox:      image.Rect(colBounds[0], rowBounds[0], colBounds[len(colBounds)-1], rowBounds[len(rowBounds)-1]),
		RowBounds: rowBounds,
		ColBounds: colBounds,
	}
	region.Confidence = c.gridConfidence(img, region, hLines, vLines)
	return region
}

// gridConfidence blends grid regularity, ruling-line strength, and cell ink
// occupancy into a 0..1 score.
func (c *Classifier) gridConfidence(img *image.Gray, region entity.Region, hLines, vLines []detectedLine) float64 {
	regularity := (boundRegularity(region.RowBounds) + boundRegularity(region.ColBounds)) / 2

	var strength float64
	for _, ln := range hLines {
		strength += ln.coverage
	}
	for _, ln := range vLines {
		strength += ln.coverage
	}
	strength /= float64(len(hLines) + len(vLines))

	occupied := 0
	for r := 0; r < region.Rows(); r++ {
		for col := 0; col < region.Cols(); col++ {
			if c.hasInk(img, region.CellRect(r, col).Inset(c.cfg.LineMergePx)) {
				occupied++
			}
		}
	}
	occupancy := float64(occupied) / float64(region.Rows()*region.Cols())

	return 0.4*regularity + 0.3*strength + 0.3*occupancy
}

// boundRegularity scores how even the spacing between boundaries is, via the
// coefficient of variation of the gaps.
func boundRegularity(bounds []int) float64 {
	if len(bounds) < 3 {
		return 1
	}
	gaps := make([]float64, len(bounds)-1)
	var sum float64
	for i := 1; i < len(bounds); i++ {
		gaps[i-1] = float64(bounds[i] - bounds[i-1])
		sum += gaps[i-1]
	}
	m := sum / float64(len(gaps))
	if m <= 0 {
		return 0
	}
	var varSum float64
	for _, g := range gaps {
		varSum += (g - m) * (g - m)
	}
	cv := math.Sqrt(varSum/float64(len(gaps))) / m
	return math.Max(0, 1-cv)
}

// hasInk reports whether the rectangle contains any dark pixel.
func (c *Classifier) hasInk(img *image.Gray, rect image.Rectangle) bool {
	rect = rect.Intersect(img.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if img.GrayAt(x, y).Y < c.cfg.InkThreshold {
				return true
			}
		}
	}
	return false
}

// proseRegions splits the non-table content area into regions at vertical
// whitespace gaps. Rows covered by the table region are treated as blank so
// prose bands never overlap it.
func (c *Classifier) proseRegions(img *image.Gray, content image.Rectangle, table *entity.Region) []entity.Region {
	inkRows := make([]bool, content.Dy())
	for i := range inkRows {
		y := content.Min.Y + i
		if table != nil && y >= table.BBox.Min.Y && y < table.BBox.Max.Y {
			continue
		}
		for x := content.Min.X; x < content.Max.X; x++ {
			if img.GrayAt(x, y).Y < c.cfg.InkThreshold {
				inkRows[i] = true
				break
			}
		}
	}

	var regions []entity.Region
	bandStart, blankRun := -1, 0
	flush := func(endRow int) {
		if bandStart < 0 {
			return
		}
		band := image.Rect(content.Min.X, content.Min.Y+bandStart, content.Max.X, content.Min.Y+endRow)
		if band.Dy() > 0 {
			regions = append(regions, entity.Region{
				Kind: entity.RegionProse,
				BBox: c.tightenX(img, band),
			})
		}
		bandStart = -1
	}

	lastInk := 0
	for i, ink := range inkRows {
		if ink {
			if bandStart < 0 {
				bandStart = i
			}
			blankRun = 0
			lastInk = i
		} else if bandStart >= 0 {
			blankRun++
			if blankRun >= c.cfg.MinGapPx {
				flush(lastInk + 1)
			}
		}
	}
	flush(lastInk + 1)
	return regions
}

// tightenX shrinks a band to its leftmost and rightmost ink columns.
func (c *Classifier) tightenX(img *image.Gray, band image.Rectangle) image.Rectangle {
	minX, maxX := band.Max.X, band.Min.X
	for y := band.Min.Y; y < band.Max.Y; y++ {
		for x := band.Min.X; x < band.Max.X; x++ {
			if img.GrayAt(x, y).Y < c.cfg.InkThreshold {
				if x < minX {
					minX = x
				}
				if x+1 > maxX {
					maxX = x + 1
				}
			}
		}
	}
	if minX >= maxX {
		return band
	}
	return image.Rect(minX, band.Min.Y, maxX, band.Max.Y)
}
