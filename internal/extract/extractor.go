package extract

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/joseph-ayodele/retypeset/internal/common"
	"github.com/joseph-ayodele/retypeset/internal/entity"
	"github.com/joseph-ayodele/retypeset/internal/ocr"
)

// Cells smaller than this on either axis are upscaled before recognition.
// Tesseract struggles below ~20px glyph height.
const minCellPx = 24

// Extractor turns classified page regions into structured content. Prose
// regions are recognized whole and stitched into ordered lines; table
// regions are recognized cell by cell so the grid stays rectangular.
type Extractor struct {
	engine ocr.Engine
	cfg    common.ExtractConfig
	logger *slog.Logger
}

func New(engine ocr.Engine, cfg common.ExtractConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{engine: engine, cfg: cfg, logger: logger}
}

// ExtractPage recognizes every region of a page, in region order, and
// assembles the result under the page's fingerprint. A recognition failure
// after the single retry fails the whole page.
func (e *Extractor) ExtractPage(ctx context.Context, page *entity.Page, regions []entity.Region, fp entity.Fingerprint) (*entity.ExtractedContent, error) {
	content := &entity.ExtractedContent{
		Fingerprint: fp,
		PageIndex:   page.Index,
	}

	for _, region := range regions {
		switch region.Kind {
		case entity.RegionTable:
			table, err := e.extractTable(ctx, page, &region)
			if err != nil {
				return nil, err
			}
			content.Tables = append(content.Tables, *table)
		default:
			lines, err := e.extractProse(ctx, page, &region)
			if err != nil {
				return nil, err
			}
			content.Lines = append(content.Lines, lines...)
		}
	}

	content.Kind = contentKind(content)
	if err := content.Validate(); err != nil {
		return nil, err
	}
	return content, nil
}

func contentKind(c *entity.ExtractedContent) entity.ContentKind {
	switch {
	case len(c.Tables) > 0 && len(c.Lines) > 0:
		return entity.ContentMixed
	case len(c.Tables) > 0:
		return entity.ContentTable
	default:
		return entity.ContentProse
	}
}

// extractProse recognizes the region crop in one pass and stitches the
// resulting words into lines.
func (e *Extractor) extractProse(ctx context.Context, page *entity.Page, region *entity.Region) ([]entity.Line, error) {
	crop := cropPage(page, region.BBox)
	if crop == nil {
		return nil, nil
	}
	words, err := e.recognize(ctx, crop)
	if err != nil {
		return nil, err
	}
	return e.stitchLines(words), nil
}

// extractTable recognizes each grid cell independently. Empty cells stay in
// the grid as empty strings so every row keeps the same column count.
func (e *Extractor) extractTable(ctx context.Context, page *entity.Page, region *entity.Region) (*entity.Table, error) {
	rows, cols := region.Rows(), region.Cols()
	table := &entity.Table{Cells: make([][]entity.Cell, rows)}
	for r := 0; r < rows; r++ {
		table.Cells[r] = make([]entity.Cell, cols)
		for c := 0; c < cols; c++ {
			cell, err := e.extractCell(ctx, page, region.CellRect(r, c))
			if err != nil {
				return nil, err
			}
			table.Cells[r][c] = cell
		}
	}
	return table, nil
}

func (e *Extractor) extractCell(ctx context.Context, page *entity.Page, rect image.Rectangle) (entity.Cell, error) {
	crop := cropPage(page, rect)
	if crop == nil {
		return entity.Cell{Confidence: 1}, nil
	}
	img := upscaleSmall(crop)
	words, err := e.recognize(ctx, img)
	if err != nil {
		return entity.Cell{}, err
	}
	if len(words) == 0 {
		return entity.Cell{Confidence: 1}, nil
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].Box.Min.Y != words[j].Box.Min.Y {
			return words[i].Box.Min.Y < words[j].Box.Min.Y
		}
		return words[i].Box.Min.X < words[j].Box.Min.X
	})
	parts := make([]string, len(words))
	var sum float64
	for i, w := range words {
		parts[i] = w.Text
		sum += w.Confidence
	}
	conf := sum / float64(len(words))
	return entity.Cell{
		Text:          strings.Join(parts, " "),
		Confidence:    conf,
		LowConfidence: conf < e.cfg.LowConfidence,
	}, nil
}

// recognize calls the engine, retrying once after a fixed pause. The second
// failure is terminal for the page.
func (e *Extractor) recognize(ctx context.Context, img image.Image) ([]entity.Word, error) {
	words, err := e.engine.Recognize(ctx, img)
	if err == nil {
		return words, nil
	}
	e.logger.Warn("extract.recognize.retry", "error", err)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(e.cfg.RetryDelay):
	}
	words, err = e.engine.Recognize(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRecognition, err)
	}
	return words, nil
}

// stitchLines orders words top-to-bottom, left-to-right and groups them into
// lines. Two words share a line when their vertical centers are within half
// the median word height of each other.
func (e *Extractor) stitchLines(words []entity.Word) []entity.Line {
	if len(words) == 0 {
		return nil
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].Box.Min.Y != words[j].Box.Min.Y {
			return words[i].Box.Min.Y < words[j].Box.Min.Y
		}
		return words[i].Box.Min.X < words[j].Box.Min.X
	})

	tol := medianHeight(words) / 2
	if tol < 1 {
		tol = 1
	}

	var lines []entity.Line
	var band []entity.Word
	bandCenter := center(words[0].Box)
	for _, w := range words {
		c := center(w.Box)
		if len(band) > 0 && abs(c-bandCenter) > tol {
			lines = append(lines, e.flushLine(band))
			band = band[:0]
		}
		if len(band) == 0 {
			bandCenter = c
		}
		band = append(band, w)
	}
	lines = append(lines, e.flushLine(band))
	return lines
}

func (e *Extractor) flushLine(band []entity.Word) entity.Line {
	sort.Slice(band, func(i, j int) bool { return band[i].Box.Min.X < band[j].Box.Min.X })
	parts := make([]string, len(band))
	var sum float64
	for i, w := range band {
		parts[i] = w.Text
		sum += w.Confidence
	}
	conf := sum / float64(len(band))
	return entity.Line{
		Text:          strings.Join(parts, " "),
		Confidence:    conf,
		LowConfidence: conf < e.cfg.LowConfidence,
	}
}

func medianHeight(words []entity.Word) int {
	hs := make([]int, len(words))
	for i, w := range words {
		hs[i] = w.Box.Dy()
	}
	sort.Ints(hs)
	return hs[len(hs)/2]
}

func center(r image.Rectangle) int { return (r.Min.Y + r.Max.Y) / 2 }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// cropPage returns the page sub-image under rect, or nil when the
// intersection with the page is empty.
func cropPage(page *entity.Page, rect image.Rectangle) image.Image {
	clipped := rect.Intersect(page.Image.Bounds())
	if clipped.Empty() {
		return nil
	}
	return page.Image.SubImage(clipped)
}

// upscaleSmall doubles images below minCellPx on either axis. Grid cells can
// be a dozen pixels tall at 300 DPI and recognize badly at native size.
func upscaleSmall(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() >= minCellPx && b.Dy() >= minCellPx {
		return img
	}
	dst := image.NewGray(image.Rect(0, 0, b.Dx()*2, b.Dy()*2))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
