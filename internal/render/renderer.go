package render

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/go-pdf/fpdf"

	"github.com/joseph-ayodele/retypeset/internal/entity"
)

const (
	marginPt     = 54 // 0.75 inch
	titleSize    = 16
	bodySize     = 10
	tableSize    = 9
	lineHeightPt = 14
	cellHeightPt = 18
)

// Page is one re-typeset page: cleaned prose followed by its tables.
type Page struct {
	Index  int
	Prose  string
	Tables []entity.Table
}

// Meta is the document front matter.
type Meta struct {
	Title     string
	Generated time.Time
	Notes     []string
}

// Renderer lays extracted content out as a fresh PDF: justified prose
// paragraphs, bordered tables with a shaded header row, page-number footers.
type Renderer struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger}
}

// Render writes the typeset PDF to w.
func (r *Renderer) Render(w io.Writer, meta Meta, pages []Page) error {
	if len(pages) == 0 {
		return fmt.Errorf("render: no pages")
	}
	if meta.Generated.IsZero() {
		meta.Generated = time.Now()
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(marginPt, marginPt, marginPt)
	pdf.SetAutoPageBreak(true, marginPt)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-marginPt + 18)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	r.frontMatter(pdf, meta)

	for _, page := range pages {
		r.pageHeading(pdf, page.Index)
		if prose := strings.TrimSpace(page.Prose); prose != "" {
			r.prose(pdf, prose)
		}
		for ti := range page.Tables {
			r.table(pdf, &page.Tables[ti])
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("generate pdf: %w", err)
	}
	r.logger.Info("render.done", "pages_in", len(pages), "pages_out", pdf.PageCount())
	return nil
}

// RenderSummary writes a one-page digest: the front matter statistics and a
// preview of up to three tables (first rows only).
func (r *Renderer) RenderSummary(w io.Writer, meta Meta, pages []Page) error {
	if meta.Generated.IsZero() {
		meta.Generated = time.Now()
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(marginPt, marginPt, marginPt)
	pdf.SetAutoPageBreak(true, marginPt)
	pdf.AddPage()
	r.frontMatter(pdf, meta)

	var tables, lines int
	for _, page := range pages {
		tables += len(page.Tables)
		if page.Prose != "" {
			lines += strings.Count(page.Prose, "\n") + 1
		}
	}
	pdf.SetFont("Helvetica", "", bodySize)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(0, lineHeightPt,
		fmt.Sprintf("Pages: %d. Prose lines: %d. Tables: %d.", len(pages), lines, tables),
		"", "L", false)
	pdf.Ln(12)

	previewed := 0
	for _, page := range pages {
		for ti := range page.Tables {
			if previewed == 3 {
				break
			}
			pdf.SetFont("Helvetica", "B", 11)
			pdf.CellFormat(0, 16, fmt.Sprintf("Table preview: page %d", page.Index+1), "", 1, "L", false, 0, "")
			r.table(pdf, previewOf(&page.Tables[ti], 4))
			previewed++
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("generate summary pdf: %w", err)
	}
	return nil
}

// previewOf truncates a table to its first maxRows rows.
func previewOf(tb *entity.Table, maxRows int) *entity.Table {
	if len(tb.Cells) <= maxRows {
		return tb
	}
	return &entity.Table{Cells: tb.Cells[:maxRows]}
}

func (r *Renderer) frontMatter(pdf *fpdf.Fpdf, meta Meta) {
	title := meta.Title
	if title == "" {
		title = "Retypeset Document"
	}
	pdf.SetFont("Helvetica", "B", titleSize)
	pdf.SetTextColor(20, 20, 80)
	pdf.CellFormat(0, 24, title, "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 12, "Generated "+meta.Generated.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	for _, note := range meta.Notes {
		pdf.CellFormat(0, 12, note, "", 1, "C", false, 0, "")
	}
	pdf.Ln(12)
}

func (r *Renderer) pageHeading(pdf *fpdf.Fpdf, index int) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(120, 30, 30)
	pdf.CellFormat(0, 16, fmt.Sprintf("Original page %d", index+1), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (r *Renderer) prose(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "", bodySize)
	pdf.SetTextColor(0, 0, 0)
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(strings.ReplaceAll(para, "\n", " "))
		if para == "" {
			continue
		}
		pdf.MultiCell(0, lineHeightPt, para, "", "J", false)
		pdf.Ln(6)
	}
}

func (r *Renderer) table(pdf *fpdf.Fpdf, tb *entity.Table) {
	cols := tb.Cols()
	if cols == 0 {
		return
	}
	pageW, _ := pdf.GetPageSize()
	colW := (pageW - 2*marginPt) / float64(cols)

	for ri, row := range tb.Cells {
		fill := false
		if ri == 0 {
			pdf.SetFont("Helvetica", "B", bodySize)
			pdf.SetFillColor(200, 200, 200)
			fill = true
		} else {
			pdf.SetFont("Helvetica", "", tableSize)
			if ri%2 == 0 {
				pdf.SetFillColor(235, 235, 235)
				fill = true
			}
		}
		pdf.SetTextColor(0, 0, 0)
		for _, cell := range row {
			pdf.CellFormat(colW, cellHeightPt, cell.Text, "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(12)
}
