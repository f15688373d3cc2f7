package export

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/retypeset/internal/entity"
)

// Service produces XLSX bytes from extracted tables, one sheet per table.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ExportTablesXLSX collects every table of every page into a workbook.
// Sheets are named P<page>T<n> after their origin: page 3's second table
// lands on sheet P3T2. A document without tables is an error, not an empty
// workbook.
func (s *Service) ExportTablesXLSX(contents []*entity.ExtractedContent) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.workbook.close_error", "error", err)
		}
	}()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDDDDD"}},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	var sheets int
	for _, content := range contents {
		for ti := range content.Tables {
			sheet := fmt.Sprintf("P%dT%d", content.PageIndex+1, ti+1)
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, fmt.Errorf("new sheet %s: %w", sheet, err)
			}
			if err := writeTable(f, sheet, &content.Tables[ti], headerStyle); err != nil {
				return nil, err
			}
			sheets++
		}
	}
	if sheets == 0 {
		return nil, fmt.Errorf("export: document has no tables")
	}

	// Drop the default sheet so the workbook opens on real data.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		s.logger.Warn("export.default_sheet.delete_error", "error", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("export.done", "sheets", sheets, "bytes", buf.Len(), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, sheet string, tb *entity.Table, headerStyle int) error {
	widths := make([]int, tb.Cols())
	for ri, row := range tb.Cells {
		for ci, cell := range row {
			name, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			if err != nil {
				return fmt.Errorf("cell name (%d,%d): %w", ci, ri, err)
			}
			if err := f.SetCellValue(sheet, name, cell.Text); err != nil {
				return fmt.Errorf("set cell %s!%s: %w", sheet, name, err)
			}
			if len(cell.Text) > widths[ci] {
				widths[ci] = len(cell.Text)
			}
		}
	}

	if tb.Rows() > 0 && tb.Cols() > 0 {
		last, _ := excelize.CoordinatesToCellName(tb.Cols(), 1)
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("style header %s: %w", sheet, err)
		}
	}
	for ci, w := range widths {
		col, err := excelize.ColumnNumberToName(ci + 1)
		if err != nil {
			continue
		}
		width := float64(w) + 2
		if width < 8 {
			width = 8
		}
		if width > 60 {
			width = 60
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("col width %s!%s: %w", sheet, col, err)
		}
	}
	return nil
}
