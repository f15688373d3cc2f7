package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/retypeset/internal/entity"
)

func tableOf(rows [][]string) entity.Table {
	tb := entity.Table{}
	for _, r := range rows {
		var cells []entity.Cell
		for _, text := range r {
			cells = append(cells, entity.Cell{Text: text, Confidence: 0.9})
		}
		tb.Cells = append(tb.Cells, cells)
	}
	return tb
}

func TestExportTablesXLSX(t *testing.T) {
	contents := []*entity.ExtractedContent{
		{PageIndex: 0, Kind: entity.ContentTable, Tables: []entity.Table{
			tableOf([][]string{{"Name", "Qty"}, {"Widget", "4"}}),
		}},
		{PageIndex: 2, Kind: entity.ContentMixed, Tables: []entity.Table{
			tableOf([][]string{{"A"}, {"B"}}),
			tableOf([][]string{{"X", "Y", "Z"}}),
		}},
	}

	out, err := NewService(nil).ExportTablesXLSX(contents)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	for _, sheet := range []string{"P1T1", "P3T1", "P3T2"} {
		if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
			t.Fatalf("sheet %s missing, have %v", sheet, f.GetSheetList())
		}
	}
	if v, _ := f.GetCellValue("P1T1", "A1"); v != "Name" {
		t.Fatalf("P1T1!A1 = %q", v)
	}
	if v, _ := f.GetCellValue("P1T1", "B2"); v != "4" {
		t.Fatalf("P1T1!B2 = %q", v)
	}
	if v, _ := f.GetCellValue("P3T2", "C1"); v != "Z" {
		t.Fatalf("P3T2!C1 = %q", v)
	}
}

func TestExportNoTablesIsAnError(t *testing.T) {
	contents := []*entity.ExtractedContent{
		{PageIndex: 0, Kind: entity.ContentProse, Lines: []entity.Line{{Text: "prose only"}}},
	}
	if _, err := NewService(nil).ExportTablesXLSX(contents); err == nil {
		t.Fatal("prose-only document exported")
	}
}
