package readiness

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	checklistSheet = "Checklist"
	summarySheet   = "Summary"
)

var exportColumns = []string{"Key", "Item", "Category", "Required", "Weight", "Completed", "Reason"}

// WriteXLSX renders a readiness result as a two-sheet workbook: the checklist
// breakdown with a frozen, filterable header and a one-row summary.
func WriteXLSX(w io.Writer, companyName string, result Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", checklistSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	missingStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FCE4D6"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create row style: %w", err)
	}

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(checklistSheet, cell, col); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
	if err := f.SetCellStyle(checklistSheet, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, item := range result.Breakdown {
		row := i + 2
		values := []interface{}{
			item.Key, item.Label, item.Category, yesNo(item.Required),
			item.Weight, yesNo(item.Completed), item.Reason,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(checklistSheet, cell, v); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
		if !item.Completed {
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(len(exportColumns), row)
			if err := f.SetCellStyle(checklistSheet, first, last, missingStyle); err != nil {
				return fmt.Errorf("failed to style row %d: %w", row, err)
			}
		}
	}

	if err := f.SetPanes(checklistSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	if len(result.Breakdown) > 0 {
		if err := f.AutoFilter(checklistSheet, "A1:"+lastHeader, nil); err != nil {
			return fmt.Errorf("failed to add filter: %w", err)
		}
	}
	_ = f.SetColWidth(checklistSheet, "B", "B", 36)
	_ = f.SetColWidth(checklistSheet, "G", "G", 48)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summary := [][]interface{}{
		{"Company", companyName},
		{"Score", result.Score},
		{"Achieved weight", result.AchievedWeight},
		{"Total weight", result.TotalWeight},
		{"Missing items", len(result.MissingKeys)},
		{"Checklist version", result.ChecklistVersion},
	}
	for i, pair := range summary {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &pair); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 20)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
