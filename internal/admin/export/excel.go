package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// WriteExcel writes one sheet per table with a styled, frozen header row.
func WriteExcel(w io.Writer, tables []Table) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	dateFmt := "yyyy-mm-dd hh:mm"
	dates, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	for i, t := range tables {
		sheet := t.Name
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}

		widths := make([]float64, len(t.Columns))
		for col, label := range t.labels() {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			if err := f.SetCellValue(sheet, cell, label); err != nil {
				return err
			}
			widths[col] = float64(len(label))
		}
		last, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
		if err := f.SetCellStyle(sheet, "A1", last, header); err != nil {
			return err
		}

		for r, row := range t.Rows {
			for col, c := range t.Columns {
				cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
				val := row[c.Key]
				if err := f.SetCellValue(sheet, cell, val); err != nil {
					return fmt.Errorf("failed to set cell value: %w", err)
				}
				if _, ok := val.(time.Time); ok {
					if err := f.SetCellStyle(sheet, cell, cell, dates); err != nil {
						return err
					}
				}
				if n := float64(len(formatValue(val, time.DateTime))); n > widths[col] {
					widths[col] = n
				}
			}
		}

		for col, width := range widths {
			name, _ := excelize.ColumnNumberToName(col + 1)
			// Between 10 and 50 characters.
			width = min(max(width*1.2, 10), 50)
			if err := f.SetColWidth(sheet, name, name, width); err != nil {
				return err
			}
		}
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
	}

	return f.Write(w)
}
