package output

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"yieldscraper/internal/curve"
)

const (
	xlsxSheet = "Yields"
	// built-in number format 14 renders as a short date
	xlsxDateFormat = 14
)

// WriteXLSX writes curves into a single-sheet workbook: one row per date, one column per
// maturity. Rates become numeric cells, NaN stays text and unset slots stay blank.
func WriteXLSX(path string, schedule curve.Schedule, curves []curve.Curve) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, 0, schedule.Len()+1)
	header = append(header, "Date")
	for _, label := range schedule.Labels() {
		header = append(header, label)
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, c := range curves {
		row := make([]interface{}, 0, len(c.Values)+1)
		row = append(row, c.Time)
		for _, v := range c.Values {
			row = append(row, xlsxValue(v))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %s: %w", c.Date, err)
		}
	}

	if len(curves) > 0 {
		style, err := f.NewStyle(&excelize.Style{NumFmt: xlsxDateFormat})
		if err != nil {
			return fmt.Errorf("create date style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(1, len(curves)+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(xlsxSheet, "A2", last, style); err != nil {
			return fmt.Errorf("apply date style: %w", err)
		}
	}

	return WriteAtomic(path, func(w io.Writer) error {
		return f.Write(w)
	})
}

func xlsxValue(v string) interface{} {
	if v == "" {
		return nil
	}
	d, ok := curve.ParseRate(v)
	if !ok {
		return v
	}
	return d.InexactFloat64()
}
