package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"yieldscraper/internal/curve"
)

// HeaderDate is the first header cell of the delimited file.
const HeaderDate = "Date"

// Header returns the canonical header row for a schedule.
func Header(schedule curve.Schedule) []string {
	return append([]string{HeaderDate}, schedule.Columns()...)
}

// Row renders a dated record as a file row of exactly width+1 cells.
func Row(date string, rec curve.Record, width int) []string {
	row := make([]string, width+1)
	row[0] = date
	copy(row[1:], rec)
	return row
}

// Render writes the header and one row per dataset entry in map iteration order.
func Render(ds *curve.Dataset, w io.Writer) error {
	schedule := ds.Schedule()
	writer := csv.NewWriter(w)

	if err := writer.Write(Header(schedule)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	var rowErr error
	ds.Range(func(date string, rec curve.Record) bool {
		if err := writer.Write(Row(date, rec, schedule.Len())); err != nil {
			rowErr = fmt.Errorf("write row %s: %w", date, err)
			return false
		}
		return true
	})
	if rowErr != nil {
		return rowErr
	}

	writer.Flush()
	return writer.Error()
}

// RenderCurves writes the header and the curves in the order given.
func RenderCurves(schedule curve.Schedule, curves []curve.Curve, w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header(schedule)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range curves {
		if err := writer.Write(Row(c.Date, c.Values, schedule.Len())); err != nil {
			return fmt.Errorf("write row %s: %w", c.Date, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// RenderString renders ds into a string.
func RenderString(ds *curve.Dataset) string {
	var buf bytes.Buffer
	// writes to a bytes.Buffer cannot fail
	_ = Render(ds, &buf)
	return buf.String()
}

// Parse reads a delimited file back into a dataset. A leading header row is skipped,
// short rows are padded with unset slots and rows wider than the schedule are rejected.
func Parse(r io.Reader, schedule curve.Schedule) (*curve.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	ds := curve.NewDataset(schedule)
	width := schedule.Len()
	for line := 1; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse dataset: %w", err)
		}
		if line == 1 && len(row) > 0 && row[0] == HeaderDate {
			continue
		}
		if len(row)-1 > width {
			return nil, fmt.Errorf("parse dataset: line %d has %d values, schedule has %d", line, len(row)-1, width)
		}
		if row[0] == "" {
			return nil, fmt.Errorf("parse dataset: line %d has no date", line)
		}

		rec := curve.NewRecord(width)
		copy(rec, row[1:])
		ds.Set(row[0], rec)
	}
	return ds, nil
}
