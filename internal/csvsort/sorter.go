// Package csvsort rewrites a dataset file in chronological order.
package csvsort

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"yieldscraper/internal/curve"
	"yieldscraper/internal/dataset"
	"yieldscraper/internal/output"
)

// DateError reports a row whose first cell is not an MM/DD/YY date. It is only raised
// when strict dates are enabled.
type DateError struct {
	Line  int
	Value string
	Err   error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("line %d: unparsable date %q: %v", e.Line, e.Value, e.Err)
}

func (e *DateError) Unwrap() error {
	return e.Err
}

// Options configure a Sorter.
type Options struct {
	Schedule    curve.Schedule
	StrictDates bool
}

// Report summarises a sort.
type Report struct {
	Rows       int
	Unparsable int
}

// Sorter orders dataset rows by their date column.
type Sorter struct {
	schedule    curve.Schedule
	strictDates bool
	logger      zerolog.Logger
}

// New constructs a Sorter.
func New(opts Options, logger zerolog.Logger) *Sorter {
	if len(opts.Schedule) == 0 {
		opts.Schedule = curve.DefaultSchedule()
	}
	return &Sorter{
		schedule:    opts.Schedule,
		strictDates: opts.StrictDates,
		logger:      logger.With().Str("component", "csv_sorter").Logger(),
	}
}

type datedRow struct {
	at    time.Time
	cells []string
}

// SortRows returns rows ordered by the date in their first cell. Rows with a parsable
// date come first in stable chronological order; the rest keep their relative order
// and follow them. firstLine is the file line number of rows[0], used in diagnostics.
func (s *Sorter) SortRows(rows [][]string, firstLine int) ([][]string, Report, error) {
	report := Report{Rows: len(rows)}
	dated := make([]datedRow, 0, len(rows))
	var undated [][]string

	for i, cells := range rows {
		first := ""
		if len(cells) > 0 {
			first = cells[0]
		}
		at, err := curve.ParseDate(first)
		if err != nil {
			if s.strictDates {
				return nil, report, &DateError{Line: firstLine + i, Value: first, Err: err}
			}
			report.Unparsable++
			s.logger.Warn().Int("line", firstLine+i).Str("value", first).Msg("row date unparsable, keeping it after dated rows")
			undated = append(undated, cells)
			continue
		}
		dated = append(dated, datedRow{at: at, cells: cells})
	}

	slices.SortStableFunc(dated, func(a, b datedRow) int {
		return a.at.Compare(b.at)
	})

	sorted := make([][]string, 0, len(rows))
	for _, d := range dated {
		sorted = append(sorted, d.cells)
	}
	sorted = append(sorted, undated...)
	return sorted, report, nil
}

// SortFile sorts the rows of the file at path and atomically replaces it. When hasHeader
// is set the first row is dropped; the canonical header is always written.
func (s *Sorter) SortFile(path string, hasHeader bool) (Report, error) {
	data, err := output.ReadFile(path)
	if err != nil {
		return Report{}, err
	}

	rows, err := readRows(data)
	if err != nil {
		return Report{}, fmt.Errorf("parse %s: %w", path, err)
	}

	firstLine := 1
	if hasHeader && len(rows) > 0 {
		rows = rows[1:]
		firstLine = 2
	}

	sorted, report, err := s.SortRows(rows, firstLine)
	if err != nil {
		return report, fmt.Errorf("sort %s: %w", path, err)
	}

	err = output.WriteAtomic(path, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(dataset.Header(s.schedule)); err != nil {
			return err
		}
		if err := writer.WriteAll(sorted); err != nil {
			return err
		}
		return writer.Error()
	})
	if err != nil {
		return report, err
	}

	s.logger.Info().
		Str("path", path).
		Int("rows", report.Rows).
		Int("unparsable", report.Unparsable).
		Msg("file sorted")
	return report, nil
}

func readRows(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}
