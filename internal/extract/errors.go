package extract

import (
	"fmt"
	"strings"
)

// MalformedSourceError reports that an expected marker or header was not found,
// which means the page layout changed.
type MalformedSourceError struct {
	Missing string
	Pattern string
}

func (e *MalformedSourceError) Error() string {
	return fmt.Sprintf("malformed source: %s %q not found", e.Missing, e.Pattern)
}

// ShapeFault records a date whose value count did not match the schedule width.
// Date is empty for values that appeared before any date.
type ShapeFault struct {
	Date string
	Want int
	Got  int
}

func (f ShapeFault) String() string {
	if f.Date == "" {
		return fmt.Sprintf("%d values before first date", f.Got)
	}
	return fmt.Sprintf("%s: want %d values, got %d", f.Date, f.Want, f.Got)
}

// DataShapeError collects the shape faults of one page.
type DataShapeError struct {
	Faults []ShapeFault
}

func (e *DataShapeError) Error() string {
	parts := make([]string, 0, len(e.Faults))
	for _, f := range e.Faults {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("data shape mismatch (%d faults): %s", len(e.Faults), strings.Join(parts, "; "))
}
