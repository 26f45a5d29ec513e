package curve

import (
	"errors"
	"fmt"
	"strconv"
)

// DefaultMaturities lists the published treasury maturities in months.
var DefaultMaturities = []int{1, 2, 3, 6, 12, 24, 36, 60, 84, 120, 240, 360}

// Schedule is the ordered set of maturities (in months) that defines record width and column order.
type Schedule []int

// DefaultSchedule returns a copy of the standard 12-maturity schedule.
func DefaultSchedule() Schedule {
	s := make(Schedule, len(DefaultMaturities))
	copy(s, DefaultMaturities)
	return s
}

// NewSchedule validates and copies the given maturities.
func NewSchedule(months []int) (Schedule, error) {
	s := make(Schedule, len(months))
	copy(s, months)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the schedule is non-empty, positive and strictly increasing.
func (s Schedule) Validate() error {
	if len(s) == 0 {
		return errors.New("maturity schedule is empty")
	}
	for i, m := range s {
		if m <= 0 {
			return fmt.Errorf("maturity %d at position %d must be positive", m, i)
		}
		if i > 0 && m <= s[i-1] {
			return fmt.Errorf("maturities must be strictly increasing: %d follows %d", m, s[i-1])
		}
	}
	return nil
}

// Len returns the record width.
func (s Schedule) Len() int {
	return len(s)
}

// Index returns the slot index of a maturity, or -1.
func (s Schedule) Index(months int) int {
	for i, m := range s {
		if m == months {
			return i
		}
	}
	return -1
}

// Columns renders each maturity as a decimal month count, as used in the CSV header.
func (s Schedule) Columns() []string {
	cols := make([]string, len(s))
	for i, m := range s {
		cols[i] = strconv.Itoa(m)
	}
	return cols
}

// HeaderCells renders the maturities the way the published table header shows them:
// whole years as years, anything else as months.
func (s Schedule) HeaderCells() []string {
	cells := make([]string, len(s))
	for i, m := range s {
		if m >= 12 && m%12 == 0 {
			cells[i] = strconv.Itoa(m / 12)
		} else {
			cells[i] = strconv.Itoa(m)
		}
	}
	return cells
}

// Label returns a short display label such as "3M" or "10Y".
func Label(months int) string {
	if months >= 12 && months%12 == 0 {
		return strconv.Itoa(months/12) + "Y"
	}
	return strconv.Itoa(months) + "M"
}

// Labels returns display labels for every maturity.
func (s Schedule) Labels() []string {
	labels := make([]string, len(s))
	for i, m := range s {
		labels[i] = Label(m)
	}
	return labels
}
