package curve

import (
	"slices"
	"time"
)

// NaN is the sentinel for a rate the source reports as "N/A".
const NaN = "NaN"

// Record holds one value slot per maturity. An empty slot was never filled.
type Record []string

// NewRecord allocates a record with every slot unset.
func NewRecord(width int) Record {
	return make(Record, width)
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// Records maps a scraped date string to its record. It is the per-year result.
type Records map[string]Record

// Curve is a dated record with its parsed date.
type Curve struct {
	Date   string
	Time   time.Time
	Values Record
}

// Dataset is the merged result of a run, keyed by date string.
type Dataset struct {
	schedule Schedule
	records  map[string]Record
}

// NewDataset creates an empty dataset for the schedule.
func NewDataset(schedule Schedule) *Dataset {
	return &Dataset{schedule: schedule, records: make(map[string]Record)}
}

// Schedule returns the schedule the dataset was built for.
func (d *Dataset) Schedule() Schedule {
	return d.schedule
}

// Len returns the number of distinct dates.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Merge unions the records into the dataset. Existing dates are overwritten and counted.
func (d *Dataset) Merge(records Records) int {
	overwritten := 0
	for date, rec := range records {
		if _, ok := d.records[date]; ok {
			overwritten++
		}
		d.records[date] = rec.Clone()
	}
	return overwritten
}

// Set stores a single record, replacing any previous one for the date.
func (d *Dataset) Set(date string, rec Record) {
	d.records[date] = rec.Clone()
}

// Get looks up the record for a date.
func (d *Dataset) Get(date string) (Record, bool) {
	rec, ok := d.records[date]
	return rec, ok
}

// Range calls fn for every entry in map iteration order until fn returns false.
func (d *Dataset) Range(fn func(date string, rec Record) bool) {
	for date, rec := range d.records {
		if !fn(date, rec) {
			return
		}
	}
}

// Curves returns every entry whose date parses, in chronological order.
func (d *Dataset) Curves() []Curve {
	curves := make([]Curve, 0, len(d.records))
	for date, rec := range d.records {
		t, err := ParseDate(date)
		if err != nil {
			continue
		}
		curves = append(curves, Curve{Date: date, Time: t, Values: rec})
	}
	slices.SortFunc(curves, func(a, b Curve) int {
		return a.Time.Compare(b.Time)
	})
	return curves
}

// Between returns curves with from <= date <= to. Zero bounds are open.
func (d *Dataset) Between(from, to time.Time) []Curve {
	all := d.Curves()
	out := all[:0]
	for _, c := range all {
		if !from.IsZero() && c.Time.Before(from) {
			continue
		}
		if !to.IsZero() && c.Time.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Latest returns the most recent dated curve.
func (d *Dataset) Latest() (Curve, bool) {
	var latest Curve
	found := false
	for date, rec := range d.records {
		t, err := ParseDate(date)
		if err != nil {
			continue
		}
		if !found || t.After(latest.Time) {
			latest = Curve{Date: date, Time: t, Values: rec}
			found = true
		}
	}
	return latest, found
}
