package curve

import "time"

const (
	// DateLayout is the MM/DD/YY form dates are published and stored in.
	DateLayout = "01/02/06"
	// ISODateLayout is used on the API and CLI surfaces.
	ISODateLayout = "2006-01-02"
)

// ParseDate parses a scraped MM/DD/YY date. Two-digit years 69-99 map to the 1900s.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate renders t in the scraped MM/DD/YY form.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
