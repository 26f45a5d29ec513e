// Package extract turns the raw text of a published yield-curve page into dated records.
//
// The page is not parsed as HTML. Markup is stripped character by character, cell
// boundaries are reconstructed from tag openings, and the surviving cells are classified
// by shape alone: 8-character cells containing a slash are dates (MM/DD/YY), 4-character
// cells are rates. Anything else is discarded without a diagnostic.
package extract

import (
	"strings"

	"yieldscraper/internal/curve"
)

const (
	// DefaultStartMarker identifies the data table.
	DefaultStartMarker = "t-chart"
	// DefaultEndMarker terminates the page content area.
	DefaultEndMarker = "End Main Content Area"

	separator  = '\t'
	valueWidth = 4
	dateWidth  = 8
	brokenNA   = "/N/A"
)

// Kind classifies a token.
type Kind int

const (
	// Value is a 4-character rate or the NaN sentinel.
	Value Kind = iota
	// Date is an MM/DD/YY date.
	Date
)

func (k Kind) String() string {
	if k == Date {
		return "date"
	}
	return "value"
}

// Token is a single classified table cell.
type Token struct {
	Kind Kind
	Text string
}

// TokenizerOptions configure region bounds and the expected header.
type TokenizerOptions struct {
	StartMarker string
	EndMarker   string
	Schedule    curve.Schedule
}

func (o TokenizerOptions) withDefaults() TokenizerOptions {
	if o.StartMarker == "" {
		o.StartMarker = DefaultStartMarker
	}
	if o.EndMarker == "" {
		o.EndMarker = DefaultEndMarker
	}
	if len(o.Schedule) == 0 {
		o.Schedule = curve.DefaultSchedule()
	}
	return o
}

// Tokenize isolates the data table in raw, strips its markup and returns the data cells in order.
func Tokenize(raw string, opts TokenizerOptions) ([]Token, error) {
	opts = opts.withDefaults()

	region, err := bound(raw, opts.StartMarker, opts.EndMarker)
	if err != nil {
		return nil, err
	}

	stripped := strip(region)

	header := HeaderSequence(opts.Schedule)
	idx := strings.Index(stripped, header)
	if idx < 0 {
		return nil, &MalformedSourceError{Missing: "header", Pattern: header}
	}

	cells := strings.Split(stripped[idx+len(header):], string(separator))
	return classify(cells), nil
}

// HeaderSequence is the stripped form of the table header row for the schedule.
func HeaderSequence(schedule curve.Schedule) string {
	var b strings.Builder
	for _, cell := range schedule.HeaderCells() {
		b.WriteString(cell)
		b.WriteByte(separator)
	}
	return b.String()
}

func bound(raw, start, end string) (string, error) {
	i := strings.Index(raw, start)
	if i < 0 {
		return "", &MalformedSourceError{Missing: "start marker", Pattern: start}
	}
	rest := raw[i:]
	j := strings.Index(rest, end)
	if j < 0 {
		return "", &MalformedSourceError{Missing: "end marker", Pattern: end}
	}
	return rest[:j], nil
}

// strip keeps digits, '.', '/' and "N/A" outside of markup, and writes one separator per
// tag opening unless the last written byte already is one.
func strip(region string) string {
	var b strings.Builder
	b.Grow(len(region) / 4)

	inMarkup := false
	var last byte
	prevPrev, prev := '0', '0'

	for _, c := range region {
		switch {
		case c == '<':
			inMarkup = true
			if b.Len() > 0 && last != separator {
				b.WriteByte(separator)
				last = separator
			}
		case c == '>':
			inMarkup = false
		case inMarkup:
		case (c >= '0' && c <= '9') || c == '.' || c == '/':
			b.WriteRune(c)
			last = byte(c)
		case prevPrev == 'N' && prev == '/' && c == 'A':
			b.WriteString("N/A")
			last = 'A'
		}
		prevPrev, prev = prev, c
	}

	return b.String()
}

func classify(cells []string) []Token {
	tokens := make([]Token, 0, len(cells))
	for _, cell := range cells {
		switch {
		case len(cell) == valueWidth:
			if cell == brokenNA {
				tokens = append(tokens, Token{Kind: Value, Text: curve.NaN})
				continue
			}
			// joined cells show up as extra dots; a slash would make the cell ambiguous
			if strings.Count(cell, ".") > 1 || strings.ContainsRune(cell, '/') {
				continue
			}
			tokens = append(tokens, Token{Kind: Value, Text: cell})
		case len(cell) == dateWidth && strings.ContainsRune(cell, '/'):
			tokens = append(tokens, Token{Kind: Date, Text: cell})
		}
	}
	return tokens
}
