package extract

import "yieldscraper/internal/curve"

type assemblerState int

const (
	awaitingDate assemblerState = iota
	fillingSlots
)

// assembler fills one record per date from the values that follow it.
type assembler struct {
	width   int
	state   assemblerState
	date    string
	slot    int
	stray   int
	records curve.Records
	faults  []ShapeFault
}

// Assemble rebuilds per-date records from a token stream. Each date allocates a fresh
// record (replacing an earlier one for the same date) and the following values fill its
// slots in order. Dates with too few or too many values, and values seen before any date,
// are reported as faults; short records keep their unset slots and surplus values are dropped.
func Assemble(tokens []Token, schedule curve.Schedule) (curve.Records, []ShapeFault) {
	a := &assembler{
		width:   schedule.Len(),
		state:   awaitingDate,
		records: make(curve.Records),
	}
	for _, tok := range tokens {
		a.feed(tok)
	}
	a.finish()
	return a.records, a.faults
}

func (a *assembler) feed(tok Token) {
	if tok.Kind == Date {
		a.closeDate()
		a.date = tok.Text
		a.slot = 0
		a.records[a.date] = curve.NewRecord(a.width)
		a.state = fillingSlots
		return
	}

	switch a.state {
	case awaitingDate:
		a.stray++
	case fillingSlots:
		if a.slot < a.width {
			a.records[a.date][a.slot] = tok.Text
		}
		a.slot++
	}
}

func (a *assembler) closeDate() {
	if a.state == awaitingDate {
		if a.stray > 0 {
			a.faults = append(a.faults, ShapeFault{Want: 0, Got: a.stray})
			a.stray = 0
		}
		return
	}
	if a.slot != a.width {
		a.faults = append(a.faults, ShapeFault{Date: a.date, Want: a.width, Got: a.slot})
	}
}

func (a *assembler) finish() {
	a.closeDate()
	a.state = awaitingDate
}
