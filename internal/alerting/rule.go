package alerting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"yieldscraper/internal/curve"
)

var hundred = decimal.NewFromInt(100)

// Rule fires when the long-minus-short spread drops below ThresholdBps basis points.
// A zero threshold fires on any inversion.
type Rule struct {
	ShortMonths  int
	LongMonths   int
	ThresholdBps decimal.Decimal
}

// Validate checks that both maturities exist in schedule and are ordered.
func (r Rule) Validate(schedule curve.Schedule) error {
	if r.ShortMonths >= r.LongMonths {
		return fmt.Errorf("short maturity %d must be below long maturity %d", r.ShortMonths, r.LongMonths)
	}
	if schedule.Index(r.ShortMonths) < 0 {
		return fmt.Errorf("maturity %d months is not in the schedule", r.ShortMonths)
	}
	if schedule.Index(r.LongMonths) < 0 {
		return fmt.Errorf("maturity %d months is not in the schedule", r.LongMonths)
	}
	return nil
}

// Evaluate computes the spread for c. ok is false when either rate is missing or the
// spread is not below the threshold.
func (r Rule) Evaluate(schedule curve.Schedule, c curve.Curve) (Notification, bool, error) {
	if err := r.Validate(schedule); err != nil {
		return Notification{}, false, err
	}

	short, okShort := rateAt(schedule, c, r.ShortMonths)
	long, okLong := rateAt(schedule, c, r.LongMonths)
	if !okShort || !okLong {
		return Notification{}, false, nil
	}

	spread := long.Sub(short).Mul(hundred)
	note := Notification{
		Date:         c.Time,
		ShortLabel:   curve.Label(r.ShortMonths),
		LongLabel:    curve.Label(r.LongMonths),
		ShortRate:    short,
		LongRate:     long,
		SpreadBps:    spread,
		ThresholdBps: r.ThresholdBps,
	}
	return note, spread.LessThan(r.ThresholdBps), nil
}

func rateAt(schedule curve.Schedule, c curve.Curve, months int) (decimal.Decimal, bool) {
	idx := schedule.Index(months)
	if idx < 0 || idx >= len(c.Values) {
		return decimal.Zero, false
	}
	return curve.ParseRate(c.Values[idx])
}
