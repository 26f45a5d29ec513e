package storage

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"yieldscraper/internal/curve"
)

// PointsFromCurves flattens curves into one point per filled slot. Unset slots are not stored.
func PointsFromCurves(schedule curve.Schedule, curves []curve.Curve) []CurvePoint {
	points := make([]CurvePoint, 0, len(curves)*schedule.Len())
	for _, c := range curves {
		for i, raw := range c.Values {
			if i >= schedule.Len() || raw == "" {
				continue
			}
			p := CurvePoint{Date: c.Time, Maturity: schedule[i], Raw: raw}
			if rate, ok := curve.ParseRate(raw); ok {
				p.Rate = decimal.NullDecimal{Decimal: rate, Valid: true}
			}
			points = append(points, p)
		}
	}
	return points
}

// CurvesFromPoints groups points back into chronological curves. Maturities outside the
// schedule are ignored.
func CurvesFromPoints(schedule curve.Schedule, points []CurvePoint) []curve.Curve {
	byDate := make(map[time.Time]*curve.Curve)
	for _, p := range points {
		idx := schedule.Index(p.Maturity)
		if idx < 0 {
			continue
		}
		day := p.Date.UTC().Truncate(24 * time.Hour)
		c, ok := byDate[day]
		if !ok {
			c = &curve.Curve{Date: curve.FormatDate(day), Time: day, Values: curve.NewRecord(schedule.Len())}
			byDate[day] = c
		}
		c.Values[idx] = p.Raw
	}

	curves := make([]curve.Curve, 0, len(byDate))
	for _, c := range byDate {
		curves = append(curves, *c)
	}
	slices.SortFunc(curves, func(a, b curve.Curve) int {
		return a.Time.Compare(b.Time)
	})
	return curves
}

func rateParam(rate decimal.NullDecimal) interface{} {
	if !rate.Valid {
		return nil
	}
	return rate.Decimal.String()
}

func parseRate(v *string) (decimal.NullDecimal, error) {
	if v == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse rate: %w", err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}
