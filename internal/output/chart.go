package output

import (
	"errors"
	"fmt"
	"io"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"yieldscraper/internal/curve"
)

// WritePNG renders a time series per requested maturity. Unset and NaN slots are skipped.
func WritePNG(path string, schedule curve.Schedule, curves []curve.Curve, maturities []int) error {
	if len(maturities) == 0 {
		return errors.New("no maturities selected for chart")
	}

	series := make([]chart.Series, 0, len(maturities))
	for _, m := range maturities {
		idx := schedule.Index(m)
		if idx < 0 {
			return fmt.Errorf("maturity %d months is not in the schedule", m)
		}

		x := make([]time.Time, 0, len(curves))
		y := make([]float64, 0, len(curves))
		for _, c := range curves {
			if idx >= len(c.Values) {
				continue
			}
			rate, ok := curve.ParseRate(c.Values[idx])
			if !ok {
				continue
			}
			x = append(x, c.Time)
			y = append(y, rate.InexactFloat64())
		}
		if len(x) < 2 {
			continue
		}
		series = append(series, chart.TimeSeries{
			Name:    curve.Label(m),
			XValues: x,
			YValues: y,
		})
	}
	if len(series) == 0 {
		return errors.New("not enough data points to chart")
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Yield (%)",
			ValueFormatter: rateFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return WriteAtomic(path, func(w io.Writer) error {
		return graph.Render(chart.PNG, w)
	})
}
