package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"yieldscraper/internal/curve"
	"yieldscraper/internal/dataset"
	"yieldscraper/internal/output"
)

// Export writes a date window of the dataset as CSV, XLSX and/or a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.XLSXPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv, --xlsx or --png must be provided")
	}

	from, err := parseISODate("--from", opts.From)
	if err != nil {
		return err
	}
	to, err := parseISODate("--to", opts.To)
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return errors.New("--from must not be after --to")
	}

	src, closeSource := a.source(ctx)
	defer closeSource()

	ds, err := src.Load(ctx)
	if err != nil {
		return err
	}

	curves := ds.Between(from, to)
	if len(curves) == 0 {
		a.Logger.Info().Msg("no curves found for export window")
		return nil
	}
	schedule := ds.Schedule()
	a.Logger.Info().Int("curves", len(curves)).Msg("exporting curves")

	if opts.CSVPath != "" {
		if err := output.WriteAtomic(opts.CSVPath, func(w io.Writer) error {
			return dataset.RenderCurves(schedule, curves, w)
		}); err != nil {
			return err
		}
	}

	if opts.XLSXPath != "" {
		if err := output.WriteXLSX(opts.XLSXPath, schedule, curves); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		maturities := opts.Maturities
		if len(maturities) == 0 {
			maturities = []int{a.Config.Alerting.ShortMaturity, a.Config.Alerting.LongMaturity}
		}
		maxPoints := a.Config.ResolveMaxPoints(opts.MaxPoints)
		downsampled := downsampleCurves(curves, maxPoints)
		a.Logger.Debug().Int("total", len(curves)).Int("charted", len(downsampled)).Msg("downsampled chart data")
		if err := output.WritePNG(opts.PNGPath, schedule, downsampled, maturities); err != nil {
			return err
		}
	}

	return nil
}

func parseISODate(flag, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(curve.ISODateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s value %q: want YYYY-MM-DD", flag, v)
	}
	return t, nil
}

// downsampleCurves picks max evenly spaced curves, keeping the first and last.
func downsampleCurves(curves []curve.Curve, max int) []curve.Curve {
	if max <= 0 || len(curves) <= max {
		return curves
	}
	if max == 1 {
		return curves[len(curves)-1:]
	}

	result := make([]curve.Curve, 0, max)
	step := float64(len(curves)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(curves) {
			idx = len(curves) - 1
		}
		result = append(result, curves[idx])
	}
	return result
}
