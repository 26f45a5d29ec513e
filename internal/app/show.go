package app

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"yieldscraper/internal/curve"
	"yieldscraper/internal/dataset"
)

// Show prints the most recent curves as a table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	schedule := a.Config.Schedule()
	curves, err := a.recentCurves(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(curves) == 0 {
		fmt.Fprintln(a.Out, "no curves found")
		return nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(a.Out)

	header := table.Row{"Date"}
	for _, label := range schedule.Labels() {
		header = append(header, label)
	}
	t.AppendHeader(header)

	for i := len(curves) - 1; i >= 0; i-- {
		c := curves[i]
		row := table.Row{c.Time.Format(curve.ISODateLayout)}
		for j := range schedule {
			row = append(row, cellText(c.Values, j))
		}
		t.AppendRow(row)
	}

	t.Render()
	return nil
}

// recentCurves returns up to limit curves in chronological order, from storage when it is
// configured and from the output file otherwise.
func (a *App) recentCurves(ctx context.Context, limit int) ([]curve.Curve, error) {
	store, closeStore := a.optionalStore(ctx)
	defer closeStore()
	if store != nil {
		return store.ListRecentCurves(ctx, a.Config.Schedule(), limit)
	}

	src := dataset.FileSource{Path: a.Config.Output.Path, Schedule: a.Config.Schedule()}
	ds, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	curves := ds.Curves()
	if limit > 0 && len(curves) > limit {
		curves = curves[len(curves)-limit:]
	}
	return curves, nil
}

func cellText(rec curve.Record, i int) string {
	if i >= len(rec) || rec[i] == "" {
		return "-"
	}
	if rec[i] == curve.NaN {
		return "n/a"
	}
	return rec[i]
}
