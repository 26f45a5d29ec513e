package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"yieldscraper/internal/alerting"
	"yieldscraper/internal/config"
	"yieldscraper/internal/curve"
)

const sample = `Date,1,3,6,12,24,36,60,84,120,240,360
01/02/90,NaN,7.83,7.89,7.81,7.87,7.90,7.87,7.98,7.94,NaN,8.00
01/03/90,NaN,7.89,7.94,7.85,7.94,7.96,7.92,8.04,7.99,NaN,8.04
01/04/90,NaN,7.84,7.90,7.82,7.92,7.93,7.91,8.02,7.98,NaN,8.04
`

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Scrape.Maturities = []int{1, 3, 6, 12, 24, 36, 60, 84, 120, 240, 360}
	cfg.Output.Path = filepath.Join(t.TempDir(), "all_yield_data.csv")
	cfg.Database.DSN = ""
	require.NoError(t, os.WriteFile(cfg.Output.Path, []byte(sample), 0o644))

	out := &bytes.Buffer{}
	a := NewApp(cfg, zerolog.Nop())
	a.Out = out
	return a, out
}

func TestShowPrintsNewestFirst(t *testing.T) {
	a, out := newTestApp(t)
	require.NoError(t, a.Show(context.Background(), ShowOptions{Limit: 2}))

	text := out.String()
	require.Contains(t, text, "10Y")
	require.NotContains(t, text, "1990-01-02")
	require.Less(t, strings.Index(text, "1990-01-04"), strings.Index(text, "1990-01-03"))
	require.Contains(t, text, "n/a")
}

func TestExportWindow(t *testing.T) {
	a, _ := newTestApp(t)
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "window.csv")
	xlsxPath := filepath.Join(dir, "window.xlsx")
	pngPath := filepath.Join(dir, "window.png")

	err := a.Export(context.Background(), ExportOptions{
		From:       "1990-01-03",
		To:         "1990-01-04",
		CSVPath:    csvPath,
		XLSXPath:   xlsxPath,
		PNGPath:    pngPath,
		Maturities: []int{24, 120},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Equal(t, []string{
		"Date,1,3,6,12,24,36,60,84,120,240,360",
		"01/03/90,NaN,7.89,7.94,7.85,7.94,7.96,7.92,8.04,7.99,NaN,8.04",
		"01/04/90,NaN,7.84,7.90,7.82,7.92,7.93,7.91,8.02,7.98,NaN,8.04",
	}, lines)

	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Yields")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	png, err := os.ReadFile(pngPath)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestExportRejectsBadArguments(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	require.Error(t, a.Export(ctx, ExportOptions{}))
	require.Error(t, a.Export(ctx, ExportOptions{CSVPath: "x.csv", From: "01/02/90"}))
	require.Error(t, a.Export(ctx, ExportOptions{CSVPath: "x.csv", From: "1990-02-01", To: "1990-01-01"}))
}

func TestDownsampleCurves(t *testing.T) {
	curves := make([]curve.Curve, 10)
	for i := range curves {
		curves[i].Date = string(rune('a' + i))
	}

	got := downsampleCurves(curves, 4)
	dates := make([]string, len(got))
	for i, c := range got {
		dates[i] = c.Date
	}
	if diff := cmp.Diff([]string{"a", "d", "g", "j"}, dates); diff != "" {
		t.Fatalf("downsample mismatch (-want +got):\n%s", diff)
	}

	if len(downsampleCurves(curves, 0)) != 10 {
		t.Fatal("zero max keeps everything")
	}
	if got := downsampleCurves(curves, 1); len(got) != 1 || got[0].Date != "j" {
		t.Fatalf("max 1 keeps the latest curve, got %#v", got)
	}
}

func TestScrapeOverrides(t *testing.T) {
	a, _ := newTestApp(t)
	run, err := a.withScrapeOverrides(ScrapeOptions{Workers: 4, OutputPath: "other.csv", Policy: "abort"})
	require.NoError(t, err)

	require.Equal(t, 4, run.Config.Scrape.Workers)
	require.Equal(t, "other.csv", run.Config.Output.Path)
	require.Equal(t, "abort", run.Config.Scrape.FailurePolicy)
	require.NotEqual(t, "other.csv", a.Config.Output.Path, "overrides must not leak into the shared config")
}

func TestScrapeOverridesRejectUnknownPolicy(t *testing.T) {
	a, _ := newTestApp(t)
	_, err := a.withScrapeOverrides(ScrapeOptions{Policy: "abrot"})
	require.ErrorContains(t, err, "FailurePolicy")

	err = a.Scrape(context.Background(), ScrapeOptions{Policy: "abrot"})
	require.Error(t, err)
}

func TestSortLogsOnce(t *testing.T) {
	a, _ := newTestApp(t)
	var logs bytes.Buffer
	a.Logger = zerolog.New(&logs)

	path := filepath.Join(t.TempDir(), "unsorted.csv")
	require.NoError(t, os.WriteFile(path, []byte("01/03/90,7.89\n01/02/90,7.83\n"), 0o644))
	require.NoError(t, a.Sort(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Less(t, strings.Index(string(data), "01/02/90"), strings.Index(string(data), "01/03/90"))
	require.Equal(t, 1, strings.Count(logs.String(), "file sorted"))
}

func TestBackfillNeedsStorage(t *testing.T) {
	a, _ := newTestApp(t)
	err := a.Backfill(context.Background(), BackfillOptions{FromYear: 1990, ToYear: 1991})
	require.ErrorIs(t, err, errStorageRequired)

	err = a.Backfill(context.Background(), BackfillOptions{FromYear: 1992, ToYear: 1991})
	require.Error(t, err)
}

func TestSimulatedNotification(t *testing.T) {
	rule := alerting.Rule{ShortMonths: 24, LongMonths: 120, ThresholdBps: decimal.Zero}
	now := time.Date(2023, 3, 8, 15, 4, 0, 0, time.UTC)

	note, fire, err := simulatedNotification(rule, curve.DefaultSchedule(), decimal.RequireFromString("5.01"), decimal.RequireFromString("3.98"), now)
	require.NoError(t, err)
	require.True(t, fire)
	require.True(t, note.SpreadBps.Equal(decimal.NewFromInt(-103)))
	require.Equal(t, time.Date(2023, 3, 8, 0, 0, 0, 0, time.UTC), note.Date)

	_, fire, err = simulatedNotification(rule, curve.DefaultSchedule(), decimal.RequireFromString("3.00"), decimal.RequireFromString("4.00"), now)
	require.NoError(t, err)
	require.False(t, fire)
}

func TestSimulateAlertRequiresAlerting(t *testing.T) {
	a, _ := newTestApp(t)
	a.Config.Alerting.Enabled = false
	require.Error(t, a.SimulateAlert(context.Background(), decimal.NewFromInt(5), decimal.NewFromInt(4)))
}
