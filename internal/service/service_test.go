package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"yieldscraper/internal/alerting"
	"yieldscraper/internal/csvsort"
	"yieldscraper/internal/curve"
	"yieldscraper/internal/dataset"
	"yieldscraper/internal/metrics"
	"yieldscraper/internal/storage"
)

type pageFetcher struct {
	mu    sync.Mutex
	pages map[int]string
	calls []int
}

func (f *pageFetcher) FetchYear(ctx context.Context, year int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, year)
	page, ok := f.pages[year]
	if !ok {
		return "", errors.New("no page")
	}
	return page, nil
}

func page(rows ...string) string {
	var b strings.Builder
	b.WriteString(`<table class="t-chart"><tr><th>Date</th>`)
	for _, l := range []string{"1 Mo", "2 Mo", "3 Mo", "6 Mo", "1 Yr", "2 Yr", "3 Yr", "5 Yr", "7 Yr", "10 Yr", "20 Yr", "30 Yr"} {
		b.WriteString("<th>" + l + "</th>")
	}
	b.WriteString("</tr>")
	b.WriteString(strings.Join(rows, ""))
	b.WriteString("</table>End Main Content Area")
	return b.String()
}

// row renders a 12-maturity row with the given 2Y and 10Y rates.
func row(date, twoYear, tenYear string) string {
	cells := []string{"N/A", "N/A", "7.50", "7.50", "7.50", twoYear, "7.50", "7.50", "7.50", tenYear, "N/A", "7.90"}
	var b strings.Builder
	b.WriteString("<tr><td>" + date + "</td>")
	for _, c := range cells {
		b.WriteString("<td>" + c + "</td>")
	}
	b.WriteString("</tr>")
	return b.String()
}

type fakeStore struct {
	mu        sync.Mutex
	curves    []curve.Curve
	runs      []storage.ScrapeRun
	alerts    map[string]bool
	lockHeld  bool
	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{alerts: make(map[string]bool)}
}

func (f *fakeStore) UpsertCurves(ctx context.Context, schedule curve.Schedule, curves []curve.Curve) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.curves = append(f.curves, curves...)
	return len(storage.PointsFromCurves(schedule, curves)), nil
}

func (f *fakeStore) ListCurvesBetween(ctx context.Context, schedule curve.Schedule, from, to time.Time) ([]curve.Curve, error) {
	return f.curves, nil
}

func (f *fakeStore) ListRecentCurves(ctx context.Context, schedule curve.Schedule, limit int) ([]curve.Curve, error) {
	return f.curves, nil
}

func (f *fakeStore) CountCurves(ctx context.Context) (int64, error) {
	return int64(len(f.curves)), nil
}

func (f *fakeStore) InsertRun(ctx context.Context, run storage.ScrapeRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeStore) InsertAlert(ctx context.Context, alert storage.AlertRecord) (bool, error) {
	key := alert.CurveDate.Format(curve.ISODateLayout)
	if f.alerts[key] {
		return false, nil
	}
	f.alerts[key] = true
	return true, nil
}

func (f *fakeStore) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	if f.lockHeld {
		return nil, false, nil
	}
	return func() {}, true, nil
}

type recordingNotifier struct {
	notes []alerting.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	n.notes = append(n.notes, note)
	return nil
}

type fixture struct {
	svc      *Service
	fetcher  *pageFetcher
	store    *fakeStore
	notifier *recordingNotifier
	path     string
}

func newFixture(t *testing.T, pages map[int]string, withStore bool) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	fx := &fixture{
		fetcher:  &pageFetcher{pages: pages},
		notifier: &recordingNotifier{},
		path:     filepath.Join(t.TempDir(), "all_yield_data.csv"),
	}

	builder := dataset.NewBuilder(fx.fetcher, dataset.Options{
		Now: func() time.Time { return time.Date(1991, 6, 1, 0, 0, 0, 0, time.UTC) },
	}, logger)
	rule := &alerting.Rule{ShortMonths: 24, LongMonths: 120, ThresholdBps: decimal.Zero}

	deps := Deps{
		Builder:  builder,
		Sorter:   csvsort.New(csvsort.Options{}, logger),
		Notifier: fx.notifier,
		Rule:     rule,
		Metrics:  metrics.NewRecorder(),
	}
	if withStore {
		fx.store = newFakeStore()
		deps.Curves = fx.store
		deps.Runs = fx.store
		deps.Alerts = fx.store
	}

	fx.svc = New(Options{
		OutputPath:  fx.path,
		StartYear:   1991,
		EndYear:     1990,
		LockKey:     42,
		MetricsPath: filepath.Join(t.TempDir(), "yieldscraper.prom"),
	}, deps, logger)
	return fx
}

func defaultPages() map[int]string {
	return map[int]string{
		1991: page(row("01/03/91", "8.10", "8.00"), row("01/02/91", "7.90", "8.05")),
		1990: page(row("12/31/90", "7.70", "8.00"), row("01/02/90", "7.87", "7.94")),
	}
}

func TestScrapeAllWritesSortedFileAndAlerts(t *testing.T) {
	fx := newFixture(t, defaultPages(), true)

	sum, err := fx.svc.ScrapeAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, storage.RunKindFull, sum.Kind)
	require.Equal(t, 4, sum.Dates)
	require.Equal(t, 2, sum.Build.Succeeded)
	require.True(t, sum.Alerted)

	data, err := os.ReadFile(fx.path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "Date,1,2,3,6,12,24,36,60,84,120,240,360", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "01/02/90,NaN,NaN,7.50"))
	require.True(t, strings.HasPrefix(lines[4], "01/03/91,"))

	require.Len(t, fx.store.curves, 4)
	require.Len(t, fx.store.runs, 1)
	require.Equal(t, "ok", fx.store.runs[0].Status)
	require.Equal(t, sum.RunID, fx.store.runs[0].ID)

	require.Len(t, fx.notifier.notes, 1)
	require.True(t, fx.notifier.notes[0].SpreadBps.Equal(decimal.NewFromInt(-10)))

	_, err = fx.svc.ScrapeAll(context.Background())
	require.NoError(t, err)
	require.Len(t, fx.notifier.notes, 1, "an alert is sent once per date")
}

func TestScrapeAllFailureRecordsRun(t *testing.T) {
	fx := newFixture(t, map[int]string{}, true)

	_, err := fx.svc.ScrapeAll(context.Background())
	require.Error(t, err)
	require.Len(t, fx.store.runs, 1)
	require.Equal(t, "failed", fx.store.runs[0].Status)
	require.NotNil(t, fx.store.runs[0].Error)

	_, statErr := os.Stat(fx.path)
	require.True(t, os.IsNotExist(statErr), "no output file on failure")
}

func TestScrapeAllStorageFailureIsNotFatal(t *testing.T) {
	fx := newFixture(t, defaultPages(), true)
	fx.store.upsertErr = errors.New("db down")

	sum, err := fx.svc.ScrapeAll(context.Background())
	require.NoError(t, err)
	require.Zero(t, sum.Stored)
}

func TestScrapeAllSkipsWhenLocked(t *testing.T) {
	fx := newFixture(t, defaultPages(), true)
	fx.store.lockHeld = true

	sum, err := fx.svc.ScrapeAll(context.Background())
	require.NoError(t, err)
	require.True(t, sum.Skipped)
	require.Empty(t, fx.fetcher.calls)
}

func TestRefreshWithoutFileRunsFullScrape(t *testing.T) {
	fx := newFixture(t, defaultPages(), false)

	sum, err := fx.svc.Refresh(context.Background(), time.Date(1991, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, storage.RunKindFull, sum.Kind)
	require.FileExists(t, fx.path)
}

func TestRefreshMergesCurrentYear(t *testing.T) {
	pages := defaultPages()
	fx := newFixture(t, pages, false)

	_, err := fx.svc.ScrapeAll(context.Background())
	require.NoError(t, err)

	pages[1991] = page(row("01/03/91", "8.10", "8.00"), row("01/02/91", "7.90", "8.05"), row("01/04/91", "7.95", "8.10"))
	fx.fetcher.calls = nil

	sum, err := fx.svc.Refresh(context.Background(), time.Date(1991, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, storage.RunKindRefresh, sum.Kind)
	require.Equal(t, []int{1991}, fx.fetcher.calls)
	require.Equal(t, 5, sum.Dates)
	require.Equal(t, 2, sum.Build.Overwritten)

	data, err := os.ReadFile(fx.path)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(data), "01/04/91,NaN,NaN,7.50,7.50,7.50,7.95,7.50,7.50,7.50,8.10,NaN,7.90\n"))
}

func TestRefreshCountsShapeFaults(t *testing.T) {
	pages := defaultPages()
	fx := newFixture(t, pages, false)
	_, err := fx.svc.ScrapeAll(context.Background())
	require.NoError(t, err)

	short := strings.Replace(row("01/04/91", "7.95", "8.10"), "<td>7.90</td>", "", 1)
	pages[1991] = page(row("01/03/91", "8.10", "8.00"), short)

	sum, err := fx.svc.Refresh(context.Background(), time.Date(1991, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, sum.Build.Faults)
	require.Len(t, sum.Build.Years, 1)
	require.Equal(t, 1, sum.Build.Years[0].Faults)
}

func TestRefreshEarlyJanuaryIncludesPreviousYear(t *testing.T) {
	fx := newFixture(t, defaultPages(), false)
	_, err := fx.svc.ScrapeAll(context.Background())
	require.NoError(t, err)
	fx.fetcher.calls = nil

	_, err = fx.svc.Refresh(context.Background(), time.Date(1991, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, []int{1991, 1990}, fx.fetcher.calls)
}

func TestBackfill(t *testing.T) {
	fx := newFixture(t, defaultPages(), false)
	_, err := fx.svc.Backfill(context.Background(), 1990, 1991, false)
	require.Error(t, err, "backfill needs storage unless dry-run")

	sum, err := fx.svc.Backfill(context.Background(), 1990, 1991, true)
	require.NoError(t, err)
	require.Equal(t, 4, sum.Dates)
	require.Zero(t, sum.Stored)

	withStore := newFixture(t, defaultPages(), true)
	sum, err = withStore.svc.Backfill(context.Background(), 1990, 1991, false)
	require.NoError(t, err)
	require.Equal(t, storage.RunKindBackfill, sum.Kind)
	require.Positive(t, sum.Stored)
	require.NoFileExists(t, withStore.path)
	require.Len(t, withStore.store.runs, 1)
}
