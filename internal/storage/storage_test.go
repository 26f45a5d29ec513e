package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"yieldscraper/internal/curve"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPointsFromCurves(t *testing.T) {
	schedule := curve.Schedule{1, 24, 360}
	curves := []curve.Curve{
		{Date: "01/02/90", Time: day(1990, 1, 2), Values: curve.Record{curve.NaN, "7.87", ""}},
	}

	points := PointsFromCurves(schedule, curves)
	if len(points) != 2 {
		t.Fatalf("unset slots must be skipped, got %d points", len(points))
	}
	if points[0].Maturity != 1 || points[0].Rate.Valid || points[0].Raw != curve.NaN {
		t.Fatalf("NaN slot should be stored raw with a null rate: %+v", points[0])
	}
	if points[1].Maturity != 24 || !points[1].Rate.Valid || points[1].Rate.Decimal.String() != "7.87" {
		t.Fatalf("unexpected rate point %+v", points[1])
	}
	if got := rateParam(points[0].Rate); got != nil {
		t.Fatalf("null rate must bind as NULL, got %v", got)
	}
	if got := rateParam(points[1].Rate); got != "7.87" {
		t.Fatalf("rate must bind as decimal text, got %v", got)
	}
}

func TestCurvesFromPointsRoundTrip(t *testing.T) {
	schedule := curve.Schedule{1, 24, 360}
	want := []curve.Curve{
		{Date: "01/02/90", Time: day(1990, 1, 2), Values: curve.Record{curve.NaN, "7.87", "8.00"}},
		{Date: "01/03/90", Time: day(1990, 1, 3), Values: curve.Record{"", "7.94", "8.04"}},
	}

	points := PointsFromCurves(schedule, want)
	// the database returns rows in any order when grouped by hand
	points[0], points[len(points)-1] = points[len(points)-1], points[0]
	points = append(points, CurvePoint{Date: day(1990, 1, 3), Maturity: 7, Raw: "9.99"})

	got := CurvesFromPoints(schedule, points)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRate(t *testing.T) {
	rate, err := parseRate(nil)
	if err != nil || rate.Valid {
		t.Fatalf("nil text should be an invalid rate: %+v %v", rate, err)
	}
	text := "4.2500"
	rate, err = parseRate(&text)
	if err != nil || !rate.Valid || rate.Decimal.String() != "4.25" {
		t.Fatalf("unexpected rate %+v %v", rate, err)
	}
	bad := "n/a"
	if _, err := parseRate(&bad); err == nil {
		t.Fatal("expected parse error")
	}
}

type fakeCurveStore struct {
	curves []curve.Curve
	err    error
}

func (f *fakeCurveStore) UpsertCurves(ctx context.Context, schedule curve.Schedule, curves []curve.Curve) (int, error) {
	f.curves = append(f.curves, curves...)
	return len(curves), nil
}

func (f *fakeCurveStore) ListCurvesBetween(ctx context.Context, schedule curve.Schedule, from, to time.Time) ([]curve.Curve, error) {
	return f.curves, f.err
}

func (f *fakeCurveStore) ListRecentCurves(ctx context.Context, schedule curve.Schedule, limit int) ([]curve.Curve, error) {
	return f.curves, f.err
}

func (f *fakeCurveStore) CountCurves(ctx context.Context) (int64, error) {
	return int64(len(f.curves)), f.err
}

func TestDatasetSourceLoad(t *testing.T) {
	schedule := curve.Schedule{1, 24}
	store := &fakeCurveStore{curves: []curve.Curve{
		{Date: "01/02/90", Time: day(1990, 1, 2), Values: curve.Record{curve.NaN, "7.87"}},
	}}

	ds, err := DatasetSource{Store: store, Schedule: schedule}.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rec, ok := ds.Get("01/02/90")
	if !ok || rec[1] != "7.87" {
		t.Fatalf("unexpected dataset record %v %v", rec, ok)
	}

	store.err = errors.New("db down")
	if _, err := (DatasetSource{Store: store, Schedule: schedule}).Load(context.Background()); err == nil {
		t.Fatal("expected store error")
	}
}

func TestNilStoreNotConfigured(t *testing.T) {
	var s *Store
	if _, err := s.CountCurves(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
