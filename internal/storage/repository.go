package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"yieldscraper/internal/curve"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	schemaSQL = `CREATE TABLE IF NOT EXISTS yield_curves (
        curve_date      DATE        NOT NULL,
        maturity_months INTEGER     NOT NULL,
        rate            NUMERIC(8,4),
        raw             TEXT        NOT NULL,
        updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (curve_date, maturity_months)
    );
    CREATE TABLE IF NOT EXISTS scrape_runs (
        id           UUID PRIMARY KEY,
        kind         TEXT        NOT NULL,
        started_at   TIMESTAMPTZ NOT NULL,
        finished_at  TIMESTAMPTZ NOT NULL,
        years_ok     INTEGER     NOT NULL,
        years_failed INTEGER     NOT NULL,
        dates        INTEGER     NOT NULL,
        status       TEXT        NOT NULL,
        error        TEXT
    );
    CREATE TABLE IF NOT EXISTS inversion_alerts (
        id            BIGSERIAL PRIMARY KEY,
        curve_date    DATE        NOT NULL,
        short_months  INTEGER     NOT NULL,
        long_months   INTEGER     NOT NULL,
        spread_bps    NUMERIC     NOT NULL,
        threshold_bps NUMERIC     NOT NULL,
        created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
        UNIQUE (curve_date, short_months, long_months)
    );`

	upsertPointSQL = `INSERT INTO yield_curves (
        curve_date,
        maturity_months,
        rate,
        raw
    ) VALUES (
        $1,$2,$3,$4
    )
    ON CONFLICT (curve_date, maturity_months) DO UPDATE
    SET
        rate       = EXCLUDED.rate,
        raw        = EXCLUDED.raw,
        updated_at = now()
    WHERE yield_curves.raw IS DISTINCT FROM EXCLUDED.raw;`

	listPointsBetweenSQL = `SELECT
        curve_date,
        maturity_months,
        rate::text,
        raw
    FROM yield_curves
    WHERE ($1::date IS NULL OR curve_date >= $1::date)
      AND ($2::date IS NULL OR curve_date <= $2::date)
    ORDER BY curve_date, maturity_months;`

	listRecentPointsSQL = `SELECT
        curve_date,
        maturity_months,
        rate::text,
        raw
    FROM yield_curves
    WHERE curve_date IN (
        SELECT DISTINCT curve_date FROM yield_curves ORDER BY curve_date DESC LIMIT $1
    )
    ORDER BY curve_date, maturity_months;`

	countDatesSQL = `SELECT COUNT(DISTINCT curve_date) FROM yield_curves;`

	insertRunSQL = `INSERT INTO scrape_runs (
        id,
        kind,
        started_at,
        finished_at,
        years_ok,
        years_failed,
        dates,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    );`

	insertAlertSQL = `INSERT INTO inversion_alerts (
        curve_date,
        short_months,
        long_months,
        spread_bps,
        threshold_bps
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (curve_date, short_months, long_months) DO NOTHING
    RETURNING id, created_at;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// CurveStore defines yield-curve persistence.
type CurveStore interface {
	UpsertCurves(ctx context.Context, schedule curve.Schedule, curves []curve.Curve) (int, error)
	ListCurvesBetween(ctx context.Context, schedule curve.Schedule, from, to time.Time) ([]curve.Curve, error)
	ListRecentCurves(ctx context.Context, schedule curve.Schedule, limit int) ([]curve.Curve, error)
	CountCurves(ctx context.Context) (int64, error)
}

// RunStore records scrape audits.
type RunStore interface {
	InsertRun(ctx context.Context, run ScrapeRun) error
}

// AlertStore de-duplicates inversion alerts.
type AlertStore interface {
	// InsertAlert stores the alert and reports false when one already exists for the date.
	InsertAlert(ctx context.Context, alert AlertRecord) (bool, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to curves, runs and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// a failed unlock is released with the session when the connection is recycled
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertCurves writes every filled slot of curves in one transaction and returns the
// number of points sent.
func (s *Store) UpsertCurves(ctx context.Context, schedule curve.Schedule, curves []curve.Curve) (int, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	points := PointsFromCurves(schedule, curves)
	if len(points) == 0 {
		return 0, nil
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range points {
			batch.Queue(upsertPointSQL, p.Date, p.Maturity, rateParam(p.Rate), p.Raw)
		}

		results := tx.SendBatch(ctx, batch)
		for i := range points {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("upsert point %d: %w", i, err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("upsert curves: %w", err)
	}
	return len(points), nil
}

// ListCurvesBetween lists curves with from <= date <= to. Zero bounds are open.
func (s *Store) ListCurvesBetween(ctx context.Context, schedule curve.Schedule, from, to time.Time) ([]curve.Curve, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listPointsBetweenSQL, dateParam(from), dateParam(to))
	if err != nil {
		return nil, fmt.Errorf("list curves between: %w", err)
	}
	points, err := collectPoints(rows)
	if err != nil {
		return nil, fmt.Errorf("list curves between: %w", err)
	}
	return CurvesFromPoints(schedule, points), nil
}

// ListRecentCurves lists the most recent limit curves in chronological order.
func (s *Store) ListRecentCurves(ctx context.Context, schedule curve.Schedule, limit int) ([]curve.Curve, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listRecentPointsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent curves: %w", err)
	}
	points, err := collectPoints(rows)
	if err != nil {
		return nil, fmt.Errorf("list recent curves: %w", err)
	}
	return CurvesFromPoints(schedule, points), nil
}

// CountCurves counts stored dates.
func (s *Store) CountCurves(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countDatesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count curves: %w", scanErr)
	}
	return count, nil
}

// InsertRun persists a scrape audit row.
func (s *Store) InsertRun(ctx context.Context, run ScrapeRun) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if run.Error != nil {
		errMsg = *run.Error
	}

	_, execErr := pool.Exec(ctx, insertRunSQL,
		run.ID,
		run.Kind,
		run.StartedAt,
		run.FinishedAt,
		run.YearsOK,
		run.YearsFailed,
		run.Dates,
		run.Status,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("insert scrape run: %w", execErr)
	}
	return nil
}

// InsertAlert persists an alert emission unless one exists for the same date and pair.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	var id int64
	var createdAt time.Time
	scanErr := pool.QueryRow(ctx, insertAlertSQL,
		alert.CurveDate,
		alert.ShortMonths,
		alert.LongMonths,
		alert.SpreadBps.String(),
		alert.ThresholdBps.String(),
	).Scan(&id, &createdAt)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return false, nil
	}
	if scanErr != nil {
		return false, fmt.Errorf("insert alert: %w", scanErr)
	}
	return true, nil
}

func collectPoints(rows pgx.Rows) ([]CurvePoint, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (CurvePoint, error) {
		var (
			p       CurvePoint
			rateStr *string
		)
		if err := row.Scan(&p.Date, &p.Maturity, &rateStr, &p.Raw); err != nil {
			return CurvePoint{}, err
		}
		rate, err := parseRate(rateStr)
		if err != nil {
			return CurvePoint{}, err
		}
		p.Rate = rate
		return p, nil
	})
}

func dateParam(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(curve.ISODateLayout)
}

var (
	_ CurveStore     = (*Store)(nil)
	_ RunStore       = (*Store)(nil)
	_ AlertStore     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
