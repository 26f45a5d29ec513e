package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"yieldscraper/internal/config"
	"yieldscraper/internal/curve"
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// DatasetSource loads the whole stored history as a dataset.
type DatasetSource struct {
	Store    CurveStore
	Schedule curve.Schedule
}

// Load reads every stored curve.
func (s DatasetSource) Load(ctx context.Context) (*curve.Dataset, error) {
	curves, err := s.Store.ListCurvesBetween(ctx, s.Schedule, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	ds := curve.NewDataset(s.Schedule)
	for _, c := range curves {
		ds.Set(c.Date, c.Values)
	}
	return ds, nil
}
