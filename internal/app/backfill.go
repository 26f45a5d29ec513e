package app

import (
	"context"
	"fmt"

	"yieldscraper/internal/service"
	"yieldscraper/internal/storage"
)

// Backfill upserts a year range into storage without touching the output file.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	if opts.FromYear > opts.ToYear {
		return fmt.Errorf("--from-year %d is after --to-year %d", opts.FromYear, opts.ToYear)
	}

	run, err := a.withScrapeOverrides(ScrapeOptions{Workers: opts.Workers})
	if err != nil {
		return err
	}

	var (
		svc   *service.Service
		store *storage.Store
	)
	if opts.DryRun {
		svc = run.newService(run.newFetcher(), serviceParts{toYear: opts.ToYear, fromYear: opts.FromYear})
	} else {
		opened, closeStore, err := run.openStore(ctx)
		if err != nil {
			return err
		}
		store = opened
		if store == nil {
			return fmt.Errorf("backfill: %w", errStorageRequired)
		}
		defer closeStore()
		svc = run.newService(run.newFetcher(), serviceParts{store: store, toYear: opts.ToYear, fromYear: opts.FromYear})
	}

	sum, err := svc.Backfill(ctx, opts.FromYear, opts.ToYear, opts.DryRun)
	if err != nil {
		return err
	}
	event := run.Logger.Info().
		Int("dates", sum.Dates).
		Int("stored", sum.Stored).
		Int("years_failed", sum.Build.Failed).
		Bool("dry_run", opts.DryRun)
	if store != nil {
		if total, err := store.CountCurves(ctx); err == nil {
			event = event.Int64("total_points", total)
		}
	}
	event.Msg("backfill finished")
	return nil
}
