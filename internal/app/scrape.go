package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"yieldscraper/internal/metrics"
	"yieldscraper/internal/scheduler"
	"yieldscraper/internal/storage"
)

// Scrape builds the full year range, writes the output file and sorts it.
func (a *App) Scrape(ctx context.Context, opts ScrapeOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	run, err := a.withScrapeOverrides(opts)
	if err != nil {
		return err
	}
	store, closeStore := run.optionalStore(ctx)
	defer closeStore()

	svc := run.newService(run.newFetcher(), serviceParts{
		store:    store,
		notifier: run.newNotifier(),
		toYear:   opts.ToYear,
		fromYear: opts.FromYear,
	})
	sum, err := svc.ScrapeAll(ctx)
	if err != nil {
		return err
	}
	if sum.Skipped {
		return nil
	}

	run.Logger.Info().
		Str("path", run.Config.Output.Path).
		Int("dates", sum.Dates).
		Int("years_failed", sum.Build.Failed).
		Int("unparsable", sum.Sort.Unparsable).
		Dur("duration", sum.Duration).
		Msg("scrape finished")
	return nil
}

// withScrapeOverrides returns an App whose config carries the per-run overrides, validated
// the same way as the loaded config.
func (a *App) withScrapeOverrides(opts ScrapeOptions) (*App, error) {
	cfg := *a.Config
	if opts.Workers > 0 {
		cfg.Scrape.Workers = opts.Workers
	}
	if opts.OutputPath != "" {
		cfg.Output.Path = opts.OutputPath
	}
	if opts.Policy != "" {
		cfg.Scrape.FailurePolicy = opts.Policy
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &App{Config: &cfg, Logger: a.Logger, Out: a.Out}, nil
}

// Sort rewrites path in chronological order.
func (a *App) Sort(path string, hasHeader bool) error {
	_, err := a.newSorter().SortFile(path, hasHeader)
	return err
}

// Watch runs the aligned refresh loop until interrupted.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore := a.optionalStore(ctx)
	defer closeStore()

	return a.watch(ctx, store, metrics.NewRecorder())
}

func (a *App) watch(ctx context.Context, store *storage.Store, rec *metrics.Recorder) error {
	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		Offset:       a.Config.Scheduler.Offset,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
	}, a.Logger)

	svc := a.newService(a.newFetcher(), serviceParts{
		store:     store,
		scheduler: sched,
		notifier:  a.newNotifier(),
		metrics:   rec,
	})

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting watch")
	err := svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch stopped")
	return nil
}
