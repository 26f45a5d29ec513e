package app

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"yieldscraper/internal/alerting"
	"yieldscraper/internal/config"
	"yieldscraper/internal/csvsort"
	"yieldscraper/internal/dataset"
	"yieldscraper/internal/fetcher"
	"yieldscraper/internal/metrics"
	"yieldscraper/internal/scheduler"
	"yieldscraper/internal/service"
	"yieldscraper/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives tables and other command output.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newFetcher() fetcher.PageFetcher {
	src := a.Config.Source
	return fetcher.NewTreasury(fetcher.TreasuryOptions{
		URLTemplate:       src.URLTemplate,
		Timeout:           src.Timeout,
		UserAgent:         src.UserAgent,
		RetryCount:        src.RetryCount,
		RetryWait:         src.RetryWait,
		RequestsPerSecond: src.RequestsPerSecond,
		Burst:             src.Burst,
	}, a.Logger)
}

func (a *App) newBuilder(f fetcher.PageFetcher) *dataset.Builder {
	return dataset.NewBuilder(f, dataset.Options{
		Schedule:      a.Config.Schedule(),
		StartMarker:   a.Config.Source.StartMarker,
		EndMarker:     a.Config.Source.EndMarker,
		Workers:       a.Config.Scrape.Workers,
		FailurePolicy: dataset.FailurePolicy(a.Config.Scrape.FailurePolicy),
		StrictShape:   a.Config.Scrape.StrictShape,
		EarliestYear:  a.Config.Source.EarliestYear,
	}, a.Logger)
}

func (a *App) newSorter() *csvsort.Sorter {
	return csvsort.New(csvsort.Options{
		Schedule:    a.Config.Schedule(),
		StrictDates: a.Config.Scrape.StrictDates,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

func (a *App) newRule() *alerting.Rule {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	return &alerting.Rule{
		ShortMonths:  a.Config.Alerting.ShortMaturity,
		LongMonths:   a.Config.Alerting.LongMaturity,
		ThresholdBps: decimal.NewFromFloat(a.Config.Alerting.ThresholdBps),
	}
}

// openStore connects and migrates the database. It returns a nil store when no DSN is set.
func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}

// optionalStore opens storage for commands where persistence is best effort.
func (a *App) optionalStore(ctx context.Context) (*storage.Store, func()) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("storage unavailable; persistence disabled")
		return nil, func() {}
	}
	if store == nil {
		a.Logger.Debug().Msg("database.dsn not configured; persistence disabled")
		return nil, func() {}
	}
	return store, closeStore
}

// source returns storage when configured and reachable, otherwise the output file.
func (a *App) source(ctx context.Context) (dataset.Source, func()) {
	store, closeStore := a.optionalStore(ctx)
	if store != nil {
		return storage.DatasetSource{Store: store, Schedule: a.Config.Schedule()}, closeStore
	}
	return dataset.FileSource{Path: a.Config.Output.Path, Schedule: a.Config.Schedule()}, closeStore
}

// serviceParts are the optional collaborators of a pipeline.
type serviceParts struct {
	store     *storage.Store
	scheduler *scheduler.Scheduler
	notifier  alerting.Notifier
	metrics   *metrics.Recorder
	// toYear and fromYear bound the full scrape; zero falls back to the current and
	// earliest years.
	toYear   int
	fromYear int
}

func (a *App) newService(f fetcher.PageFetcher, parts serviceParts) *service.Service {
	if parts.metrics == nil {
		parts.metrics = metrics.NewRecorder()
	}
	deps := service.Deps{
		Builder:   a.newBuilder(f),
		Sorter:    a.newSorter(),
		Scheduler: parts.scheduler,
		Notifier:  parts.notifier,
		Rule:      a.newRule(),
		Metrics:   parts.metrics,
	}
	// A nil *storage.Store must not reach the interface fields.
	if parts.store != nil {
		deps.Curves = parts.store
		deps.Runs = parts.store
		deps.Alerts = parts.store
	}

	return service.New(service.Options{
		OutputPath:  a.Config.Output.Path,
		StartYear:   parts.toYear,
		EndYear:     parts.fromYear,
		LockKey:     a.Config.Database.AdvisoryLockKey,
		MetricsPath: a.Config.Metrics.TextfilePath,
	}, deps, a.Logger)
}

var errStorageRequired = errors.New("database.dsn not configured")

// ScrapeOptions override configuration for a single scrape.
type ScrapeOptions struct {
	FromYear   int
	ToYear     int
	Workers    int
	OutputPath string
	Policy     string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting the dataset.
type ExportOptions struct {
	From       string
	To         string
	CSVPath    string
	XLSXPath   string
	PNGPath    string
	Maturities []int
	MaxPoints  int
}

// ServeOptions configure the API server.
type ServeOptions struct {
	ListenAddr string
	// Watch runs the refresh loop alongside the server.
	Watch bool
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	FromYear int
	ToYear   int
	DryRun   bool
	Workers  int
}
