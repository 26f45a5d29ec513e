package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yieldscraper/internal/alerting"
	"yieldscraper/internal/csvsort"
	"yieldscraper/internal/curve"
	"yieldscraper/internal/dataset"
	"yieldscraper/internal/metrics"
	"yieldscraper/internal/output"
	"yieldscraper/internal/scheduler"
	"yieldscraper/internal/storage"
)

// Options configure a Service.
type Options struct {
	OutputPath  string
	StartYear   int
	EndYear     int
	LockKey     int64
	MetricsPath string
}

// Deps are the collaborators of a Service. Everything except Builder and Sorter is optional.
type Deps struct {
	Builder   *dataset.Builder
	Sorter    *csvsort.Sorter
	Scheduler *scheduler.Scheduler
	Curves    storage.CurveStore
	Runs      storage.RunStore
	Alerts    storage.AlertStore
	Notifier  alerting.Notifier
	Rule      *alerting.Rule
	Metrics   *metrics.Recorder
}

// Summary reports what a run did.
type Summary struct {
	RunID    uuid.UUID
	Kind     string
	Build    dataset.BuildReport
	Sort     csvsort.Report
	Dates    int
	Stored   int
	Alerted  bool
	Skipped  bool
	Duration time.Duration
}

// Service orchestrates scraping, persistence, and alerting.
type Service struct {
	opts      Options
	builder   *dataset.Builder
	sorter    *csvsort.Sorter
	scheduler *scheduler.Scheduler
	curves    storage.CurveStore
	runs      storage.RunStore
	alerts    storage.AlertStore
	notifier  alerting.Notifier
	rule      *alerting.Rule
	metrics   *metrics.Recorder
	locker    storage.AdvisoryLocker
	logger    zerolog.Logger

	lastAlert string
	now       func() time.Time
}

// New constructs the scrape service.
func New(opts Options, deps Deps, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := deps.Curves.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		opts:      opts,
		builder:   deps.Builder,
		sorter:    deps.Sorter,
		scheduler: deps.Scheduler,
		curves:    deps.Curves,
		runs:      deps.Runs,
		alerts:    deps.Alerts,
		notifier:  deps.Notifier,
		rule:      deps.Rule,
		metrics:   deps.Metrics,
		locker:    locker,
		logger:    logger.With().Str("component", "service").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run begins the aligned refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, func(ctx context.Context, at time.Time) error {
		_, err := s.Refresh(ctx, at)
		return err
	})
}

// ScrapeAll builds the full year range, replaces the output file, sorts it, then persists
// and evaluates the alert. Only build, write and sort failures fail the run.
func (s *Service) ScrapeAll(ctx context.Context) (Summary, error) {
	return s.withRun(ctx, storage.RunKindFull, func(ctx context.Context, sum *Summary, logger zerolog.Logger) error {
		ds, report, err := s.builder.BuildAll(ctx, s.opts.StartYear, s.opts.EndYear)
		sum.Build = report
		if err != nil {
			return err
		}

		if err := s.writeAndSort(ds, sum); err != nil {
			return err
		}
		sum.Dates = ds.Len()

		sum.Stored = s.persist(ctx, ds.Schedule(), ds.Curves(), logger)
		sum.Alerted = s.checkAlert(ctx, ds, logger)
		return nil
	})
}

// Refresh re-fetches the year of at (and the previous year during the first week of
// January), merges it into the existing output file and re-sorts. A missing output file
// triggers a full scrape instead.
func (s *Service) Refresh(ctx context.Context, at time.Time) (Summary, error) {
	if _, err := os.Stat(s.opts.OutputPath); errors.Is(err, os.ErrNotExist) {
		s.logger.Info().Str("path", s.opts.OutputPath).Msg("output file missing, running full scrape")
		return s.ScrapeAll(ctx)
	}

	return s.withRun(ctx, storage.RunKindRefresh, func(ctx context.Context, sum *Summary, logger zerolog.Logger) error {
		source := dataset.FileSource{Path: s.opts.OutputPath, Schedule: s.builder.Schedule()}
		ds, err := source.Load(ctx)
		if err != nil {
			return fmt.Errorf("load existing dataset: %w", err)
		}

		years := []int{at.Year()}
		if at.YearDay() <= 7 {
			years = append(years, at.Year()-1)
		}

		fresh := curve.NewDataset(ds.Schedule())
		for _, year := range years {
			started := time.Now()
			records, faults, err := s.builder.FetchYear(ctx, year)
			result := dataset.YearResult{Year: year, Dates: len(records), Faults: faults, Duration: time.Since(started), Err: err}
			sum.Build.Years = append(sum.Build.Years, result)
			sum.Build.Faults += faults
			if err != nil {
				sum.Build.Failed++
				logger.Error().Err(err).Int("year", year).Msg("refresh year failed")
				continue
			}
			sum.Build.Succeeded++
			fresh.Merge(records)
		}
		if sum.Build.Succeeded == 0 {
			return fmt.Errorf("refresh: %w", sum.Build.Err())
		}

		fresh.Range(func(date string, rec curve.Record) bool {
			if _, exists := ds.Get(date); exists {
				sum.Build.Overwritten++
			}
			ds.Set(date, rec)
			return true
		})
		sum.Build.Dates = fresh.Len()

		if err := s.writeAndSort(ds, sum); err != nil {
			return err
		}
		sum.Dates = ds.Len()

		sum.Stored = s.persist(ctx, ds.Schedule(), fresh.Curves(), logger)
		sum.Alerted = s.checkAlert(ctx, ds, logger)
		return nil
	})
}

// Backfill builds a year range and upserts it into storage without touching the output file.
func (s *Service) Backfill(ctx context.Context, fromYear, toYear int, dryRun bool) (Summary, error) {
	if s.curves == nil && !dryRun {
		return Summary{}, errors.New("database.dsn not configured; cannot backfill")
	}

	return s.withRun(ctx, storage.RunKindBackfill, func(ctx context.Context, sum *Summary, logger zerolog.Logger) error {
		ds, report, err := s.builder.BuildAll(ctx, toYear, fromYear)
		sum.Build = report
		if err != nil {
			return err
		}
		sum.Dates = ds.Len()

		if dryRun {
			logger.Warn().Int("dates", ds.Len()).Msg("backfill dry-run: nothing written to storage")
			return nil
		}

		stored, err := s.curves.UpsertCurves(ctx, ds.Schedule(), ds.Curves())
		if err != nil {
			return fmt.Errorf("backfill storage: %w", err)
		}
		sum.Stored = stored
		return nil
	})
}

type runFunc func(ctx context.Context, sum *Summary, logger zerolog.Logger) error

func (s *Service) withRun(ctx context.Context, kind string, fn runFunc) (Summary, error) {
	sum := Summary{RunID: uuid.New(), Kind: kind}
	logger := s.logger.With().Str("run_id", sum.RunID.String()).Str("kind", kind).Logger()

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return sum, err
	}
	if !proceed {
		logger.Info().Msg("skip run because advisory lock is held elsewhere")
		sum.Skipped = true
		return sum, nil
	}
	if unlock != nil {
		defer unlock()
	}

	started := s.now()
	logger.Info().Msg("run started")
	runErr := fn(ctx, &sum, logger)
	finished := s.now()
	sum.Duration = finished.Sub(started)

	s.record(ctx, kind, sum, started, finished, runErr, logger)

	if runErr != nil {
		logger.Error().Err(runErr).Dur("duration", sum.Duration).Msg("run failed")
		return sum, runErr
	}
	logger.Info().
		Int("dates", sum.Dates).
		Int("years_ok", sum.Build.Succeeded).
		Int("years_failed", sum.Build.Failed).
		Int("stored_points", sum.Stored).
		Bool("alerted", sum.Alerted).
		Dur("duration", sum.Duration).
		Msg("run finished")
	return sum, nil
}

func (s *Service) writeAndSort(ds *curve.Dataset, sum *Summary) error {
	err := output.WriteAtomic(s.opts.OutputPath, func(w io.Writer) error {
		return dataset.Render(ds, w)
	})
	if err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}

	report, err := s.sorter.SortFile(s.opts.OutputPath, true)
	sum.Sort = report
	if err != nil {
		return fmt.Errorf("sort dataset: %w", err)
	}
	return nil
}

func (s *Service) persist(ctx context.Context, schedule curve.Schedule, curves []curve.Curve, logger zerolog.Logger) int {
	if s.curves == nil || len(curves) == 0 {
		return 0
	}
	stored, err := s.curves.UpsertCurves(ctx, schedule, curves)
	if err != nil {
		logger.Error().Err(err).Int("curves", len(curves)).Msg("failed to persist curves")
		return 0
	}
	return stored
}

func (s *Service) record(ctx context.Context, kind string, sum Summary, started, finished time.Time, runErr error, logger zerolog.Logger) {
	status := "ok"
	var errMsg *string
	if runErr != nil {
		status = "failed"
		msg := runErr.Error()
		errMsg = &msg
	}

	if s.runs != nil {
		run := storage.ScrapeRun{
			ID:          sum.RunID,
			Kind:        kind,
			StartedAt:   started,
			FinishedAt:  finished,
			YearsOK:     sum.Build.Succeeded,
			YearsFailed: sum.Build.Failed,
			Dates:       sum.Dates,
			Status:      status,
			Error:       errMsg,
		}
		if err := s.runs.InsertRun(ctx, run); err != nil {
			logger.Error().Err(err).Msg("failed to record scrape run")
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveRun(status, finished, finished.Sub(started))
		s.metrics.ObserveYears(sum.Build.Succeeded, sum.Build.Failed)
		s.metrics.AddFaults(sum.Build.Faults)
		s.metrics.AddUnparsable(sum.Sort.Unparsable)
		if runErr == nil {
			s.metrics.SetDates(sum.Dates)
		}
		if err := s.metrics.WriteTextfile(s.opts.MetricsPath); err != nil {
			logger.Error().Err(err).Msg("failed to write metrics")
		}
	}
}

func (s *Service) checkAlert(ctx context.Context, ds *curve.Dataset, logger zerolog.Logger) bool {
	if s.rule == nil || s.notifier == nil {
		return false
	}
	latest, ok := ds.Latest()
	if !ok || latest.Date == s.lastAlert {
		return false
	}

	note, fire, err := s.rule.Evaluate(ds.Schedule(), latest)
	if err != nil {
		logger.Error().Err(err).Msg("alert rule invalid")
		return false
	}
	if !fire {
		return false
	}

	if s.alerts != nil {
		inserted, err := s.alerts.InsertAlert(ctx, storage.AlertRecord{
			CurveDate:    latest.Time,
			ShortMonths:  s.rule.ShortMonths,
			LongMonths:   s.rule.LongMonths,
			SpreadBps:    note.SpreadBps,
			ThresholdBps: note.ThresholdBps,
		})
		if err != nil {
			logger.Error().Err(err).Str("date", latest.Date).Msg("failed to persist alert record")
		} else if !inserted {
			s.lastAlert = latest.Date
			logger.Debug().Str("date", latest.Date).Msg("alert already sent for date")
			return false
		}
	}

	if err := s.notifier.Notify(ctx, note); err != nil {
		logger.Error().Err(err).Str("date", latest.Date).Msg("failed to dispatch alert")
		return false
	}
	s.lastAlert = latest.Date
	return true
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
