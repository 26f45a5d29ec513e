// Package dataset assembles the multi-year yield-curve dataset and converts it to and
// from its delimited file form.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"yieldscraper/internal/curve"
	"yieldscraper/internal/extract"
	"yieldscraper/internal/fetcher"
)

// DefaultEarliestYear is the first year the publisher carries.
const DefaultEarliestYear = 1990

// FailurePolicy decides what a failed year does to the run.
type FailurePolicy string

const (
	// PolicySkip logs the failed year and continues with the rest.
	PolicySkip FailurePolicy = "skip"
	// PolicyAbort stops the run at the first failed year.
	PolicyAbort FailurePolicy = "abort"
)

// Options tune dataset construction.
type Options struct {
	Schedule      curve.Schedule
	StartMarker   string
	EndMarker     string
	Workers       int
	FailurePolicy FailurePolicy
	StrictShape   bool
	EarliestYear  int
	Now           func() time.Time
}

// YearResult describes the outcome for one year.
type YearResult struct {
	Year     int
	Dates    int
	Faults   int
	Duration time.Duration
	Err      error
}

// BuildReport summarises a BuildAll call. Years are listed newest first.
type BuildReport struct {
	StartYear   int
	EndYear     int
	Years       []YearResult
	Succeeded   int
	Failed      int
	Faults      int
	Overwritten int
	Dates       int
	Duration    time.Duration
}

// Err joins the errors of every failed year, or returns nil.
func (r BuildReport) Err() error {
	var errs []error
	for _, y := range r.Years {
		if y.Err != nil {
			errs = append(errs, y.Err)
		}
	}
	return errors.Join(errs...)
}

// FailedYears lists the years that did not produce records.
func (r BuildReport) FailedYears() []int {
	years := make([]int, 0, r.Failed)
	for _, y := range r.Years {
		if y.Err != nil {
			years = append(years, y.Year)
		}
	}
	return years
}

// Builder fetches yearly pages and turns them into records.
type Builder struct {
	opts    Options
	fetcher fetcher.PageFetcher
	logger  zerolog.Logger
}

// NewBuilder constructs a Builder backed by the given page fetcher.
func NewBuilder(f fetcher.PageFetcher, opts Options, logger zerolog.Logger) *Builder {
	if len(opts.Schedule) == 0 {
		opts.Schedule = curve.DefaultSchedule()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = PolicySkip
	}
	if opts.EarliestYear <= 0 {
		opts.EarliestYear = DefaultEarliestYear
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Builder{
		opts:    opts,
		fetcher: f,
		logger:  logger.With().Str("component", "dataset_builder").Logger(),
	}
}

// Schedule returns the maturity schedule records are built against.
func (b *Builder) Schedule() curve.Schedule {
	return b.opts.Schedule
}

// CurrentYear is the newest year a default run starts from.
func (b *Builder) CurrentYear() int {
	return b.opts.Now().Year()
}

// FetchYear downloads, tokenizes and assembles the page for one year. It also returns the
// number of shape faults found, which is non-zero even when they were tolerated.
func (b *Builder) FetchYear(ctx context.Context, year int) (curve.Records, int, error) {
	return b.fetchYear(ctx, year)
}

func (b *Builder) fetchYear(ctx context.Context, year int) (curve.Records, int, error) {
	raw, err := b.fetcher.FetchYear(ctx, year)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch year %d: %w", year, err)
	}

	tokens, err := extract.Tokenize(raw, extract.TokenizerOptions{
		StartMarker: b.opts.StartMarker,
		EndMarker:   b.opts.EndMarker,
		Schedule:    b.opts.Schedule,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("tokenize year %d: %w", year, err)
	}

	records, faults := extract.Assemble(tokens, b.opts.Schedule)
	for _, f := range faults {
		b.logger.Warn().
			Int("year", year).
			Str("date", f.Date).
			Int("want", f.Want).
			Int("got", f.Got).
			Msg("record shape mismatch")
	}
	if b.opts.StrictShape && len(faults) > 0 {
		return nil, len(faults), fmt.Errorf("assemble year %d: %w", year, &extract.DataShapeError{Faults: faults})
	}
	return records, len(faults), nil
}

// BuildAll fetches every year from startYear down to endYear and merges the results.
// Zero bounds default to the current year and the earliest published year. Years may be
// fetched concurrently; they are merged newest first once all of them are done, so an older
// year overwrites a date that a newer page also lists.
func (b *Builder) BuildAll(ctx context.Context, startYear, endYear int) (*curve.Dataset, BuildReport, error) {
	if startYear == 0 {
		startYear = b.CurrentYear()
	}
	if endYear == 0 {
		endYear = b.opts.EarliestYear
	}
	report := BuildReport{StartYear: startYear, EndYear: endYear}
	if startYear < endYear {
		return nil, report, fmt.Errorf("year range %d..%d is empty", startYear, endYear)
	}

	type outcome struct {
		records curve.Records
		result  YearResult
	}

	started := time.Now()
	outcomes := make([]outcome, startYear-endYear+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i := range outcomes {
		year := startYear - i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i].result = YearResult{Year: year, Err: err}
				return err
			}

			t0 := time.Now()
			records, faults, err := b.fetchYear(gctx, year)
			elapsed := time.Since(t0)
			outcomes[i] = outcome{
				records: records,
				result:  YearResult{Year: year, Dates: len(records), Faults: faults, Duration: elapsed, Err: err},
			}

			if err != nil {
				if b.opts.FailurePolicy == PolicyAbort || ctx.Err() != nil {
					return err
				}
				b.logger.Error().Err(err).Int("year", year).Msg("year failed, skipping")
				return nil
			}

			b.logger.Info().
				Int("year", year).
				Int("dates", len(records)).
				Dur("duration", elapsed).
				Msg("year scraped")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		report.Duration = time.Since(started)
		return nil, report, fmt.Errorf("build dataset: %w", err)
	}

	ds := curve.NewDataset(b.opts.Schedule)
	for _, o := range outcomes {
		report.Years = append(report.Years, o.result)
		report.Faults += o.result.Faults
		if o.result.Err != nil {
			report.Failed++
			continue
		}
		report.Succeeded++
		report.Overwritten += ds.Merge(o.records)
	}
	report.Dates = ds.Len()
	report.Duration = time.Since(started)

	if report.Succeeded == 0 {
		return nil, report, fmt.Errorf("build dataset: every year failed: %w", report.Err())
	}

	b.logger.Info().
		Int("years_ok", report.Succeeded).
		Int("years_failed", report.Failed).
		Int("dates", report.Dates).
		Int("overwritten", report.Overwritten).
		Dur("duration", report.Duration).
		Msg("dataset built")
	return ds, report, nil
}
