package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CurvePoint is one persisted (date, maturity) observation. Raw keeps the scraped text,
// Rate is null when the text is not a number (for example NaN).
type CurvePoint struct {
	Date     time.Time
	Maturity int
	Rate     decimal.NullDecimal
	Raw      string
}

// Run kinds recorded in scrape_runs.
const (
	RunKindFull     = "full"
	RunKindRefresh  = "refresh"
	RunKindBackfill = "backfill"
)

// ScrapeRun audits one scrape, refresh or backfill.
type ScrapeRun struct {
	ID          uuid.UUID
	Kind        string
	StartedAt   time.Time
	FinishedAt  time.Time
	YearsOK     int
	YearsFailed int
	Dates       int
	Status      string
	Error       *string
}

// AlertRecord captures an emitted inversion alert for de-duplication.
type AlertRecord struct {
	ID           int64
	CurveDate    time.Time
	ShortMonths  int
	LongMonths   int
	SpreadBps    decimal.Decimal
	ThresholdBps decimal.Decimal
	CreatedAt    time.Time
}
