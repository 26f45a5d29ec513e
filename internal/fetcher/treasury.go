package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// DefaultURLTemplate is the per-year text view of the daily treasury yield curve.
const DefaultURLTemplate = "https://www.treasury.gov/resource-center/data-chart-center/interest-rates/Pages/TextView.aspx?data=yieldYear&year=%d"

// TreasuryOptions parameterise the page fetcher.
type TreasuryOptions struct {
	URLTemplate       string
	Timeout           time.Duration
	UserAgent         string
	RetryCount        int
	RetryWait         time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Treasury downloads yearly yield-curve pages over HTTP.
type Treasury struct {
	opts    TreasuryOptions
	client  *resty.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewTreasury constructs a page fetcher.
func NewTreasury(opts TreasuryOptions, logger zerolog.Logger) *Treasury {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if strings.TrimSpace(opts.URLTemplate) == "" {
		opts.URLTemplate = DefaultURLTemplate
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "yieldscraper/1.0"
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(8 * opts.RetryWait).
		AddRetryCondition(func(res *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return res.StatusCode() == http.StatusTooManyRequests || res.StatusCode() >= http.StatusInternalServerError
		})

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Treasury{
		opts:    opts,
		client:  client,
		limiter: limiter,
		logger:  logger.With().Str("component", "page_fetcher").Logger(),
	}
}

// URL returns the page address for a year.
func (t *Treasury) URL(year int) string {
	return fmt.Sprintf(t.opts.URLTemplate, year)
}

// FetchYear downloads the page for year and returns its full text decoded to UTF-8.
func (t *Treasury) FetchYear(ctx context.Context, year int) (string, error) {
	url := t.URL(year)

	if err := t.limiter.Wait(ctx); err != nil {
		return "", &FetchError{Year: year, URL: url, Err: err}
	}

	started := time.Now()
	res, err := t.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", &FetchError{Year: year, URL: url, Err: err}
	}

	if res.StatusCode() != http.StatusOK {
		return "", &FetchError{
			Year:       year,
			URL:        url,
			StatusCode: res.StatusCode(),
			Err:        errors.New(strings.TrimSpace(res.Status())),
		}
	}

	text, err := decodeBody(res.Body(), res.Header().Get("Content-Type"))
	if err != nil {
		return "", &FetchError{Year: year, URL: url, StatusCode: res.StatusCode(), Err: err}
	}

	t.logger.Debug().
		Int("year", year).
		Int("bytes", len(text)).
		Dur("elapsed", time.Since(started)).
		Msg("page downloaded")
	return text, nil
}

func decodeBody(body []byte, contentType string) (string, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(decoded), nil
}

var _ PageFetcher = (*Treasury)(nil)
