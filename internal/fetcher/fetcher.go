package fetcher

import (
	"context"
	"fmt"
)

// PageFetcher retrieves the raw text of one year's published yield-curve page.
type PageFetcher interface {
	FetchYear(ctx context.Context, year int) (string, error)
}

// FetchError reports that the page for a year could not be retrieved.
type FetchError struct {
	Year       int
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch year %d (%s): status %d: %v", e.Year, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch year %d (%s): %v", e.Year, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
