package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testOptions(url string) TreasuryOptions {
	return TreasuryOptions{
		URLTemplate: url + "/TextView.aspx?data=yieldYear&year=%d",
		Timeout:     2 * time.Second,
		UserAgent:   "test",
		RetryWait:   5 * time.Millisecond,
	}
}

func TestTreasuryFetchYearSuccess(t *testing.T) {
	var gotYear, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotYear = r.URL.Query().Get("year")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<table class="t-chart"><tr><td>01/02/90</td></tr></table>End Main Content Area`))
	}))
	defer srv.Close()

	f := NewTreasury(testOptions(srv.URL), noopLogger())
	text, err := f.FetchYear(context.Background(), 1990)
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if gotYear != "1990" {
		t.Fatalf("year not substituted into url, got %q", gotYear)
	}
	if gotUA != "test" {
		t.Fatalf("user agent not sent, got %q", gotUA)
	}
	if !strings.Contains(text, "01/02/90") || !strings.Contains(text, "End Main Content Area") {
		t.Fatalf("unexpected body %q", text)
	}
}

func TestTreasuryDecodesDeclaredCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1252")
		_, _ = w.Write([]byte{'7', '.', '8', '3', 0xA0, 'N', '/', 'A'})
	}))
	defer srv.Close()

	f := NewTreasury(testOptions(srv.URL), noopLogger())
	text, err := f.FetchYear(context.Background(), 2001)
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if text != "7.83\u00a0N/A" {
		t.Fatalf("body not decoded from windows-1252: %q", text)
	}
}

func TestTreasuryFetchNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.RetryCount = 3
	f := NewTreasury(opts, noopLogger())

	_, err := f.FetchYear(context.Background(), 1989)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.StatusCode != http.StatusNotFound || fetchErr.Year != 1989 {
		t.Fatalf("unexpected error fields %+v", fetchErr)
	}
	if hits.Load() != 1 {
		t.Fatalf("404 should not be retried, got %d requests", hits.Load())
	}
}

func TestTreasuryRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.RetryCount = 2
	f := NewTreasury(opts, noopLogger())

	text, err := f.FetchYear(context.Background(), 2005)
	if err != nil {
		t.Fatalf("fetch should succeed after retries: %v", err)
	}
	if text != "ok" || hits.Load() != 3 {
		t.Fatalf("expected 3 attempts and body ok, got %d %q", hits.Load(), text)
	}
}

func TestTreasuryTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := NewTreasury(testOptions(url), noopLogger())
	_, err := f.FetchYear(context.Background(), 2010)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.StatusCode != 0 {
		t.Fatalf("transport errors carry no status, got %d", fetchErr.StatusCode)
	}
}

func TestTreasuryCancelledContext(t *testing.T) {
	opts := testOptions("http://127.0.0.1:1")
	opts.RequestsPerSecond = 0.001
	f := NewTreasury(opts, noopLogger())

	// drain the single burst token so the next Wait has to block
	_ = f.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.FetchYear(ctx, 2020); err == nil {
		t.Fatal("cancelled context should fail the fetch")
	}
}
