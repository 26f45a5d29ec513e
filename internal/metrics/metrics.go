// Package metrics records scrape statistics in a private Prometheus registry. Batch runs
// flush it to a node-exporter textfile; the API server exposes it over HTTP.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yieldscraper"

// Recorder owns the scrape metrics.
type Recorder struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	years       *prometheus.CounterVec
	faults      prometheus.Counter
	unparsable  prometheus.Counter
	dates       prometheus.Gauge
	lastSuccess prometheus.Gauge
	duration    prometheus.Histogram
}

// NewRecorder registers every collector on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Scrape runs by final status.",
		}, []string{"status"}),
		years: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "years_total",
			Help:      "Yearly pages processed by outcome.",
		}, []string{"outcome"}),
		faults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shape_faults_total",
			Help:      "Dates whose value count did not match the maturity schedule.",
		}),
		unparsable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unparsable_rows_total",
			Help:      "Rows the sorter could not date.",
		}),
		dates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_dates",
			Help:      "Distinct dates in the last written dataset.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of scrape runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
	r.registry.MustRegister(r.runs, r.years, r.faults, r.unparsable, r.dates, r.lastSuccess, r.duration)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRun records a finished run. status is "ok" or "failed".
func (r *Recorder) ObserveRun(status string, finished time.Time, elapsed time.Duration) {
	r.runs.WithLabelValues(status).Inc()
	r.duration.Observe(elapsed.Seconds())
	if status == "ok" {
		r.lastSuccess.Set(float64(finished.Unix()))
	}
}

// ObserveYears adds per-year outcomes.
func (r *Recorder) ObserveYears(ok, failed int) {
	r.years.WithLabelValues("ok").Add(float64(ok))
	r.years.WithLabelValues("failed").Add(float64(failed))
}

// AddFaults counts record shape faults.
func (r *Recorder) AddFaults(n int) {
	r.faults.Add(float64(n))
}

// AddUnparsable counts rows left undated by the sorter.
func (r *Recorder) AddUnparsable(n int) {
	r.unparsable.Add(float64(n))
}

// SetDates sets the dataset size gauge.
func (r *Recorder) SetDates(n int) {
	r.dates.Set(float64(n))
}

// WriteTextfile dumps the registry in text exposition format. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Handler serves the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
