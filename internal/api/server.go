// Package api serves the scraped dataset over a read-only JSON interface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"yieldscraper/internal/curve"
	"yieldscraper/internal/dataset"
)

const shutdownTimeout = 10 * time.Second

// Options configures the HTTP server.
type Options struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Server exposes curves loaded from a dataset.Source.
type Server struct {
	opts   Options
	source dataset.Source
	logger zerolog.Logger
}

// NewServer wires a server over source.
func NewServer(source dataset.Source, opts Options, logger zerolog.Logger) *Server {
	return &Server{
		opts:   opts,
		source: source,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/schedule", s.schedule)
		r.Get("/curves", s.listCurves)
		r.Get("/curves/latest", s.latestCurve)
		r.Get("/curves/{date}", s.getCurve)
	})
	return r
}

// ListenAndServe blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.ListenAddr,
		Handler:      s.Routes(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.ListenAddr).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api: %w", err)
	}
	s.logger.Info().Msg("api stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) schedule(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.load(w, r)
	if !ok {
		return
	}
	schedule := ds.Schedule()
	out := make([]MaturityResponse, 0, schedule.Len())
	for _, m := range schedule {
		out = append(out, MaturityResponse{Months: m, Label: curve.Label(m)})
	}
	render.JSON(w, r, out)
}

func (s *Server) listCurves(w http.ResponseWriter, r *http.Request) {
	from, err := parseQueryDate(r, "from")
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	to, err := parseQueryDate(r, "to")
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		_ = render.Render(w, r, ErrInvalidRequest(errors.New("from must not be after to")))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			_ = render.Render(w, r, ErrInvalidRequest(fmt.Errorf("invalid limit %q", raw)))
			return
		}
	}

	ds, ok := s.load(w, r)
	if !ok {
		return
	}
	curves := ds.Between(from, to)
	if limit > 0 && len(curves) > limit {
		curves = curves[len(curves)-limit:]
	}

	resp := CurveListResponse{Count: len(curves), Curves: make([]CurveResponse, 0, len(curves))}
	for _, c := range curves {
		resp.Curves = append(resp.Curves, NewCurveResponse(ds.Schedule(), c))
	}
	render.JSON(w, r, resp)
}

func (s *Server) latestCurve(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.load(w, r)
	if !ok {
		return
	}
	c, found := ds.Latest()
	if !found {
		_ = render.Render(w, r, ErrNotFound("dataset is empty"))
		return
	}
	render.JSON(w, r, NewCurveResponse(ds.Schedule(), c))
}

func (s *Server) getCurve(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "date")
	t, err := time.Parse(curve.ISODateLayout, raw)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(fmt.Errorf("date %q must be YYYY-MM-DD", raw)))
		return
	}

	ds, ok := s.load(w, r)
	if !ok {
		return
	}
	date := curve.FormatDate(t)
	// Two-digit years only cover one century window.
	parsed, err := curve.ParseDate(date)
	if err != nil || parsed.Year() != t.Year() {
		_ = render.Render(w, r, ErrNotFound(fmt.Sprintf("no curve for %s", raw)))
		return
	}
	rec, found := ds.Get(date)
	if !found {
		_ = render.Render(w, r, ErrNotFound(fmt.Sprintf("no curve for %s", raw)))
		return
	}
	render.JSON(w, r, NewCurveResponse(ds.Schedule(), curve.Curve{Date: date, Time: t, Values: rec}))
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (*curve.Dataset, bool) {
	ds, err := s.source.Load(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("load dataset")
		_ = render.Render(w, r, ErrUnavailable(err))
		return nil, false
	}
	return ds, true
}

func parseQueryDate(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(curve.ISODateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %q must be YYYY-MM-DD", key, raw)
	}
	return t, nil
}
