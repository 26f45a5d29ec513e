package app

import (
	"context"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"yieldscraper/internal/api"
	"yieldscraper/internal/dataset"
	"yieldscraper/internal/metrics"
	"yieldscraper/internal/storage"
)

// Serve runs the read-only API, optionally with the refresh loop in the same process.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore := a.optionalStore(ctx)
	defer closeStore()

	var src dataset.Source = dataset.FileSource{Path: a.Config.Output.Path, Schedule: a.Config.Schedule()}
	if store != nil {
		src = storage.DatasetSource{Store: store, Schedule: a.Config.Schedule()}
	}

	listen := a.Config.API.ListenAddr
	if opts.ListenAddr != "" {
		listen = opts.ListenAddr
	}

	rec := metrics.NewRecorder()
	srv := api.NewServer(src, api.Options{
		ListenAddr:   listen,
		ReadTimeout:  a.Config.API.ReadTimeout,
		WriteTimeout: a.Config.API.WriteTimeout,
		Metrics:      rec.Handler(),
	}, a.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if opts.Watch {
		g.Go(func() error {
			return a.watch(gctx, store, rec)
		})
	}
	return g.Wait()
}
