package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"idemat/internal/app"
	"idemat/internal/config"
	"idemat/internal/httpapi"
	"idemat/internal/logging"
	"idemat/internal/watch"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg)

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close", "err", err)
		}
	}()

	sess := a.Session()
	if last, err := a.DB.GetMetadata(httpapi.LastSheetKey); err == nil && last != nil {
		if err := sess.SelectSheet(*last); err != nil {
			log.Warn("restore active sheet", "sheet", *last, "err", err)
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Mount("/", httpapi.NewRouter(sess, a.DB, a.DB, log))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.WatchIntervalSec > 0 {
		var pruner watch.Pruner
		if cfg.TableCache {
			pruner = a.DB
		}
		w := watch.NewService(a.Loader, pruner, cfg.Sheets, time.Duration(cfg.WatchIntervalSec)*time.Second, log)
		go func() { _ = w.Run(ctx) }()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.HTTPAddr, "workbook", cfg.WorkbookPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
