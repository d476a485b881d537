// Package app wires configuration, storage, ingest writers, the suggestion
// index, auth and retention into one lifecycle: New builds everything in
// dependency order and fails fast, Run blocks until shutdown and drains in
// reverse order.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"resultdb/internal/retention"
	"resultdb/pkg/auth"
	"resultdb/pkg/banner"
	"resultdb/pkg/config"
	"resultdb/pkg/ingest"
	"resultdb/pkg/logger"
	"resultdb/pkg/store"
	"resultdb/pkg/suggest"
)

// ResultWriterName is the writer that absorbs test result payloads. Config
// may tune its batching but the writer always exists.
const ResultWriterName = "test_result"

// App owns every long-lived component and their start/stop order.
type App struct {
	cfg     *config.Config
	version string

	st       *store.Store
	registry *ingest.Registry
	trie     *suggest.Trie
	verifier *auth.Verifier
	sweeper  *retention.Sweeper

	srv *http.Server
}

// New builds all components without starting the listener or the sweeper.
// On any failure it tears down whatever was already constructed.
func New(ctx context.Context, cfg *config.Config, version string) (*App, error) {
	a := &App{cfg: cfg, version: version}
	ok := false
	defer func() {
		if !ok {
			a.teardown()
		}
	}()

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.st = st
	if err := st.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	a.registry = ingest.NewRegistry()
	for name, wc := range cfg.Writers {
		a.registry.Register(ingest.NewResultWriter(name, st, wc))
	}

	if cfg.Suggest.Enabled {
		trie, err := suggest.Build(ctx, st, cfg.Suggest)
		if err != nil {
			return nil, fmt.Errorf("build suggestion index: %w", err)
		}
		a.trie = trie
	}

	if cfg.Auth.Enabled {
		v, err := auth.NewVerifier(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("auth verifier: %w", err)
		}
		a.verifier = v
	}

	sweeper, err := retention.New(st, cfg.Retention)
	if err != nil {
		return nil, err
	}
	a.sweeper = sweeper

	ok = true
	return a, nil
}

// Run starts the sweeper and the HTTP listener, then blocks until ctx is
// canceled or the listener fails. Either way it drains and closes every
// component before returning.
func (a *App) Run(ctx context.Context) error {
	a.sweeper.Start(ctx)
	banner.Print(a.cfg, a.version)

	errCh := a.startHTTP()
	logger.Info("server_started",
		"addr", a.cfg.Addr(),
		"db", a.cfg.Database.URL,
		"writers", len(a.cfg.Writers),
		"auth", a.cfg.Auth.Enabled,
		"suggest", a.cfg.Suggest.Enabled)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown_requested")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listener_failed", "err", err)
			runErr = err
		}
	}
	a.shutdown()
	return runErr
}

// shutdown stops intake first, then drains the write pipeline within the
// configured grace, then releases everything else.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGrace())
	defer cancel()

	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			logger.Warn("http_shutdown_incomplete", "err", err)
		}
	}
	if err := a.registry.ShutdownAll(ctx); err != nil {
		logger.Warn("ingest_drain_incomplete", "err", err)
	}
	a.sweeper.Stop()
	if err := a.st.Close(); err != nil {
		logger.Warn("store_close_failed", "err", err)
	}
	logger.Info("server_stopped")
}

// teardown releases partially constructed components after a New failure.
func (a *App) teardown() {
	if a.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.registry.ShutdownAll(ctx)
	}
	if a.st != nil {
		_ = a.st.Close()
	}
}
