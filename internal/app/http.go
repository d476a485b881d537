package app

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"resultdb/pkg/api"
)

// setupHTTPHandlers mounts the API plus the ops surface. Everything outside
// /api (health, metrics, docs) bypasses auth and rate limiting.
func (a *App) setupHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", healthzHandler)
	mux.HandleFunc("/readyz", a.readyzHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	mux.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))
	mux.Handle("/api/", api.Handler(api.Deps{
		Store:     a.st,
		Registry:  a.registry,
		Trie:      a.trie,
		Verifier:  a.verifier,
		RateLimit: a.cfg.Server.RateLimit,
		Writer:    ResultWriterName,
	}))
}

// healthzHandler reports process liveness only.
func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// readyzHandler reports whether the service can actually take traffic: the
// database answers and every ingest writer is still draining its queue.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.st.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"database unreachable"}`))
		return
	}
	if !a.registry.AllAlive() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"writer stopped"}`))
		return
	}

	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","version":"` + ver + `"}`))
}

// startHTTP binds the listener in a goroutine and hands back its terminal
// error.
func (a *App) startHTTP() <-chan error {
	mux := http.NewServeMux()
	a.setupHTTPHandlers(mux)

	a.srv = &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.ListenAndServe()
	}()
	return errCh
}
