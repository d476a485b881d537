package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"resultdb/pkg/api/handlers"
	"resultdb/pkg/auth"
	"resultdb/pkg/config"
	"resultdb/pkg/ingest"
	"resultdb/pkg/store"
	"resultdb/pkg/suggest"
	"resultdb/pkg/telemetry"
)

// Deps carries everything the API surface needs. A nil Verifier turns auth
// off; a nil Trie leaves the suggest route unregistered.
type Deps struct {
	Store     *store.Store
	Registry  *ingest.Registry
	Trie      *suggest.Trie
	Verifier  *auth.Verifier
	RateLimit config.RateLimitConfig

	// Writer names the registered ingest writer that absorbs result
	// payloads.
	Writer string
}

// Handler assembles the /api tree. Telemetry, rate limiting and auth run as
// router middleware on matched routes; panic recovery and the error
// envelope wrap the whole router so they also cover gorilla's built-in 404
// and 405 responses.
func Handler(d Deps) http.Handler {
	root := mux.NewRouter()
	r := root.PathPrefix("/api").Subrouter()

	r.Use(telemetry.Middleware)
	if d.RateLimit.RPS > 0 {
		r.Use(auth.RateLimitMiddleware(d.RateLimit))
	}
	if d.Verifier != nil {
		r.Use(auth.Middleware(d.Verifier))
	}

	(&handlers.Executions{Store: d.Store, Trie: d.Trie}).Register(r)
	(&handlers.Results{Store: d.Store, Registry: d.Registry, Writer: d.Writer}).Register(r)
	(&handlers.Stream{Registry: d.Registry, Writer: d.Writer}).Register(r)

	return recoverMiddleware(envelopeMiddleware(root))
}
