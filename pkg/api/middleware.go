package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"runtime/debug"

	"resultdb/pkg/logger"
	"resultdb/pkg/utils"
)

// recoverMiddleware turns a handler panic into a 500 envelope so one bad
// request cannot take the listener down. It sits outside everything else.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("handler_panicked",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()))
				utils.JSONError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// envelopeMiddleware guarantees every 4xx/5xx leaving the API carries the
// {error, message} envelope, including responses written by layers that
// know nothing about it (gorilla's default 404 and 405 handlers emit plain
// text). Bodies that already parse as an envelope pass through untouched.
func envelopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ew := &envelopeWriter{ResponseWriter: w}
		next.ServeHTTP(ew, r)
		ew.finish()
	})
}

// envelopeWriter buffers the body of any response with status >= 400. 2xx
// and 3xx responses stream straight through.
type envelopeWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	buffering   bool
	body        bytes.Buffer
}

func (e *envelopeWriter) WriteHeader(code int) {
	if e.wroteHeader {
		return
	}
	e.wroteHeader = true
	e.status = code
	if code >= http.StatusBadRequest {
		e.buffering = true
		return
	}
	e.ResponseWriter.WriteHeader(code)
}

func (e *envelopeWriter) Write(b []byte) (int, error) {
	if !e.wroteHeader {
		e.WriteHeader(http.StatusOK)
	}
	if e.buffering {
		return e.body.Write(b)
	}
	return e.ResponseWriter.Write(b)
}

func (e *envelopeWriter) finish() {
	if !e.buffering {
		return
	}
	body := bytes.TrimSpace(e.body.Bytes())
	var env utils.ErrorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error != "" && env.Message != "" {
		e.ResponseWriter.Header().Set("Content-Type", "application/json")
		e.ResponseWriter.WriteHeader(e.status)
		_, _ = e.ResponseWriter.Write(e.body.Bytes())
		return
	}
	msg := string(body)
	if msg == "" {
		msg = http.StatusText(e.status)
	}
	// The buffered body is replaced, so any length the inner handler set
	// is stale.
	e.ResponseWriter.Header().Del("Content-Length")
	utils.JSONError(e.ResponseWriter, e.status, msg)
}
