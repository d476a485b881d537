package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"resultdb/pkg/utils"
)

func runThrough(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRecoverMiddleware(t *testing.T) {
	h := recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := runThrough(h, http.MethodGet, "/api/executions")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var env utils.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error != utils.KindInternal {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestEnvelopePassesThroughExistingEnvelope(t *testing.T) {
	h := envelopeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		utils.JSONFieldError(w, http.StatusBadRequest, "name is required", "name")
	}))
	rec := runThrough(h, http.MethodPost, "/api/execution")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var env utils.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error != utils.KindBadRequest || env.Message != "name is required" || env.Field != "name" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestEnvelopeWrapsPlainTextError(t *testing.T) {
	h := envelopeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "out of teapots", http.StatusTeapot)
	}))
	rec := runThrough(h, http.MethodGet, "/api/teapot")
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content type = %q", ct)
	}
	var env utils.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if env.Error != utils.KindBadRequest || env.Message != "out of teapots" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestEnvelopeLeavesSuccessAlone(t *testing.T) {
	h := envelopeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	rec := runThrough(h, http.MethodPost, "/api/execution")
	if rec.Code != http.StatusCreated || rec.Body.String() != `{"id":7}` {
		t.Fatalf("response = %d %q", rec.Code, rec.Body.String())
	}

	h = envelopeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec = runThrough(h, http.MethodPatch, "/api/result/1/status")
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("response = %d %q", rec.Code, rec.Body.String())
	}
}

func TestEnvelopeFillsEmptyErrorBody(t *testing.T) {
	h := envelopeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	rec := runThrough(h, http.MethodPut, "/api/execution")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
	var env utils.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if env.Message != http.StatusText(http.StatusMethodNotAllowed) {
		t.Fatalf("envelope = %+v", env)
	}
}
