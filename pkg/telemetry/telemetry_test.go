package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

func TestSafeHeadersRedactsSensitiveValues(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/executions", nil)
	r.Header.Set("Authorization", "Bearer secret-token")
	r.Header.Set("Cookie", "session=abc")
	r.Header.Set("Accept", "application/json")

	h := SafeHeaders(r)
	if h["Authorization"] != "<redacted>" {
		t.Fatalf("authorization = %q", h["Authorization"])
	}
	if h["Cookie"] != "<redacted>" {
		t.Fatalf("cookie = %q", h["Cookie"])
	}
	if h["Accept"] != "application/json" {
		t.Fatalf("accept = %q", h["Accept"])
	}
}

func TestMiddlewarePreservesResponse(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Middleware)
	router.HandleFunc("/api/result/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"NOT_FOUND","message":"nope"}`))
	}).Methods(http.MethodGet)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/result/42", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != `{"error":"NOT_FOUND","message":"nope"}` {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
