package utils

import (
	"encoding/json"
	"net/http"
)

// Error kinds carried in the "error" field of the error envelope. Clients
// switch on these; the human-readable detail lives in "message".
const (
	KindBadRequest      = "BAD_REQUEST"
	KindUnauthorized    = "UNAUTHORIZED"
	KindForbidden       = "FORBIDDEN"
	KindNotFound        = "NOT_FOUND"
	KindConflict        = "CONFLICT"
	KindTooManyRequests = "TOO_MANY_REQUESTS"
	KindInternal        = "INTERNAL_ERROR"
)

// ErrorEnvelope is the uniform error body for every non-2xx response.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// CodeForStatus maps an HTTP status code to its error kind. Unmapped 4xx
// codes fall back to BAD_REQUEST and everything else to INTERNAL_ERROR.
func CodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindTooManyRequests
	}
	if status >= 400 && status < 500 {
		return KindBadRequest
	}
	return KindInternal
}

// JSONError writes the error envelope with the given status code. The kind
// is derived from the status via CodeForStatus.
func JSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{Error: CodeForStatus(status), Message: message})
}

// JSONFieldError writes the error envelope with the offending field name
// attached. Used for validation failures.
func JSONFieldError(w http.ResponseWriter, status int, message, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{Error: CodeForStatus(status), Message: message, Field: field})
}

// JSONWrite writes the provided value as JSON with the given status code.
func JSONWrite(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	return json.NewEncoder(w).Encode(v)
}
