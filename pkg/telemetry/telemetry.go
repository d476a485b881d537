package telemetry

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"resultdb/pkg/logger"
)

// slowThreshold is the duration past which a request gets logged.
const slowThreshold = 200 * time.Millisecond

var httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "resultdb_http_request_duration_seconds",
	Help:    "HTTP request latency by method, route template and status.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// statusRecorder captures the terminal status code for metrics and logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Middleware records per-request latency labeled by the mux route template
// (so /api/result/42 and /api/result/7 share a label) and logs slow
// requests with redacted headers. Install via router.Use so the route is
// already matched when it runs.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		dur := time.Since(start)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(srw.status)).Observe(dur.Seconds())

		if dur > slowThreshold {
			logger.Warn("slow_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", srw.status,
				"duration_ms", dur.Milliseconds(),
				"headers", SafeHeaders(r))
		}
	})
}

var sensitive = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"x-api-key":     {},
}

// SafeHeaders returns request headers fit for logging: sensitive values
// are redacted, only the first value of each header is kept.
func SafeHeaders(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) == 0 {
			continue
		}
		if _, ok := sensitive[strings.ToLower(k)]; ok {
			out[k] = "<redacted>"
			continue
		}
		out[k] = v[0]
	}
	return out
}
