package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/metrics"
)

// Metrics counts requests by route and status and times them by route.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := normalizePath(r.URL.Path)
			m.HTTPRequestsInFlight.Inc()
			timer := prometheus.NewTimer(m.HTTPRequestDuration.WithLabelValues(r.Method, route))
			rec := record(w)
			defer func() {
				timer.ObserveDuration()
				m.HTTPRequestsInFlight.Dec()
				m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// recorder remembers the first status written. A handler that only calls
// Write has implicitly sent 200.
type recorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func record(w http.ResponseWriter) *recorder {
	return &recorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *recorder) WriteHeader(code int) {
	if !rw.written {
		rw.status, rw.written = code, true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *recorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// routeAliases folds the unversioned routes into their /api/v1 names so
// both spellings share a label set.
var routeAliases = map[string]string{
	"/upload-resume":     "/api/v1/resume/upload",
	"/ai-edit":           "/api/v1/resume/edit",
	"/match-resume":      "/api/v1/resume/match",
	"/render":            "/api/v1/render",
	"/export-pdf":        "/api/v1/export-pdf",
	"/weasyprint-status": "/api/v1/renderer/status",
}

// normalizePath keeps label cardinality bounded. Unknown paths are "other".
func normalizePath(p string) string {
	if alias, ok := routeAliases[p]; ok {
		return alias
	}
	if p == "/metrics" || strings.HasPrefix(p, "/api/v1/") || strings.HasPrefix(p, "/health/") {
		return p
	}
	return "other"
}
