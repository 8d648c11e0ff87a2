package middleware

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/tracing"
)

// Trace opens a root span per request, keyed by the request ID, and logs
// the finished span tree. It must run inside RequestID.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+normalizePath(r.URL.Path), logger.RequestID(r.Context()))
		rec := record(w)
		next.ServeHTTP(rec, r.WithContext(ctx))
		span.SetAttr("status", rec.status)
		span.End()
		span.Log()
	})
}
