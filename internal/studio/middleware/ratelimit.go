package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/metrics"
)

// RateLimit returns middleware that enforces a per-caller limit on the
// paths selected by protected. Other paths, including health and preview
// routes, pass straight through. m may be nil.
func RateLimit(limiter *ratelimit.Limiter, limit int, protected func(path string) bool, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || !protected(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := limiter.Reserve(CallerID(r), limit)
			if !ok {
				if m != nil {
					m.RateLimitedTotal.Inc()
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(wait time.Duration) int {
	s := int(math.Ceil(wait.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
