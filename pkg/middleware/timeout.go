package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/logger"
)

// Timeout gives each request a deadline. A handler that has not started its
// response by then is answered with 504 and its later writes are dropped.
// A handler that has already started writing is left to finish.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()

			gw := &guardedWriter{w: w, h: make(http.Header)}
			done := make(chan struct{})
			var panicked any
			go func() {
				defer close(done)
				defer func() { panicked = recover() }()
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-done:
				if panicked != nil {
					panic(panicked)
				}
				return
			case <-ctx.Done():
			}
			if !gw.expire() {
				<-done
				return
			}
			logger.FromContext(r.Context()).Warn("request timed out",
				"method", r.Method,
				"path", r.URL.Path,
				"limit", limit,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusGatewayTimeout)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   "Request timed out",
				"details": fmt.Sprintf("no response within %v", limit),
			})
		})
	}
}

// guardedWriter buffers headers in h and passes writes through until it
// expires. h is copied to w only when the response starts, so the handler
// never shares a header map with the timeout path.
type guardedWriter struct {
	w http.ResponseWriter
	h http.Header

	mu      sync.Mutex
	started bool
	expired bool
}

func (g *guardedWriter) Header() http.Header { return g.h }

// expire stops further writes. It reports false when the handler already
// started its response, in which case nothing changes.
func (g *guardedWriter) expire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return false
	}
	g.expired = true
	return true
}

// start copies the buffered headers and sends code. Callers hold mu.
func (g *guardedWriter) start(code int) {
	dst := g.w.Header()
	for k, v := range g.h {
		dst[k] = v
	}
	g.started = true
	g.w.WriteHeader(code)
}

func (g *guardedWriter) WriteHeader(code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expired || g.started {
		return
	}
	g.start(code)
}

func (g *guardedWriter) Write(b []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expired {
		return 0, http.ErrHandlerTimeout
	}
	if !g.started {
		g.start(http.StatusOK)
	}
	return g.w.Write(b)
}
