// Package router wires up the studio routes and applies the middleware
// chain (RequestID → Trace → Metrics → CORS → RateLimit → Timeout).
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio/handler"
	studiomw "github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio/middleware"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/middleware"
)

// Options configures the middleware chain. Limiter and Metrics may be nil.
type Options struct {
	Health         *health.Checker
	Limiter        *ratelimit.Limiter
	RateLimit      int
	AllowOrigins   []string
	RequestTimeout time.Duration
	Metrics        *metrics.Metrics
}

// protectedPaths are the routes that call a model or a PDF engine.
var protectedPaths = map[string]bool{
	"/api/v1/resume/upload": true,
	"/upload-resume":        true,
	"/api/v1/resume/edit":   true,
	"/ai-edit":              true,
	"/api/v1/export-pdf":    true,
	"/export-pdf":           true,
}

// Protected reports whether path is rate limited.
func Protected(path string) bool {
	return protectedPaths[path]
}

// New builds the studio HTTP handler with all routes and middleware.
//
// Route table:
//
//	POST   /api/v1/resume/upload     (alias /upload-resume)     → merge resume into template
//	POST   /api/v1/resume/edit       (alias /ai-edit)           → edit one element
//	POST   /api/v1/resume/match      (alias /match-resume)      → score uploaded resume
//	POST   /api/v1/match                                         → score two texts
//	POST   /api/v1/render            (alias /render)            → preview
//	POST   /api/v1/export-pdf        (alias /export-pdf)        → PDF attachment
//	GET    /api/v1/renderer/status   (alias /weasyprint-status) → engine availability
//	GET    /api/v1/cache/stats                                   → completion cache stats
//	POST   /api/v1/cache/invalidate                              → flush completion cache
//	GET    /health/live, /health/ready                           → probes
//
// Middleware chain (outermost first):
//
//	RequestID → Trace → Metrics → CORS → RateLimit → Timeout → handler
func New(h *handler.Handler, opts Options) http.Handler {
	mux := http.NewServeMux()

	routes := []struct {
		method, path, alias string
		fn                  http.HandlerFunc
	}{
		{http.MethodPost, "/api/v1/resume/upload", "/upload-resume", h.UploadResume},
		{http.MethodPost, "/api/v1/resume/edit", "/ai-edit", h.EditResume},
		{http.MethodPost, "/api/v1/resume/match", "/match-resume", h.MatchResume},
		{http.MethodPost, "/api/v1/match", "", h.Match},
		{http.MethodPost, "/api/v1/render", "/render", h.Render},
		{http.MethodPost, "/api/v1/export-pdf", "/export-pdf", h.ExportPDF},
		{http.MethodGet, "/api/v1/renderer/status", "/weasyprint-status", h.RendererStatus},
		{http.MethodGet, "/api/v1/cache/stats", "", h.CacheStats},
		{http.MethodPost, "/api/v1/cache/invalidate", "", h.CacheInvalidate},
	}
	for _, rt := range routes {
		mux.HandleFunc(rt.method+" "+rt.path, rt.fn)
		if rt.alias != "" {
			mux.HandleFunc(rt.method+" "+rt.alias, rt.fn)
		}
	}

	if opts.Health != nil {
		mux.HandleFunc("GET /health/live", opts.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", opts.Health.ReadyHandler())
	}

	// Applied inside-out.
	var chain http.Handler = mux
	chain = pkgmw.Timeout(opts.RequestTimeout)(chain)
	if opts.Limiter != nil {
		chain = studiomw.RateLimit(opts.Limiter, opts.RateLimit, Protected, opts.Metrics)(chain)
	}
	chain = studiomw.CORS(studiomw.DefaultCORSConfig(opts.AllowOrigins))(chain)
	if opts.Metrics != nil {
		chain = pkgmw.Metrics(opts.Metrics)(chain)
	}
	chain = pkgmw.Trace(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}
