package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig lists what cross-origin callers may do. MaxAge is in seconds.
type CORSConfig struct {
	AllowOrigins  []string
	AllowMethods  []string
	AllowHeaders  []string
	ExposeHeaders []string
	MaxAge        int
}

// DefaultCORSConfig allows the editor's methods and headers from origins,
// or from anywhere when origins is empty.
func DefaultCORSConfig(origins []string) CORSConfig {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return CORSConfig{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", "Authorization", "X-API-Key", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Disposition", "X-Request-ID", "Retry-After"},
		MaxAge:        86400,
	}
}

// CORS echoes allowed origins back and answers their preflights with 204.
// Requests from other origins pass through without CORS headers, so the
// browser blocks them.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	wildcard := false
	origins := make(map[string]struct{}, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			wildcard = true
		}
		origins[strings.TrimRight(o, "/")] = struct{}{}
	}
	fixed := map[string]string{
		"Access-Control-Allow-Methods": strings.Join(cfg.AllowMethods, ", "),
		"Access-Control-Allow-Headers": strings.Join(cfg.AllowHeaders, ", "),
		"Access-Control-Max-Age":       strconv.Itoa(cfg.MaxAge),
	}
	if len(cfg.ExposeHeaders) > 0 {
		fixed["Access-Control-Expose-Headers"] = strings.Join(cfg.ExposeHeaders, ", ")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")
			if _, ok := origins[origin]; origin == "" || !(wildcard || ok) {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Origin", origin)
			for k, v := range fixed {
				h.Set(k, v)
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
