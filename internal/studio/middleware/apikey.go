// Package middleware provides HTTP middleware for the studio API: caller
// key resolution, CORS, and rate limiting of the expensive routes.
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/logger"
)

// APIKeyFromHeaders reads the caller's provider key from the request in
// priority order: Authorization: Bearer header, then X-API-Key header.
// Keys sent in the request body are resolved by the handlers.
func APIKeyFromHeaders(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// ResolveAPIKey picks the first non-empty key from the body field, the
// headers, and the configured fallback.
func ResolveAPIKey(r *http.Request, field, fallback string) string {
	if k := strings.TrimSpace(field); k != "" {
		return k
	}
	if k := APIKeyFromHeaders(r); k != "" {
		return k
	}
	return fallback
}

// CallerID identifies the caller for rate limiting: a fingerprint of the
// header key when one is sent, else the client IP. The raw key is never
// used as a map key or logged.
func CallerID(r *http.Request) string {
	if k := APIKeyFromHeaders(r); k != "" {
		return "key:" + logger.Fingerprint(k)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// writeError writes a JSON error response to the client.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
