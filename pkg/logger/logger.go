// Package logger installs the process slog handler and threads
// request-scoped fields (request ID, model, key fingerprint) through
// contexts so every log line of a request can be correlated.
package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"strings"
)

type fieldsKey struct{}

// fields is an immutable list of attrs carried by a context.
type fields struct {
	requestID string
	attrs     []any
}

// Setup installs a handler on stdout for the whole process.
func Setup(level, format string) *slog.Logger {
	return SetupWriter(os.Stdout, level, format)
}

// SetupWriter is Setup with an explicit destination. Format "json" selects
// the JSON handler; anything else is text. Debug level adds source lines.
func SetupWriter(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl <= slog.LevelDebug}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	l := slog.New(h)
	slog.SetDefault(l)
	return l
}

// ParseLevel maps debug, warn and error (any case) to slog levels and
// everything else to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func current(ctx context.Context) fields {
	f, _ := ctx.Value(fieldsKey{}).(fields)
	return f
}

// WithRequestID tags ctx with the request's correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	f := current(ctx)
	f.requestID = requestID
	return context.WithValue(ctx, fieldsKey{}, f)
}

// With adds key/value pairs that FromContext loggers will carry.
func With(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	f := current(ctx)
	f.attrs = append(append(make([]any, 0, len(f.attrs)+len(args)), f.attrs...), args...)
	return context.WithValue(ctx, fieldsKey{}, f)
}

// RequestID returns the correlation ID in ctx, or "".
func RequestID(ctx context.Context) string {
	return current(ctx).requestID
}

// FromContext returns the default logger decorated with ctx's fields.
func FromContext(ctx context.Context) *slog.Logger {
	f := current(ctx)
	l := slog.Default()
	if f.requestID != "" {
		l = l.With("request_id", f.requestID)
	}
	if len(f.attrs) > 0 {
		l = l.With(f.attrs...)
	}
	return l
}

// Fingerprint returns a short stable tag for a secret such as a provider
// API key. It is safe to log and to use in cache or rate-limit keys.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:6])
}
