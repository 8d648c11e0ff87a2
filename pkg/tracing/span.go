// Package tracing records in-process span trees for a request. The HTTP
// middleware opens the root span, handlers and services hang child spans off
// it, and the finished tree is written to the log as one record per span.
package tracing

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type spanKey struct{}

var enabled atomic.Bool

// SetEnabled switches span logging for the process. Spans are recorded
// either way.
func SetEnabled(on bool) { enabled.Store(on) }

// Span is one timed step of a request.
type Span struct {
	Name      string
	TraceID   string
	SpanID    string
	ParentID  string
	StartTime time.Time
	EndTime   time.Time
	Attrs     map[string]any
	Children  []*Span

	mu sync.Mutex
}

func newSpan(name, traceID, parentID string) *Span {
	return &Span{
		Name:      name,
		TraceID:   traceID,
		SpanID:    strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		ParentID:  parentID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
}

// StartSpan opens a root span. An empty traceID gets a fresh one.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	s := newSpan(name, traceID, "")
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan opens a span under the one in ctx. Without a parent the
// span is detached: it is still usable but never logged.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		s := newSpan(name, "", "")
		return context.WithValue(ctx, spanKey{}, s), s
	}
	s := newSpan(name, parent.TraceID, parent.SpanID)
	parent.mu.Lock()
	parent.Children = append(parent.Children, s)
	parent.mu.Unlock()
	return context.WithValue(ctx, spanKey{}, s), s
}

// SpanFromContext returns the innermost span in ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// End stamps the end time. Only the first call counts.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.EndTime.IsZero() {
		s.EndTime = time.Now()
	}
	s.mu.Unlock()
}

// Duration is zero until the span has ended.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// SetError marks the span failed. A nil err is ignored.
func (s *Span) SetError(err error) {
	if err == nil {
		return
	}
	s.SetAttr("error", err.Error())
}

// Log writes the tree rooted at s, parents before children, when span
// logging is enabled.
func (s *Span) Log() {
	if s == nil || !enabled.Load() {
		return
	}
	logger := slog.Default().With("trace_id", s.TraceID)
	s.walk(0, func(sp *Span, depth int, attrs []any) {
		logger.Info("span", append([]any{
			"span", sp.Name,
			"span_id", sp.SpanID,
			"parent_id", sp.ParentID,
			"depth", depth,
			"offset_ms", sp.StartTime.Sub(s.StartTime).Milliseconds(),
			"duration_ms", sp.Duration().Milliseconds(),
		}, attrs...)...)
	})
}

func (s *Span) walk(depth int, visit func(sp *Span, depth int, attrs []any)) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.Attrs))
	for k := range s.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		attrs = append(attrs, k, s.Attrs[k])
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	visit(s, depth, attrs)
	for _, c := range children {
		c.walk(depth+1, visit)
	}
}
