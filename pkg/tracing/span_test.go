package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansInheritTrace(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "match-resume", "req-1")
	_, extract := StartChildSpan(ctx, "extract")
	extract.SetError(errors.New("empty pdf"))
	extract.End()
	root.End()

	require.Len(t, root.Children, 1)
	assert.Equal(t, "req-1", extract.TraceID)
	assert.Equal(t, root.SpanID, extract.ParentID)
	assert.Len(t, extract.SpanID, 16)
	assert.Equal(t, "empty pdf", extract.Attrs["error"])
	assert.Same(t, root, SpanFromContext(ctx))
}

func TestEndIsIdempotent(t *testing.T) {
	_, s := StartSpan(context.Background(), "render", "")
	assert.NotEmpty(t, s.TraceID)
	assert.Zero(t, s.Duration())

	s.End()
	first := s.EndTime
	s.End()
	assert.Equal(t, first, s.EndTime)
}

func TestLogWritesTreeInOrder(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)
	SetEnabled(true)
	defer SetEnabled(false)

	ctx, root := StartSpan(context.Background(), "upload", "req-9")
	cctx, compose := StartChildSpan(ctx, "llm.merge")
	_, inner := StartChildSpan(cctx, "llm.attempt")
	inner.SetAttr("model", "gpt-4")
	inner.End()
	compose.End()
	root.End()
	root.Log()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "span=upload")
	assert.Contains(t, lines[1], "span=llm.merge")
	assert.Contains(t, lines[2], "depth=2")
	assert.Contains(t, lines[2], "model=gpt-4")
	for _, l := range lines {
		assert.Contains(t, l, "trace_id=req-9")
	}
}

func TestNilSpanIsSafe(t *testing.T) {
	var s *Span
	assert.NotPanics(t, func() {
		s.SetAttr("k", "v")
		s.SetError(errors.New("x"))
		s.End()
		s.Log()
	})
	assert.Nil(t, SpanFromContext(context.Background()))
}
