package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/resilience"
)

// scripted answers per model; a model with no entry returns a valid page.
type scripted struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   []string
	last    Request
}

func (s *scripted) Name() string { return "fake" }

func (s *scripted) Complete(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req.Model)
	s.last = req
	if err, ok := s.errs[req.Model]; ok {
		return "", err
	}
	if r, ok := s.replies[req.Model]; ok {
		return r, nil
	}
	return "<html><body>" + req.Model + "</body></html>", nil
}

func (s *scripted) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func testOptions(fallbacks ...string) Options {
	return Options{
		FallbackModels: fallbacks,
		Retry:          resilience.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond},
		Breaker:        resilience.CircuitBreakerConfig{FailureThreshold: 100, ResetTimeout: time.Minute},
	}
}

func TestMergeResumeUsesRequestedModel(t *testing.T) {
	fake := &scripted{replies: map[string]string{"gpt-4o": "```html\n<html>merged</html>\n```"}}
	c := NewComposer(fake, testOptions("gpt-3.5-turbo"))

	out, err := c.MergeResume(context.Background(), MergeRequest{
		APIKey:       "sk-test",
		Model:        "gpt-4o",
		TemplateHTML: "<html>{{name}}</html>",
		ResumeText:   "Jane Doe, Go developer",
	})
	require.NoError(t, err)
	assert.Equal(t, "<html>merged</html>", out.HTML)
	assert.Equal(t, "gpt-4o", out.Model)
	assert.False(t, out.Cached)
	assert.Equal(t, []string{"gpt-4o"}, fake.called())

	assert.Equal(t, mergeSystem, fake.last.System)
	assert.Contains(t, fake.last.Prompt, "<html>{{name}}</html>")
	assert.Contains(t, fake.last.Prompt, "Jane Doe, Go developer")
	assert.Equal(t, "sk-test", fake.last.APIKey)
}

func TestFallsBackToNextModel(t *testing.T) {
	fake := &scripted{errs: map[string]error{
		"custom": fmt.Errorf("%w: no such model", ErrModelUnavailable),
		"first":  fmt.Errorf("%w: boom", apperrors.ErrUpstream),
	}}
	c := NewComposer(fake, testOptions("first", "custom", "second"))

	out, err := c.MergeResume(context.Background(), MergeRequest{APIKey: "k", Model: "custom", TemplateHTML: "<p/>", ResumeText: "x"})
	require.NoError(t, err)
	assert.Equal(t, "second", out.Model)
	assert.Equal(t, []string{"custom", "first", "second"}, fake.called())
}

func TestInvalidKeyStopsChain(t *testing.T) {
	fake := &scripted{errs: map[string]error{
		"a": fmt.Errorf("%w: 401", apperrors.ErrInvalidAPIKey),
	}}
	c := NewComposer(fake, testOptions("b", "c"))

	_, err := c.MergeResume(context.Background(), MergeRequest{APIKey: "bad", Model: "a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidAPIKey))
	assert.Equal(t, http.StatusUnauthorized, apperrors.HTTPStatusCode(err))
	assert.Equal(t, "Failed to call the language model", apperrors.Message(err))
	assert.Equal(t, "Invalid or expired API key. Please check your API key.", apperrors.Details(err))
	assert.Equal(t, []string{"a"}, fake.called())
}

func TestRateLimitIsNormalized(t *testing.T) {
	limited := fmt.Errorf("%w: 429", apperrors.ErrRateLimited)
	fake := &scripted{errs: map[string]error{"a": limited, "b": limited}}
	c := NewComposer(fake, testOptions("b"))

	_, err := c.MergeResume(context.Background(), MergeRequest{APIKey: "k", Model: "a"})
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, apperrors.HTTPStatusCode(err))
	assert.Equal(t, "API rate limit exceeded. Please try again later.", apperrors.Details(err))
	assert.Equal(t, []string{"a", "b"}, fake.called())
}

func TestUpstreamErrorCarriesDetails(t *testing.T) {
	fake := &scripted{errs: map[string]error{"a": fmt.Errorf("%w: server exploded", apperrors.ErrUpstream)}}
	c := NewComposer(fake, testOptions())

	_, err := c.EditElement(context.Background(), EditRequest{APIKey: "k", Model: "a"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, apperrors.HTTPStatusCode(err))
	assert.Contains(t, apperrors.Details(err), "server exploded")
}

func TestNonHTMLReplyIsRejected(t *testing.T) {
	fake := &scripted{replies: map[string]string{"a": "Sure! Here is your resume."}}
	c := NewComposer(fake, testOptions())

	_, err := c.MergeResume(context.Background(), MergeRequest{APIKey: "k", Model: "a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidResponse))
	assert.Equal(t, "Invalid response from AI", apperrors.Message(err))
	assert.Equal(t, "The AI did not return valid HTML content", apperrors.Details(err))
}

func TestRetriesTransientFailure(t *testing.T) {
	fake := &flaky{failures: 1}
	opts := testOptions()
	opts.Retry.MaxAttempts = 2
	c := NewComposer(fake, opts)

	out, err := c.MergeResume(context.Background(), MergeRequest{APIKey: "k", Model: "a"})
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", out.HTML)
	assert.Equal(t, 2, fake.calls)
}

func TestRetriesAreCounted(t *testing.T) {
	fake := &flaky{failures: 1}
	opts := testOptions()
	opts.Retry.MaxAttempts = 2
	opts.Metrics = metrics.New(prometheus.NewRegistry())
	c := NewComposer(fake, opts)

	_, err := c.MergeResume(context.Background(), MergeRequest{APIKey: "k", Model: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.LLMRetriesTotal.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.LLMRequestsTotal.WithLabelValues("a", "success")))
}

func TestReadyFailsWhenEveryBreakerIsOpen(t *testing.T) {
	fake := &scripted{errs: map[string]error{
		"a": fmt.Errorf("%w: 500", apperrors.ErrUpstream),
		"b": fmt.Errorf("%w: 401", apperrors.ErrInvalidAPIKey),
	}}
	opts := testOptions()
	opts.Breaker.FailureThreshold = 1
	c := NewComposer(fake, opts)
	require.NoError(t, c.Ready(context.Background()))

	_, err := c.MergeResume(context.Background(), MergeRequest{APIKey: "bad", Model: "b"})
	require.Error(t, err)
	require.NoError(t, c.Ready(context.Background()), "a rejected key is not a model outage")

	_, err = c.MergeResume(context.Background(), MergeRequest{APIKey: "k", Model: "a"})
	require.Error(t, err)

	snaps := c.Breakers()
	require.Len(t, snaps, 2)
	assert.Equal(t, "llm:a", snaps[0].Name)
	assert.Equal(t, "open", snaps[0].State)
	assert.Equal(t, "closed", snaps[1].State)
	require.NoError(t, c.Ready(context.Background()))

	_ = c.breaker("b").Execute(func() error { return errors.New("down") })
	err = c.Ready(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm:a, llm:b")

	_, err = c.MergeResume(context.Background(), MergeRequest{APIKey: "k", Model: "a"})
	assert.Equal(t, http.StatusBadGateway, apperrors.HTTPStatusCode(err))
	assert.Len(t, fake.called(), 2)
}

func TestEditElementPrompt(t *testing.T) {
	fake := &scripted{}
	c := NewComposer(fake, testOptions())

	_, err := c.EditElement(context.Background(), EditRequest{
		APIKey:       "k",
		Model:        "a",
		DocumentHTML: "<h1>Old</h1>",
		Selector:     `h1:contains("Old")`,
		Instruction:  "make it New",
	})
	require.NoError(t, err)
	assert.Equal(t, editSystem, fake.last.System)
	assert.Contains(t, fake.last.Prompt, `h1:contains("Old")`)
	assert.Contains(t, fake.last.Prompt, "make it New")
	assert.Contains(t, fake.last.Prompt, "<h1>Old</h1>")
}

func TestEmptyModelChain(t *testing.T) {
	c := NewComposer(&scripted{}, testOptions())
	_, err := c.MergeResume(context.Background(), MergeRequest{APIKey: "k"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatusCode(err))
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *mapCache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (string, error)) (string, bool, error) {
	m.mu.Lock()
	if v, ok := m.data[key]; ok {
		m.mu.Unlock()
		return v, true, nil
	}
	m.mu.Unlock()
	v, err := compute(ctx)
	if err != nil {
		return "", false, err
	}
	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()
	return v, false, nil
}

func TestCachedCompletion(t *testing.T) {
	fake := &scripted{}
	opts := testOptions()
	opts.Cache = &mapCache{data: map[string]string{}}
	opts.CacheKey = func(parts ...string) string { return fmt.Sprint(parts) }
	c := NewComposer(fake, opts)

	req := MergeRequest{APIKey: "k", Model: "a", TemplateHTML: "<p/>", ResumeText: "r"}
	first, err := c.MergeResume(context.Background(), req)
	require.NoError(t, err)
	second, err := c.MergeResume(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.HTML, second.HTML)
	assert.Len(t, fake.called(), 1)

	req.APIKey = "other"
	_, err = c.MergeResume(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, fake.called(), 2)
}

func TestCachedCompletionKeepsFallbackModel(t *testing.T) {
	fake := &scripted{errs: map[string]error{"a": errors.New("upstream hiccup")}}
	opts := testOptions("b")
	opts.Cache = &mapCache{data: map[string]string{}}
	opts.CacheKey = func(parts ...string) string { return fmt.Sprint(parts) }
	c := NewComposer(fake, opts)

	req := MergeRequest{APIKey: "k", Model: "a", TemplateHTML: "<p/>", ResumeText: "r"}
	first, err := c.MergeResume(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "b", first.Model)

	second, err := c.MergeResume(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "b", second.Model)
	assert.Equal(t, "<html><body>b</body></html>", second.HTML)
	assert.Equal(t, []string{"a", "b"}, fake.called())
}

func TestDecodeResultAcceptsBareHTML(t *testing.T) {
	assert.Equal(t, cachedResult{Model: "a", HTML: "<html>old</html>"}, decodeResult("<html>old</html>", "a"))
	assert.Equal(t, cachedResult{Model: "b", HTML: "<p/>"}, decodeResult(`{"model":"b","html":"<p/>"}`, "a"))
}

type flaky struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flaky) Name() string { return "flaky" }

func (f *flaky) Complete(context.Context, Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return "", fmt.Errorf("%w: 503", apperrors.ErrUpstream)
	}
	return "<html>ok</html>", nil
}
