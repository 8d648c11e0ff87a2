package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/tracing"
)

// Cache memoizes completed HTML. See internal/cache.ResultCache.
type Cache interface {
	GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (string, error)) (string, bool, error)
}

// KeyFunc derives a cache key from its parts.
type KeyFunc func(parts ...string) string

// Options configures a Composer.
type Options struct {
	FallbackModels []string
	AttemptTimeout time.Duration
	Retry          resilience.RetryConfig
	Breaker        resilience.CircuitBreakerConfig
	Cache          Cache
	CacheKey       KeyFunc
	Metrics        *metrics.Metrics
}

// Completion is the cleaned HTML produced by a model.
type Completion struct {
	HTML   string
	Model  string
	Cached bool
}

// MergeRequest asks for a template to be filled with resume content.
type MergeRequest struct {
	APIKey       string
	Model        string
	TemplateHTML string
	ResumeText   string
}

// EditRequest asks for one element of a document to be changed.
type EditRequest struct {
	APIKey       string
	Model        string
	DocumentHTML string
	Selector     string
	Instruction  string
}

// Composer runs prompts through a Completer, walking the model chain until
// one model returns usable HTML.
type Composer struct {
	completer Completer
	opts      Options

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

// NewComposer returns a Composer using completer.
func NewComposer(completer Completer, opts Options) *Composer {
	return &Composer{
		completer: completer,
		opts:      opts,
		breakers:  make(map[string]*resilience.CircuitBreaker),
	}
}

// MergeResume fills the template with the resume text.
func (c *Composer) MergeResume(ctx context.Context, req MergeRequest) (*Completion, error) {
	return c.run(ctx, "merge", req.APIKey, req.Model, mergeSystem, mergePrompt(req.TemplateHTML, req.ResumeText))
}

// EditElement applies an instruction to the element matching the selector
// and returns the whole updated document.
func (c *Composer) EditElement(ctx context.Context, req EditRequest) (*Completion, error) {
	return c.run(ctx, "edit", req.APIKey, req.Model, editSystem, editPrompt(req.DocumentHTML, req.Selector, req.Instruction))
}

func (c *Composer) run(ctx context.Context, op, apiKey, model, system, prompt string) (*Completion, error) {
	chain := ModelChain(model, c.opts.FallbackModels)
	if len(chain) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "A model is required")
	}

	ctx, span := tracing.StartChildSpan(ctx, "llm."+op)
	defer span.End()
	span.SetAttr("provider", c.completer.Name())
	span.SetAttr("models", len(chain))

	req := Request{APIKey: apiKey, System: system, Prompt: prompt}
	var (
		result cachedResult
		cached bool
		err    error
	)
	if c.opts.Cache != nil && c.opts.CacheKey != nil {
		key := c.opts.CacheKey(op, c.completer.Name(), logger.Fingerprint(apiKey), chain[0], system, prompt)
		var raw string
		raw, cached, err = c.opts.Cache.GetOrCompute(ctx, key, func(ctx context.Context) (string, error) {
			html, model, err := c.walk(ctx, chain, req)
			if err != nil {
				return "", err
			}
			return encodeResult(cachedResult{Model: model, HTML: html})
		})
		if err == nil {
			result = decodeResult(raw, chain[0])
		}
	} else {
		result.HTML, result.Model, err = c.walk(ctx, chain, req)
	}
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetAttr("model", result.Model)
	span.SetAttr("cached", cached)
	return &Completion{HTML: result.HTML, Model: result.Model, Cached: cached}, nil
}

// cachedResult is what the cache stores, so hits and coalesced callers
// report the model that actually produced the HTML.
type cachedResult struct {
	Model string `json:"model"`
	HTML  string `json:"html"`
}

func encodeResult(r cachedResult) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encoding completion: %w", err)
	}
	return string(data), nil
}

// decodeResult reads a cached value. Entries written before the model was
// stored hold bare HTML and are credited to fallback.
func decodeResult(raw, fallback string) cachedResult {
	var r cachedResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil || r.HTML == "" {
		return cachedResult{Model: fallback, HTML: raw}
	}
	if r.Model == "" {
		r.Model = fallback
	}
	return r
}

// walk tries each model in turn. An invalid key ends the walk at once; any
// other failure moves on to the next model.
func (c *Composer) walk(ctx context.Context, chain []string, req Request) (string, string, error) {
	log := logger.FromContext(ctx).With("component", "llm-composer")
	var lastErr error
	for _, model := range chain {
		if err := ctx.Err(); err != nil {
			return "", "", normalize(fmt.Errorf("%w: %v", apperrors.ErrTimeout, err))
		}
		req.Model = model
		start := time.Now()
		html, err := c.attempt(ctx, req)
		c.observe(model, start, err)
		if err == nil {
			log.Info("model succeeded", "model", model, "latency_ms", time.Since(start).Milliseconds())
			return html, model, nil
		}
		lastErr = err
		log.Warn("model failed", "model", model, "error", err)
		if errors.Is(err, apperrors.ErrInvalidAPIKey) {
			break
		}
	}
	return "", "", normalize(lastErr)
}

// attempt runs one model behind its breaker, with retries and a per-try
// timeout, and validates the reply.
func (c *Composer) attempt(ctx context.Context, req Request) (string, error) {
	retry := c.opts.Retry
	if c.opts.Metrics != nil {
		retries := c.opts.Metrics.LLMRetriesTotal.WithLabelValues(req.Model)
		retry.OnRetry = func(int, error, time.Duration) { retries.Inc() }
	}
	var html string
	err := c.breaker(req.Model).ExecuteContext(ctx, func(ctx context.Context) error {
		var err error
		html, err = resilience.RetryValue(ctx, "llm:"+req.Model, retry, func() (string, error) {
			reply, err := resilience.Timeout(ctx, c.opts.AttemptTimeout, "llm:"+req.Model, func(ctx context.Context) (string, error) {
				return c.completer.Complete(ctx, req)
			})
			if err != nil {
				if errors.Is(err, apperrors.ErrInvalidAPIKey) || errors.Is(err, ErrModelUnavailable) {
					return "", resilience.Permanent(err)
				}
				return "", err
			}
			cleaned, err := CleanHTML(reply)
			if err != nil {
				return "", resilience.Permanent(err)
			}
			return cleaned, nil
		})
		return err
	})
	return html, err
}

// Breakers reports the state of every model breaker created so far.
func (c *Composer) Breakers() []resilience.BreakerSnapshot {
	c.mu.Lock()
	models := make([]string, 0, len(c.breakers))
	for m := range c.breakers {
		models = append(models, m)
	}
	c.mu.Unlock()
	sort.Strings(models)

	out := make([]resilience.BreakerSnapshot, 0, len(models))
	for _, m := range models {
		out = append(out, c.breaker(m).Snapshot())
	}
	return out
}

// Ready fails only when every known model's breaker is open.
func (c *Composer) Ready(context.Context) error {
	snaps := c.Breakers()
	if len(snaps) == 0 {
		return nil
	}
	open := make([]string, 0, len(snaps))
	for _, s := range snaps {
		if s.State != resilience.StateOpen.String() {
			return nil
		}
		open = append(open, s.Name)
	}
	return fmt.Errorf("all model circuits open: %s", strings.Join(open, ", "))
}

func (c *Composer) breaker(model string) *resilience.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[model]; ok {
		return cb
	}
	cfg := c.opts.Breaker
	// A bad key or a bad reply says nothing about the model's health.
	cfg.IsFailure = func(err error) bool {
		return !errors.Is(err, apperrors.ErrInvalidAPIKey) && !errors.Is(err, apperrors.ErrInvalidResponse)
	}
	if c.opts.Metrics != nil {
		gauge := c.opts.Metrics.CircuitBreakerState
		cfg.OnStateChange = func(name string, to resilience.State) {
			gauge.WithLabelValues(name).Set(float64(to))
		}
	}
	cb := resilience.NewCircuitBreaker("llm:"+model, cfg)
	c.breakers[model] = cb
	return cb
}

func (c *Composer) observe(model string, start time.Time, err error) {
	if c.opts.Metrics == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrInvalidAPIKey):
		status = "invalid_key"
	case errors.Is(err, apperrors.ErrRateLimited):
		status = "rate_limited"
	case errors.Is(err, resilience.ErrCircuitOpen):
		status = "circuit_open"
	case errors.Is(err, apperrors.ErrInvalidResponse):
		status = "invalid_response"
	default:
		status = "error"
	}
	c.opts.Metrics.LLMRequestsTotal.WithLabelValues(model, status).Inc()
	c.opts.Metrics.LLMLatency.WithLabelValues(model).Observe(time.Since(start).Seconds())
}

// normalize turns the last model failure into a user-displayable error.
func normalize(err error) error {
	const title = "Failed to call the language model"
	switch {
	case err == nil:
		return apperrors.New(apperrors.ErrUpstream, http.StatusBadGateway, title).
			WithDetails("All model attempts failed, but no specific error was captured")
	case errors.Is(err, apperrors.ErrInvalidAPIKey):
		return apperrors.New(apperrors.ErrInvalidAPIKey, http.StatusUnauthorized, title).
			WithDetails("Invalid or expired API key. Please check your API key.")
	case errors.Is(err, apperrors.ErrRateLimited):
		return apperrors.New(apperrors.ErrRateLimited, http.StatusTooManyRequests, title).
			WithDetails("API rate limit exceeded. Please try again later.")
	case errors.Is(err, apperrors.ErrInvalidResponse):
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return errNotHTML
	case errors.Is(err, apperrors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperrors.New(apperrors.ErrTimeout, http.StatusGatewayTimeout, title).
			WithDetails("The language model did not respond in time.")
	default:
		return apperrors.New(apperrors.ErrUpstream, http.StatusBadGateway, title).WithDetails(err.Error())
	}
}
