// Package resilience guards calls to slow or flaky dependencies (model
// providers, PDF engines) with circuit breakers, backoff retries and
// per-call deadlines.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling through while a breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig controls when a breaker trips and how it recovers.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	// OnStateChange runs with the breaker locked after every transition and
	// must not call back into it.
	OnStateChange func(name string, to State)
	// IsFailure decides whether an error counts against the breaker. Nil
	// counts every error.
	IsFailure func(err error) bool
}

// BreakerSnapshot is a point-in-time view of a breaker.
type BreakerSnapshot struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	OpenUntil           time.Time `json:"open_until,omitempty"`
}

// CircuitBreaker opens after FailureThreshold consecutive failures, rejects
// calls for ResetTimeout, then lets HalfOpenMaxRequests probes through.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu               sync.Mutex
	state            State
	failures         int
	openedAt         time.Time
	halfOpenInFlight int
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
		now:    time.Now,
	}
}

// Execute runs fn if the breaker allows it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	return cb.ExecuteContext(context.Background(), func(context.Context) error { return fn() })
}

// ExecuteContext is Execute for context-aware calls. A call that fails
// because ctx itself was cancelled is not held against the dependency.
func (cb *CircuitBreaker) ExecuteContext(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.acquire(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.release(cb.counts(ctx, err))
	return err
}

func (cb *CircuitBreaker) counts(ctx context.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return false
	case cb.cfg.IsFailure != nil:
		return cb.cfg.IsFailure(err)
	default:
		return true
	}
}

func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		wait := cb.cfg.ResetTimeout - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.transition(StateHalfOpen)
		cb.halfOpenInFlight = 1
		cb.logger.Info("circuit half-open, probing", "after", cb.cfg.ResetTimeout)
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.cfg.HalfOpenMaxRequests {
			return fmt.Errorf("%w: %s (probe in flight)", ErrCircuitOpen, cb.name)
		}
		cb.halfOpenInFlight++
	}
	return nil
}

func (cb *CircuitBreaker) release(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !failed {
		if cb.state == StateHalfOpen {
			cb.logger.Info("circuit closed, dependency recovered")
		}
		cb.reset()
		return
	}
	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		cb.trip()
		cb.logger.Warn("circuit re-opened, probe failed")
	case cb.state == StateClosed && cb.failures >= cb.cfg.FailureThreshold:
		cb.trip()
		cb.logger.Warn("circuit opened", "consecutive_failures", cb.failures, "threshold", cb.cfg.FailureThreshold)
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.halfOpenInFlight = 0
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) reset() {
	cb.failures = 0
	cb.halfOpenInFlight = 0
	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) transition(to State) {
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot reports state, failure count and, while open, when the next
// probe is allowed.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s := BreakerSnapshot{
		Name:                cb.name,
		State:               cb.state.String(),
		ConsecutiveFailures: cb.failures,
	}
	if cb.state == StateOpen {
		s.OpenUntil = cb.openedAt.Add(cb.cfg.ResetTimeout)
	}
	return s
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.reset()
	cb.logger.Info("circuit manually reset")
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}
