package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "flaky", fastRetry(3), func() error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "broken", fastRetry(2), func() error {
		calls++
		return errBoom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "auth", fastRetry(5), func() error {
		calls++
		return Permanent(errBoom)
	})
	assert.Equal(t, 1, calls)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, errBoom)
	assert.Nil(t, Permanent(nil))
}

func TestRetryValueReportsEachRetry(t *testing.T) {
	cfg := fastRetry(3)
	var retried []int
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		assert.ErrorIs(t, err, errBoom)
		assert.Positive(t, delay)
		retried = append(retried, attempt)
	}
	calls := 0
	got, err := RetryValue(context.Background(), "flaky", cfg, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errBoom
		}
		return "<html>ok</html>", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", got)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetrySingleAttemptReturnsBareError(t *testing.T) {
	err := Retry(context.Background(), "once", fastRetry(1), func() error { return errBoom })
	assert.Same(t, errBoom, err)
}

func TestRetryAbortsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, "cancelled", RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour}, func() error {
		calls++
		cancel()
		return errBoom
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

// fakeClock lets breaker tests move time without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	cb := NewCircuitBreaker("llm:gpt-4", cfg)
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var transitions []State
	cb, clock := newTestBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange:    func(_ string, to State) { transitions = append(transitions, to) },
	})

	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateClosed, cb.State())
	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.State())

	snap := cb.Snapshot()
	assert.Equal(t, "open", snap.State)
	assert.Equal(t, 2, snap.ConsecutiveFailures)
	assert.Equal(t, clock.t.Add(time.Minute), snap.OpenUntil)

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	clock.advance(time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
	assert.True(t, cb.Snapshot().OpenUntil.IsZero())
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	_ = cb.Execute(func() error { return errBoom })
	require.Equal(t, StateOpen, cb.State())

	clock.advance(time.Second)
	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Snapshot().ConsecutiveFailures)
}

func TestCircuitBreakerIgnoresNonFailures(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !IsPermanent(err) },
	})
	err := cb.Execute(func() error { return Permanent(errBoom) })
	assert.Error(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresCallerCancellation(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())

	err := cb.ExecuteContext(ctx, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())

	called := false
	err = cb.ExecuteContext(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestTimeout(t *testing.T) {
	_, err := Timeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "slow")

	v, err := Timeout(context.Background(), time.Second, "fast", func(ctx context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = Timeout(context.Background(), 0, "unbounded", func(ctx context.Context) (int, error) {
		_, ok := ctx.Deadline()
		assert.False(t, ok)
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestTimeoutPassesParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Timeout(ctx, time.Second, "cancelled", func(ctx context.Context) (string, error) {
		return "", ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}
