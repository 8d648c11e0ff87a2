package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(window time.Duration) (*Limiter, *clock) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	l := New(window)
	l.now = c.now
	return l, c
}

func TestAllowUntilExhausted(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("k", 3), "request %d", i)
	}
	ok, wait := l.Reserve("k", 3)
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 21*time.Second)
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("a", 1))
	assert.False(t, l.Allow("a", 1))
	assert.True(t, l.Allow("b", 1))
}

func TestRefill(t *testing.T) {
	l, c := newTestLimiter(time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("k", 2))
	assert.True(t, l.Allow("k", 2))
	assert.False(t, l.Allow("k", 2))

	c.advance(31 * time.Second)
	assert.True(t, l.Allow("k", 2))
	assert.False(t, l.Allow("k", 2))
}

func TestResetAndSweep(t *testing.T) {
	l, c := newTestLimiter(time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("a", 1))
	assert.False(t, l.Allow("a", 1))
	l.Reset("a")
	assert.True(t, l.Allow("a", 1))

	assert.True(t, l.Allow("b", 1))
	assert.Equal(t, 2, l.Len())
	c.advance(3 * time.Minute)
	l.sweep()
	assert.Equal(t, 0, l.Len())
}

func TestNonPositiveLimitRefuses(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)
	defer l.Stop()
	assert.False(t, l.Allow("k", 0))
}

func TestStopIsIdempotent(t *testing.T) {
	l := New(time.Second)
	l.Stop()
	l.Stop()
}

func TestChangedLimitStartsFreshBucket(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("k", 1))
	assert.False(t, l.Allow("k", 1))
	assert.True(t, l.Allow("k", 5))
	assert.Equal(t, 1, l.Len())
}
