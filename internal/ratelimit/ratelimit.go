// Package ratelimit throttles callers with one token bucket per key. Each
// key may spend limit requests per window, refilled continuously.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepEvery is how often idle buckets are dropped.
const sweepEvery = 5 * time.Minute

type bucket struct {
	lim      *rate.Limiter
	limit    int
	lastSeen time.Time
}

// Limiter holds the buckets. Buckets idle for two windows are forgotten.
type Limiter struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

// New starts a limiter and its background sweep. Call Stop when done.
func New(window time.Duration) *Limiter {
	l := &Limiter{
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow spends one token from key's bucket if there is one.
func (l *Limiter) Allow(key string, limit int) bool {
	ok, _ := l.Reserve(key, limit)
	return ok
}

// Reserve is Allow that also says, on refusal, how long until a token is
// free. A non-positive limit refuses everything.
func (l *Limiter) Reserve(key string, limit int) (bool, time.Duration) {
	if limit <= 0 {
		return false, l.window
	}
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok || b.limit != limit {
		every := rate.Every(l.window / time.Duration(limit))
		b = &bucket{lim: rate.NewLimiter(every, limit), limit: limit}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, l.window
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Reset forgets key's bucket.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// Len is the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop ends the sweep. Safe to call twice.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) sweepLoop() {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) sweep() {
	cutoff := l.now().Add(-2 * l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
