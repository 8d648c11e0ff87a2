package resilience

import (
	"context"
	"fmt"
	"time"
)

// Timeout runs fn under a context that expires after d and returns its
// result. fn must return once ctx is done; model clients and exec.Cmd both
// do. When the limit is what stopped fn, the error wraps
// context.DeadlineExceeded and names the operation. A cancelled parent is
// passed through untouched. d <= 0 means no limit.
func Timeout[T any](ctx context.Context, d time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	v, err := fn(tctx)
	if err != nil && ctx.Err() == nil && tctx.Err() != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w (limit %v): %w", name, context.DeadlineExceeded, d, err)
	}
	return v, err
}
