package resilience

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
)

// WithTimeout runs fn under a deadline of d and stops waiting once it
// passes, even if fn ignores its context. Missing the deadline yields an
// error matching both context.DeadlineExceeded and pkgerrors.ErrTimeout.
// A non-positive d runs fn unbounded.
func WithTimeout(ctx context.Context, d time.Duration, name string, fn func(ctx context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- fn(callCtx) }()

	select {
	case err := <-result:
		return err
	case <-callCtx.Done():
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: parent context cancelled: %w", name, err)
	}
	return fmt.Errorf("%s: %w after %v: %w", name, context.DeadlineExceeded, d, pkgerrors.ErrTimeout)
}
