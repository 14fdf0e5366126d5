package auth

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tenauth/tenauth/internal/store"
)

// run executes a store operation with an enforced timeout, retrying once with
// a short backoff when the store is unavailable. All other errors are
// permanent and surface immediately.
func run[T any](ctx context.Context, timeout, retryInterval time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		opCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		v, err := op(opCtx)
		if err != nil && !errors.Is(err, store.ErrStoreUnavailable) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(retryInterval)),
		backoff.WithMaxTries(2),
	)
}

// runVoid is run for operations that return only an error.
func runVoid(ctx context.Context, timeout, retryInterval time.Duration, op func(ctx context.Context) error) error {
	_, err := run(ctx, timeout, retryInterval, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
