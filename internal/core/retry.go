package core

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/edvin/entitlements/internal/metrics"
	"github.com/edvin/entitlements/internal/model"
)

const readRetryDelay = 50 * time.Millisecond

// readWithRetry runs an idempotent read, retrying it once when the store
// reports a transient failure. Mutations never go through here.
func readWithRetry[T any](ctx context.Context, read func() (T, error)) (T, error) {
	attempt := 0
	op := func() (T, error) {
		if attempt > 0 {
			metrics.StoreRetries.Inc()
		}
		attempt++
		v, err := read()
		if err != nil && !errors.Is(err, model.ErrTransientStore) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(readRetryDelay)),
		backoff.WithMaxTries(2),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return v, err
}
