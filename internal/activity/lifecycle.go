package activity

import (
	"context"

	"github.com/rs/zerolog"
)

// LapsedExpirer expires subscriptions whose period has ended.
type LapsedExpirer interface {
	ExpireLapsed(ctx context.Context, limit int) (int, error)
}

// Lifecycle contains the scheduled subscription maintenance activities.
type Lifecycle struct {
	lifecycle LapsedExpirer
	logger    zerolog.Logger
}

func NewLifecycle(lifecycle LapsedExpirer, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{lifecycle: lifecycle, logger: logger.With().Str("activity", "lifecycle").Logger()}
}

// ExpireLapsedSubscriptions expires one batch and returns its size.
func (a *Lifecycle) ExpireLapsedSubscriptions(ctx context.Context, limit int) (int, error) {
	n, err := a.lifecycle.ExpireLapsed(a.logger.WithContext(ctx), limit)
	return n, classify(err)
}
