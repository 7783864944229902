package activity

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/temporal"

	"github.com/edvin/entitlements/internal/model"
)

// PlanChanges is the lifecycle surface the plan change activities drive.
type PlanChanges interface {
	ConfirmPayment(ctx context.Context, ev model.PaymentConfirmation) (*model.Subscription, error)
	ExpirePlanChange(ctx context.Context, changeID string) (*model.PlanChange, error)
}

// PlanChange contains the activities of PlanChangeWorkflow.
type PlanChange struct {
	lifecycle PlanChanges
	logger    zerolog.Logger
}

func NewPlanChange(lifecycle PlanChanges, logger zerolog.Logger) *PlanChange {
	return &PlanChange{lifecycle: lifecycle, logger: logger.With().Str("activity", "plan_change").Logger()}
}

// ConfirmPlanChangePayment applies a payment confirmation delivered to the
// workflow. Confirmations are idempotent on their provider reference, so a
// retried attempt that already committed is a no-op.
func (a *PlanChange) ConfirmPlanChangePayment(ctx context.Context, ev model.PaymentConfirmation) error {
	ctx = a.logger.WithContext(ctx)
	if _, err := a.lifecycle.ConfirmPayment(ctx, ev); err != nil {
		return classify(err)
	}
	a.logger.Info().
		Str("subscriber_id", ev.SubscriberID).
		Str("provider_reference", ev.ProviderReference).
		Str("outcome", string(ev.Outcome)).
		Msg("plan change payment confirmed")
	return nil
}

// ExpirePlanChange drops a change whose confirmation did not arrive in time.
// A change already resolved by another path is left alone.
func (a *PlanChange) ExpirePlanChange(ctx context.Context, changeID string) error {
	_, err := a.lifecycle.ExpirePlanChange(a.logger.WithContext(ctx), changeID)
	if errors.Is(err, model.ErrConflict) {
		a.logger.Info().Str("plan_change_id", changeID).Msg("plan change already resolved")
		return nil
	}
	return classify(err)
}

// classify marks errors a retry cannot fix as non-retryable. Transient store
// failures and write conflicts stay retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var errType string
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		errType = "INVALID_INPUT"
	case errors.Is(err, model.ErrInvalidTier):
		errType = "INVALID_TIER"
	case errors.Is(err, model.ErrNotFound):
		errType = "NOT_FOUND"
	case errors.Is(err, model.ErrNotSubscribed):
		errType = "NOT_SUBSCRIBED"
	default:
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), errType, err)
}
