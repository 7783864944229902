package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/entitlements/internal/model"
)

// PlanChangeService connects upgrades that owe money to the payment
// confirmation flow. With a Temporal client each pending change gets a
// PlanChangeWorkflow that waits for the confirmation signal or times out;
// without one, confirmations are applied synchronously.
type PlanChangeService struct {
	store     Store
	lifecycle *LifecycleService
	tc        temporalclient.Client
	opts      Options
}

func NewPlanChangeService(store Store, lifecycle *LifecycleService, tc temporalclient.Client, opts Options) *PlanChangeService {
	return &PlanChangeService{store: store, lifecycle: lifecycle, tc: tc, opts: opts.withDefaults()}
}

// RequestUpgrade runs Upgrade and starts the payment workflow for a change
// left waiting on payment.
func (s *PlanChangeService) RequestUpgrade(ctx context.Context, req UpgradeRequest) (*UpgradeResult, error) {
	res, err := s.lifecycle.Upgrade(ctx, req)
	if err != nil {
		return nil, err
	}
	if !res.PaymentRequired || s.tc == nil {
		return res, nil
	}

	params := model.PlanChangeWorkflowParams{
		ChangeID:     res.Change.ID,
		SubscriberID: res.Change.SubscriberID,
		Timeout:      s.opts.ConfirmationTimeout,
	}
	wfID := PlanChangeWorkflowID(res.Change.ID)
	if err := startWorkflow(ctx, s.tc, s.opts.TaskQueue, PlanChangeWorkflowName, wfID, params); err != nil {
		// Without a workflow nothing would ever time the change out.
		if _, expErr := s.lifecycle.ExpirePlanChange(ctx, res.Change.ID); expErr != nil {
			zerolog.Ctx(ctx).Error().Err(expErr).Str("plan_change_id", res.Change.ID).Msg("expire orphaned plan change")
		}
		return nil, fmt.Errorf("start plan change workflow %s: %w", wfID, err)
	}
	return res, nil
}

// HandlePaymentConfirmation routes a payment confirmation. When a workflow is
// waiting on the subscriber's pending change the confirmation is delivered as
// a signal and the returned subscription is the pre-change state; otherwise it
// is applied directly.
func (s *PlanChangeService) HandlePaymentConfirmation(ctx context.Context, ev model.PaymentConfirmation) (*model.Subscription, error) {
	if s.tc == nil {
		return s.lifecycle.ConfirmPayment(ctx, ev)
	}

	sub, err := s.lifecycle.lookup(ctx, ev.SubscriberID)
	if err != nil {
		return nil, fmt.Errorf("payment confirmation: %w", err)
	}
	if sub == nil {
		return s.lifecycle.ConfirmPayment(ctx, ev)
	}
	change, err := s.store.GetOpenPlanChange(ctx, sub.ID)
	if errors.Is(err, model.ErrNotFound) || (err == nil && change.Status != model.PlanChangePendingPayment) {
		return s.lifecycle.ConfirmPayment(ctx, ev)
	}
	if err != nil {
		return nil, fmt.Errorf("payment confirmation: %w", err)
	}

	wfID := PlanChangeWorkflowID(change.ID)
	if err := s.tc.SignalWorkflow(ctx, wfID, "", model.PaymentConfirmationSignal, ev); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("workflow_id", wfID).Msg("signal plan change workflow failed, confirming directly")
		return s.lifecycle.ConfirmPayment(ctx, ev)
	}
	zerolog.Ctx(ctx).Info().Str("workflow_id", wfID).Msg("payment confirmation signalled")
	return sub, nil
}

// ExpirePlanChange drops a pending_payment change.
func (s *PlanChangeService) ExpirePlanChange(ctx context.Context, changeID string) (*model.PlanChange, error) {
	return s.lifecycle.ExpirePlanChange(ctx, changeID)
}

// Get returns a plan change by id.
func (s *PlanChangeService) Get(ctx context.Context, id string) (*model.PlanChange, error) {
	return s.lifecycle.GetPlanChange(ctx, id)
}
