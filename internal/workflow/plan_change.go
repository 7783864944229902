package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/entitlements/internal/model"
)

const defaultConfirmationTimeout = 30 * time.Minute

func engineActivityCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    5,
			InitialInterval:    time.Second,
			MaximumInterval:    30 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})
}

// PlanChangeWorkflow waits for the payment confirmation of one plan change.
// A confirmation signal is applied through ConfirmPlanChangePayment; if none
// arrives before the timeout the change is expired and the subscription keeps
// its current tier.
func PlanChangeWorkflow(ctx workflow.Context, params model.PlanChangeWorkflowParams) error {
	logger := workflow.GetLogger(ctx)
	ctx = engineActivityCtx(ctx)

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultConfirmationTimeout
	}

	signalCh := workflow.GetSignalChannel(ctx, model.PaymentConfirmationSignal)
	timerCtx, cancelTimer := workflow.WithCancel(ctx)

	var ev model.PaymentConfirmation
	gotSignal := false

	selector := workflow.NewSelector(ctx)
	selector.AddReceive(signalCh, func(c workflow.ReceiveChannel, _ bool) {
		c.Receive(ctx, &ev)
		gotSignal = true
	})
	selector.AddFuture(workflow.NewTimer(timerCtx, timeout), func(workflow.Future) {})
	selector.Select(ctx)

	if !gotSignal {
		logger.Info("plan change confirmation timed out", "change_id", params.ChangeID)
		if err := workflow.ExecuteActivity(ctx, "ExpirePlanChange", params.ChangeID).Get(ctx, nil); err != nil {
			return fmt.Errorf("expire plan change %s: %w", params.ChangeID, err)
		}
		return nil
	}
	cancelTimer()

	if ev.SubscriberID != params.SubscriberID {
		logger.Warn("confirmation for another subscriber", "change_id", params.ChangeID, "subscriber_id", ev.SubscriberID)
	}
	if err := workflow.ExecuteActivity(ctx, "ConfirmPlanChangePayment", ev).Get(ctx, nil); err != nil {
		return fmt.Errorf("confirm plan change %s: %w", params.ChangeID, err)
	}
	return nil
}
