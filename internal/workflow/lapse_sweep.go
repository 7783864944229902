package workflow

import (
	"fmt"

	"go.temporal.io/sdk/workflow"
)

// DefaultLapseBatch is the page size of ExpireLapsedSubscriptionsWorkflow.
const DefaultLapseBatch = 200

// maxLapseBatches bounds one run; whatever remains is picked up by the next
// scheduled run.
const maxLapseBatches = 50

// ExpireLapsedSubscriptionsWorkflow runs on a cron schedule and expires
// subscriptions whose period ended without renewal, batch by batch.
func ExpireLapsedSubscriptionsWorkflow(ctx workflow.Context, batch int) error {
	logger := workflow.GetLogger(ctx)
	ctx = engineActivityCtx(ctx)
	if batch <= 0 {
		batch = DefaultLapseBatch
	}

	total := 0
	for range maxLapseBatches {
		var n int
		if err := workflow.ExecuteActivity(ctx, "ExpireLapsedSubscriptions", batch).Get(ctx, &n); err != nil {
			return fmt.Errorf("expire lapsed subscriptions: %w", err)
		}
		total += n
		if n < batch {
			break
		}
	}
	logger.Info("lapse sweep finished", "expired", total)
	return nil
}
