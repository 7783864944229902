package core

import (
	"context"
	"fmt"

	temporalclient "go.temporal.io/sdk/client"
)

// PlanChangeWorkflowName is the registered name of the workflow awaiting a
// plan change payment.
const PlanChangeWorkflowName = "PlanChangeWorkflow"

// workflowID builds a human-readable Temporal workflow ID from a prefix and
// the entity id.
func workflowID(prefix, id string) string {
	return fmt.Sprintf("%s-%s", prefix, id)
}

// PlanChangeWorkflowID is the workflow id tracking one plan change.
func PlanChangeWorkflowID(changeID string) string {
	return workflowID("plan-change", changeID)
}

func startWorkflow(ctx context.Context, tc temporalclient.Client, taskQueue, workflowName, wfID string, arg any) error {
	_, err := tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        wfID,
		TaskQueue: taskQueue,
	}, workflowName, arg)
	return err
}
