package workflow

import (
	"go.temporal.io/sdk/testsuite"

	"github.com/edvin/entitlements/internal/activity"
)

// registerActivities gives the test environment the activity signatures so
// mocked arguments and results are (de)serialized with the right types.
func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivity(&activity.PlanChange{})
	env.RegisterActivity(&activity.Lifecycle{})
}
