package workflow

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"

	"github.com/edvin/entitlements/internal/metrics"
)

// ActivityResultInterceptor counts activity results and types untyped
// activity errors with the activity name so they are told apart in the
// Temporal UI.
type ActivityResultInterceptor struct {
	interceptor.WorkerInterceptorBase
}

func (i *ActivityResultInterceptor) InterceptActivity(
	ctx context.Context,
	next interceptor.ActivityInboundInterceptor,
) interceptor.ActivityInboundInterceptor {
	return &activityResultInterceptor{next: next}
}

type activityResultInterceptor struct {
	interceptor.ActivityInboundInterceptorBase
	next interceptor.ActivityInboundInterceptor
}

func (i *activityResultInterceptor) Init(outbound interceptor.ActivityOutboundInterceptor) error {
	return i.next.Init(outbound)
}

func (i *activityResultInterceptor) ExecuteActivity(
	ctx context.Context,
	in *interceptor.ExecuteActivityInput,
) (any, error) {
	name := activity.GetInfo(ctx).ActivityType.Name
	result, err := i.next.ExecuteActivity(ctx, in)
	if err == nil {
		metrics.ActivityResults.WithLabelValues(name, "ok").Inc()
		return result, nil
	}
	return result, typeActivityError(name, err)
}

func typeActivityError(name string, err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		label := "retryable"
		if appErr.NonRetryable() {
			label = "non_retryable"
		}
		metrics.ActivityResults.WithLabelValues(name, label).Inc()
		return err
	}
	metrics.ActivityResults.WithLabelValues(name, "retryable").Inc()
	return temporal.NewApplicationError(err.Error(), name, err)
}
