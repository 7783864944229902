package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/entitlements/internal/model"
)

func TestCanConsume(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, h *harness)
		session string
		allowed bool
		reason  model.ReasonCode
		trial   bool
	}{
		{
			name:    "no subscription",
			setup:   func(*testing.T, *harness) {},
			session: "live-1",
			reason:  model.ReasonNoSubscription,
		},
		{
			name:    "active trial",
			setup:   startTrial,
			session: "live-1",
			allowed: true,
			trial:   true,
		},
		{
			name: "exhausted trial",
			setup: func(t *testing.T, h *harness) {
				startTrial(t, h)
				_, err := h.svcs.Usage.ConsumeTrial(context.Background(), "stu-1")
				require.NoError(t, err)
			},
			session: "live-1",
			reason:  model.ReasonTrialExhausted,
			trial:   true,
		},
		{
			name: "expired trial",
			setup: func(t *testing.T, h *harness) {
				startTrial(t, h)
				h.clock.Advance(8 * day)
			},
			session: "live-1",
			reason:  model.ReasonPlanExpired,
			trial:   true,
		},
		{
			name:    "paid tier without feature",
			setup:   func(t *testing.T, h *harness) { h.activate(t, "stu-1", "basic", "pay_1") },
			session: "live-1",
			reason:  model.ReasonFeatureNotIncluded,
		},
		{
			name:    "paid tier with feature",
			setup:   func(t *testing.T, h *harness) { h.activate(t, "stu-1", "premium", "pay_1") },
			session: "live-1",
			allowed: true,
		},
		{
			name: "paid period over",
			setup: func(t *testing.T, h *harness) {
				h.activate(t, "stu-1", "premium", "pay_1")
				h.clock.Advance(31 * day)
			},
			session: "live-1",
			reason:  model.ReasonPlanExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			tt.setup(t, h)

			d, err := h.svcs.Entitlement.CanConsume(context.Background(), "stu-1", tt.session)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.reason, d.ReasonCode)
			assert.Equal(t, tt.trial, d.Trial)
			assert.Equal(t, "live_class", d.Category)
		})
	}
}

func TestCanConsume_DoesNotMutate(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	startTrial(t, h)

	for range 3 {
		d, err := h.svcs.Entitlement.CanConsume(ctx, "stu-1", "live-1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	sub, err := h.svcs.Lifecycle.Get(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sub.RemainingQuota)
	assert.Equal(t, int64(1), sub.Version)
}

func TestCanConsume_UnknownSession(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svcs.Entitlement.CanConsume(context.Background(), "stu-1", "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTrialScenario_EndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, created, err := h.svcs.Lifecycle.StartTrial(ctx, "stu-1", model.SubscriberStudent)
	require.NoError(t, err)
	require.True(t, created)

	d, err := h.svcs.Entitlement.CanConsume(ctx, "stu-1", "live-1")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	res, err := h.svcs.Usage.ConfirmJoin(ctx, model.JoinConfirmation{SubscriberID: "stu-1", BenefitSessionID: "live-1", Attended: true})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, res.Subscription.Status)

	d, err = h.svcs.Entitlement.CanConsume(ctx, "stu-1", "live-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, model.ReasonTrialExhausted, d.ReasonCode)

	e, err := h.svcs.Lifecycle.GetTrialEligibility(ctx, "stu-1")
	require.NoError(t, err)
	assert.False(t, e.Eligible)

	_, _, err = h.svcs.Lifecycle.StartTrial(ctx, "stu-1", model.SubscriberStudent)
	assert.ErrorIs(t, err, model.ErrConflict)

	sub := h.activate(t, "stu-1", "premium", "pay_1")
	assert.False(t, sub.IsTrial)
	d, err = h.svcs.Entitlement.CanConsume(ctx, "stu-1", "live-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func startTrial(t *testing.T, h *harness) {
	t.Helper()
	_, _, err := h.svcs.Lifecycle.StartTrial(context.Background(), "stu-1", model.SubscriberStudent)
	require.NoError(t, err)
}
