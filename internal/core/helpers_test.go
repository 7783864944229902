package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/entitlements/internal/catalog"
	"github.com/edvin/entitlements/internal/model"
	"github.com/edvin/entitlements/internal/store/memory"
)

// t0 starts a 30-day monthly period.
var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const day = 24 * time.Hour

type harness struct {
	svcs  *Services
	store *memory.Store
	clock *testClock
}

func newHarness(t *testing.T, tc temporalclient.Client) *harness {
	t.Helper()
	cat, err := catalog.Load("")
	require.NoError(t, err)

	clock := &testClock{now: t0}
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.UpsertBenefitSession(ctx, &model.BenefitSession{SessionID: "live-1", Category: "live_class"}))
	require.NoError(t, store.UpsertBenefitSession(ctx, &model.BenefitSession{SessionID: "course-1", Category: "recorded_course"}))

	svcs := NewServices(store, cat, tc, Options{Now: clock.Now})
	return &harness{svcs: svcs, store: store, clock: clock}
}

// activate buys plan for subscriberID through a successful checkout payment.
func (h *harness) activate(t *testing.T, subscriberID string, plan model.PlanType, ref string) *model.Subscription {
	t.Helper()
	sub, err := h.svcs.Lifecycle.ConfirmPayment(context.Background(), model.PaymentConfirmation{
		SubscriberID:      subscriberID,
		PlanType:          plan,
		BillingCycle:      model.CycleMonthly,
		Currency:          "usd",
		Outcome:           model.PaymentSuccess,
		ProviderReference: ref,
	})
	require.NoError(t, err)
	require.NotNil(t, sub)
	return sub
}

func (h *harness) billing(t *testing.T, subscriptionID string) []model.BillingEntry {
	t.Helper()
	entries, _, err := h.svcs.Billing.ListBySubscription(context.Background(), subscriptionID, 100, "")
	require.NoError(t, err)
	return entries
}
