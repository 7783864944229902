package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/entitlements/internal/model"
)

func TestConsumeTrial_ConcurrentSingleUnit(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	_, _, err := h.svcs.Lifecycle.StartTrial(ctx, "stu-1", model.SubscriberStudent)
	require.NoError(t, err)

	var ok, exhausted atomic.Int32
	var g errgroup.Group
	for range 20 {
		g.Go(func() error {
			_, err := h.svcs.Usage.ConsumeTrial(ctx, "stu-1")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, model.ErrQuotaExhausted):
				exhausted.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(19), exhausted.Load())

	sub, err := h.svcs.Lifecycle.Get(ctx, "stu-1")
	require.NoError(t, err)
	assert.Zero(t, sub.RemainingQuota)
	assert.Equal(t, model.StatusCancelled, sub.Status)
}

func TestConsumeTrial_NoSubscription(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svcs.Usage.ConsumeTrial(context.Background(), "nobody")
	assert.ErrorIs(t, err, model.ErrNotSubscribed)
}

func TestConsumeQuota_PaidSubscription(t *testing.T) {
	h := newHarness(t, nil)
	sub := h.activate(t, "stu-1", "basic", "pay_1")

	_, err := h.svcs.Usage.ConsumeQuota(context.Background(), sub.ID)
	assert.ErrorIs(t, err, model.ErrQuotaExhausted)
}

func TestConsumeQuota_ExpiredTrial(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sub, _, err := h.svcs.Lifecycle.StartTrial(ctx, "stu-1", model.SubscriberStudent)
	require.NoError(t, err)
	h.clock.Advance(8 * day)

	_, err = h.svcs.Usage.ConsumeQuota(ctx, sub.ID)
	assert.ErrorIs(t, err, model.ErrNotSubscribed)
}

func TestConfirmJoin(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	_, _, err := h.svcs.Lifecycle.StartTrial(ctx, "stu-1", model.SubscriberStudent)
	require.NoError(t, err)

	res, err := h.svcs.Usage.ConfirmJoin(ctx, model.JoinConfirmation{SubscriberID: "stu-1", BenefitSessionID: "live-1", Attended: false})
	require.NoError(t, err)
	assert.Nil(t, res.Subscription, "no-show consumes nothing")
	require.NotNil(t, res.Usage.SubscriptionID)

	res, err = h.svcs.Usage.ConfirmJoin(ctx, model.JoinConfirmation{SubscriberID: "stu-1", BenefitSessionID: "live-1", Attended: true})
	require.NoError(t, err)
	require.NotNil(t, res.Subscription)
	assert.Zero(t, res.Subscription.RemainingQuota)

	recs, more, err := h.svcs.Usage.ListAttendance(ctx, "stu-1", 10, "")
	require.NoError(t, err)
	assert.False(t, more)
	assert.Len(t, recs, 2)
}

func TestConfirmJoin_PaidSubscriberKeepsQuota(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t, "stu-1", "premium", "pay_1")

	res, err := h.svcs.Usage.ConfirmJoin(context.Background(), model.JoinConfirmation{SubscriberID: "stu-1", BenefitSessionID: "live-1", Attended: true})
	require.NoError(t, err)
	assert.Nil(t, res.Subscription)
	assert.True(t, res.Usage.Attended)
}

func TestRecordAttendance_WithoutSubscription(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	rec, err := h.svcs.Usage.RecordAttendance(ctx, "guest-1", "live-1", true)
	require.NoError(t, err)
	assert.Nil(t, rec.SubscriptionID)

	_, err = h.svcs.Usage.RecordAttendance(ctx, "guest-1", "", true)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestListAttendance_Pagination(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	for range 3 {
		_, err := h.svcs.Usage.RecordAttendance(ctx, "stu-1", "course-1", true)
		require.NoError(t, err)
	}

	page1, more, err := h.svcs.Usage.ListAttendance(ctx, "stu-1", 2, "")
	require.NoError(t, err)
	assert.True(t, more)
	require.Len(t, page1, 2)

	page2, more, err := h.svcs.Usage.ListAttendance(ctx, "stu-1", 2, page1[1].ID)
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, page2, 1)
	assert.NotEqual(t, page1[0].ID, page2[0].ID)
	assert.NotEqual(t, page1[1].ID, page2[0].ID)
}
