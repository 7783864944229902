package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/entitlements/internal/metrics"
	"github.com/edvin/entitlements/internal/model"
	"github.com/edvin/entitlements/internal/platform"
)

// UsageService records attendance and consumes trial quota.
type UsageService struct {
	store Store
	opts  Options
}

func NewUsageService(store Store, opts Options) *UsageService {
	return &UsageService{store: store, opts: opts.withDefaults()}
}

// ConsumeQuota takes one unit from a trial subscription. The last unit
// cancels the trial in the same write.
func (s *UsageService) ConsumeQuota(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	sub, err := s.store.ConsumeQuota(ctx, subscriptionID, s.opts.Now())
	metrics.QuotaConsumptions.WithLabelValues(errorLabel(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("consume quota on %s: %w", subscriptionID, err)
	}
	zerolog.Ctx(ctx).Info().Str("subscription_id", subscriptionID).Int("remaining_quota", sub.RemainingQuota).Msg("quota consumed")
	return sub, nil
}

// ConsumeTrial consumes one unit from the subscriber's trial.
func (s *UsageService) ConsumeTrial(ctx context.Context, subscriberID string) (*model.Subscription, error) {
	sub, err := s.subscription(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("consume trial: %w", err)
	}
	if sub == nil {
		return nil, fmt.Errorf("consume trial for %s: %w", subscriberID, model.ErrNotSubscribed)
	}
	return s.ConsumeQuota(ctx, sub.ID)
}

// RecordAttendance appends an attendance record without touching quota.
func (s *UsageService) RecordAttendance(ctx context.Context, subscriberID, benefitSessionID string, attended bool) (*model.UsageRecord, error) {
	if subscriberID == "" || benefitSessionID == "" {
		return nil, fmt.Errorf("record attendance: subscriber and session required: %w", model.ErrInvalidInput)
	}
	sub, err := s.subscription(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("record attendance: %w", err)
	}

	rec := &model.UsageRecord{
		ID:               platform.NewID(),
		SubscriberID:     subscriberID,
		BenefitSessionID: benefitSessionID,
		Attended:         attended,
		CreatedAt:        s.opts.Now(),
	}
	if sub != nil {
		rec.SubscriptionID = &sub.ID
	}
	if err := s.store.AppendUsage(ctx, rec); err != nil {
		return nil, fmt.Errorf("record attendance for %s: %w", subscriberID, err)
	}
	return rec, nil
}

// JoinResult is the outcome of a confirmed join. Subscription is set when a
// trial unit was consumed.
type JoinResult struct {
	Usage        *model.UsageRecord  `json:"usage"`
	Subscription *model.Subscription `json:"subscription,omitempty"`
}

// ConfirmJoin records a join attempt and, when the subscriber attended on a
// trial, consumes one quota unit.
func (s *UsageService) ConfirmJoin(ctx context.Context, jc model.JoinConfirmation) (*JoinResult, error) {
	rec, err := s.RecordAttendance(ctx, jc.SubscriberID, jc.BenefitSessionID, jc.Attended)
	if err != nil {
		return nil, err
	}
	res := &JoinResult{Usage: rec}
	if !jc.Attended || rec.SubscriptionID == nil {
		return res, nil
	}

	sub, err := s.store.GetSubscriptionByID(ctx, *rec.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("confirm join: %w", err)
	}
	if !sub.IsTrial {
		return res, nil
	}
	sub, err = s.ConsumeQuota(ctx, sub.ID)
	if err != nil {
		return res, err
	}
	res.Subscription = sub
	return res, nil
}

// ListAttendance pages through a subscriber's usage records.
func (s *UsageService) ListAttendance(ctx context.Context, subscriberID string, limit int, cursor string) ([]model.UsageRecord, bool, error) {
	type page struct {
		recs    []model.UsageRecord
		hasMore bool
	}
	p, err := readWithRetry(ctx, func() (page, error) {
		recs, hasMore, err := s.store.ListUsage(ctx, subscriberID, limit, cursor)
		return page{recs, hasMore}, err
	})
	if err != nil {
		return nil, false, fmt.Errorf("list attendance for %s: %w", subscriberID, err)
	}
	return p.recs, p.hasMore, nil
}

func (s *UsageService) subscription(ctx context.Context, subscriberID string) (*model.Subscription, error) {
	sub, err := readWithRetry(ctx, func() (*model.Subscription, error) {
		return s.store.GetSubscription(ctx, subscriberID)
	})
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	return sub, err
}
