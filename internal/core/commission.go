package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/entitlements/internal/metrics"
	"github.com/edvin/entitlements/internal/model"
	"github.com/edvin/entitlements/internal/platform"
)

// CommissionService turns revenue events into commission records.
type CommissionService struct {
	store Store
	tiers *TierService
	opts  Options
}

func NewCommissionService(store Store, tiers *TierService, opts Options) *CommissionService {
	return &CommissionService{store: store, tiers: tiers, opts: opts.withDefaults()}
}

// CommissionAmount applies a percentage rate to gross in minor units.
func CommissionAmount(mode model.RoundingMode, gross int64, rate float64) int64 {
	return mode.Divide(gross*model.RateBasisPoints(rate), 10000)
}

// ComputeCommission records the commission owed for ev at the rate in force
// at the event time. Recomputing the same event while it is pending returns
// the same record.
func (s *CommissionService) ComputeCommission(ctx context.Context, ev model.RevenueEvent) (*model.CommissionRecord, error) {
	rec, err := s.compute(ctx, ev)
	metrics.CommissionsComputed.WithLabelValues(errorLabel(err)).Inc()
	if err != nil {
		return nil, err
	}
	metrics.CommissionAmount.WithLabelValues(rec.Currency).Add(float64(rec.CommissionAmount))
	return rec, nil
}

func (s *CommissionService) compute(ctx context.Context, ev model.RevenueEvent) (*model.CommissionRecord, error) {
	if ev.ActorID == "" || ev.SourceEventID == "" {
		return nil, fmt.Errorf("compute commission: actor and source event required: %w", model.ErrInvalidInput)
	}
	if ev.GrossAmount < 0 {
		return nil, fmt.Errorf("compute commission: negative gross amount: %w", model.ErrInvalidInput)
	}
	now := s.opts.Now()
	if ev.EventTime.IsZero() {
		ev.EventTime = now
	}
	currency := strings.ToLower(ev.Currency)
	if currency == "" {
		currency = s.opts.Currency
	}

	resolved, err := s.tiers.ResolveActiveTier(ctx, ev.ActorID, ev.EventTime)
	if err != nil {
		return nil, fmt.Errorf("compute commission: %w", err)
	}

	rec := &model.CommissionRecord{
		ID:               platform.NewID(),
		ActorID:          ev.ActorID,
		SourceEventID:    ev.SourceEventID,
		TierID:           resolved.Tier.ID,
		GrossAmount:      ev.GrossAmount,
		Currency:         currency,
		CommissionRate:   resolved.CommissionRate,
		CommissionAmount: CommissionAmount(s.opts.Rounding, ev.GrossAmount, resolved.CommissionRate),
		Status:           model.CommissionPending,
		EventTime:        ev.EventTime,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	stored, err := s.store.UpsertCommission(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("compute commission for %s/%s: %w", ev.ActorID, ev.SourceEventID, err)
	}
	zerolog.Ctx(ctx).Info().
		Str("actor_id", ev.ActorID).
		Str("source_event_id", ev.SourceEventID).
		Int64("commission", stored.CommissionAmount).
		Float64("rate", stored.CommissionRate).
		Msg("commission computed")
	return stored, nil
}

// MarkPaid records the payout of a pending commission.
func (s *CommissionService) MarkPaid(ctx context.Context, id string) (*model.CommissionRecord, error) {
	rec, err := s.store.UpdateCommissionStatus(ctx, id,
		[]model.CommissionStatus{model.CommissionPending}, model.CommissionPaid, s.opts.Now())
	if err != nil {
		return nil, fmt.Errorf("mark commission %s paid: %w", id, err)
	}
	return rec, nil
}

// Reverse cancels a pending or paid commission, e.g. after a refund.
func (s *CommissionService) Reverse(ctx context.Context, id string) (*model.CommissionRecord, error) {
	rec, err := s.store.UpdateCommissionStatus(ctx, id,
		[]model.CommissionStatus{model.CommissionPending, model.CommissionPaid}, model.CommissionReversed, s.opts.Now())
	if err != nil {
		return nil, fmt.Errorf("reverse commission %s: %w", id, err)
	}
	return rec, nil
}

func (s *CommissionService) Get(ctx context.Context, id string) (*model.CommissionRecord, error) {
	rec, err := readWithRetry(ctx, func() (*model.CommissionRecord, error) {
		return s.store.GetCommission(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("get commission %s: %w", id, err)
	}
	return rec, nil
}

func (s *CommissionService) ListByActor(ctx context.Context, actorID string, limit int, cursor string) ([]model.CommissionRecord, bool, error) {
	recs, hasMore, err := s.store.ListCommissions(ctx, actorID, limit, cursor)
	if err != nil {
		return nil, false, fmt.Errorf("list commissions for %s: %w", actorID, err)
	}
	return recs, hasMore, nil
}
