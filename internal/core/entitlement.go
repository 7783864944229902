package core

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/edvin/entitlements/internal/catalog"
	"github.com/edvin/entitlements/internal/metrics"
	"github.com/edvin/entitlements/internal/model"
)

// EntitlementService answers whether a subscriber may consume a benefit. It
// never mutates state.
type EntitlementService struct {
	store   Store
	catalog *catalog.Catalog
	opts    Options
}

func NewEntitlementService(store Store, cat *catalog.Catalog, opts Options) *EntitlementService {
	return &EntitlementService{store: store, catalog: cat, opts: opts.withDefaults()}
}

// CanConsume decides access to a benefit session. Denials are decisions, not
// errors; an error means the check itself could not be made.
func (s *EntitlementService) CanConsume(ctx context.Context, subscriberID, benefitSessionID string) (model.Decision, error) {
	session, err := readWithRetry(ctx, func() (*model.BenefitSession, error) {
		return s.store.GetBenefitSession(ctx, benefitSessionID)
	})
	if err != nil {
		return model.Decision{}, fmt.Errorf("benefit session %s: %w", benefitSessionID, err)
	}

	sub, err := readWithRetry(ctx, func() (*model.Subscription, error) {
		return s.store.GetSubscription(ctx, subscriberID)
	})
	if err != nil && !isNotFound(err) {
		return model.Decision{}, fmt.Errorf("can consume: %w", err)
	}

	d := s.decide(sub, session.Category)
	metrics.EntitlementDecisions.WithLabelValues(strconv.FormatBool(d.Allowed), string(d.ReasonCode)).Inc()
	zerolog.Ctx(ctx).Debug().
		Str("subscriber_id", subscriberID).
		Str("session_id", benefitSessionID).
		Bool("allowed", d.Allowed).
		Str("reason", string(d.ReasonCode)).
		Msg("entitlement decision")
	return d, nil
}

func (s *EntitlementService) decide(sub *model.Subscription, category string) model.Decision {
	d := model.Decision{Category: category}
	now := s.opts.Now()

	if sub == nil {
		d.ReasonCode = model.ReasonNoSubscription
		return d
	}
	if sub.IsTrial {
		d.Trial = true
		switch sub.State(now) {
		case model.StateTrialActive:
			d.Allowed = true
		case model.StateTrialExhausted:
			d.ReasonCode = model.ReasonTrialExhausted
		default:
			d.ReasonCode = model.ReasonPlanExpired
		}
		return d
	}

	if !sub.HasPaidAccess(now) {
		d.ReasonCode = model.ReasonPlanExpired
		return d
	}
	tier, ok := s.catalog.Get(sub.TierID)
	if !ok || !tier.HasFeature(category) {
		d.ReasonCode = model.ReasonFeatureNotIncluded
		return d
	}
	d.Allowed = true
	return d
}

// PutBenefitSession records the benefit category of a session as published
// by the course collaborator.
func (s *EntitlementService) PutBenefitSession(ctx context.Context, session *model.BenefitSession) error {
	if session.SessionID == "" || session.Category == "" {
		return fmt.Errorf("benefit session needs an id and a category: %w", model.ErrInvalidInput)
	}
	if err := s.store.UpsertBenefitSession(ctx, session); err != nil {
		return fmt.Errorf("put benefit session %s: %w", session.SessionID, err)
	}
	return nil
}

// GetBenefitSession returns the category mapping of a session.
func (s *EntitlementService) GetBenefitSession(ctx context.Context, sessionID string) (*model.BenefitSession, error) {
	return readWithRetry(ctx, func() (*model.BenefitSession, error) {
		return s.store.GetBenefitSession(ctx, sessionID)
	})
}
