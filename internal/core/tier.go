package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/entitlements/internal/catalog"
	"github.com/edvin/entitlements/internal/model"
	"github.com/edvin/entitlements/internal/platform"
)

// TierService resolves and assigns actor commission tiers.
type TierService struct {
	store   Store
	catalog *catalog.Catalog
	opts    Options
}

func NewTierService(store Store, cat *catalog.Catalog, opts Options) *TierService {
	return &TierService{store: store, catalog: cat, opts: opts.withDefaults()}
}

// ActiveAssignment returns the assignment covering at, preferring the latest
// start when intervals overlap, or nil.
func ActiveAssignment(timeline []model.TierAssignment, at time.Time) *model.TierAssignment {
	var best *model.TierAssignment
	for i := range timeline {
		a := &timeline[i]
		if !a.Covers(at) {
			continue
		}
		if best == nil || a.StartDate.After(best.StartDate) {
			best = a
		}
	}
	return best
}

// ResolveActiveTier returns the commission tier in force for actorID at at,
// falling back to the catalog default when no assignment covers it.
func (s *TierService) ResolveActiveTier(ctx context.Context, actorID string, at time.Time) (model.ResolvedTier, error) {
	if at.IsZero() {
		at = s.opts.Now()
	}
	timeline, err := s.ListAssignments(ctx, actorID)
	if err != nil {
		return model.ResolvedTier{}, err
	}

	if a := ActiveAssignment(timeline, at); a != nil {
		tier, ok := s.catalog.Get(a.TierID)
		if !ok {
			tier = model.Tier{ID: a.TierID, Kind: model.TierKindActor, CommissionRate: a.CommissionRate}
		}
		return model.ResolvedTier{Tier: tier, CommissionRate: a.CommissionRate, Assignment: a}, nil
	}

	def := s.catalog.DefaultCommissionTier()
	return model.ResolvedTier{Tier: def, CommissionRate: def.CommissionRate, Fallback: true}, nil
}

// AssignTier puts actorID on tierID from start onwards, closing the current
// open assignment. A zero start means now.
func (s *TierService) AssignTier(ctx context.Context, actorID, tierID string, start time.Time) (*model.TierAssignment, error) {
	if actorID == "" {
		return nil, fmt.Errorf("assign tier: actor id required: %w", model.ErrInvalidInput)
	}
	tier, err := s.catalog.ActorTier(tierID)
	if err != nil {
		return nil, fmt.Errorf("assign tier to %s: %w", actorID, err)
	}
	now := s.opts.Now()
	if start.IsZero() {
		start = now
	}

	a := &model.TierAssignment{
		ID:             platform.NewID(),
		ActorID:        actorID,
		TierID:         tier.ID,
		CommissionRate: tier.CommissionRate,
		StartDate:      start.UTC(),
		CreatedAt:      now,
	}
	if err := s.store.AssignTier(ctx, a); err != nil {
		return nil, fmt.Errorf("assign tier %s to %s: %w", tierID, actorID, err)
	}
	zerolog.Ctx(ctx).Info().Str("actor_id", actorID).Str("tier", tier.ID).Time("start_date", a.StartDate).Msg("tier assigned")
	return a, nil
}

// ListAssignments returns the actor's assignment timeline ordered by start.
func (s *TierService) ListAssignments(ctx context.Context, actorID string) ([]model.TierAssignment, error) {
	timeline, err := readWithRetry(ctx, func() ([]model.TierAssignment, error) {
		return s.store.ListAssignments(ctx, actorID)
	})
	if err != nil {
		return nil, fmt.Errorf("list tier assignments for %s: %w", actorID, err)
	}
	return timeline, nil
}
