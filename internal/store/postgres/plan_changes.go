package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/entitlements/internal/model"
)

const planChangeColumns = `id, subscription_id, subscriber_id, from_tier_id, to_tier_id, from_cycle, to_cycle,
	prorated_amount, credit_applied, currency, immediate, effective_date, status, provider_reference, created_at, updated_at`

func scanPlanChange(row pgx.Row) (*model.PlanChange, error) {
	var c model.PlanChange
	err := row.Scan(&c.ID, &c.SubscriptionID, &c.SubscriberID, &c.FromTierID, &c.ToTierID, &c.FromCycle,
		&c.ToCycle, &c.ProratedAmount, &c.CreditApplied, &c.Currency, &c.Immediate, &c.EffectiveDate, &c.Status,
		&c.ProviderReference, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func insertPlanChange(ctx context.Context, q querier, c *model.PlanChange) error {
	_, err := q.Exec(ctx,
		`INSERT INTO plan_changes (`+planChangeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.SubscriptionID, c.SubscriberID, c.FromTierID, c.ToTierID, c.FromCycle, c.ToCycle,
		c.ProratedAmount, c.CreditApplied, c.Currency, c.Immediate, c.EffectiveDate, c.Status, c.ProviderReference,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert plan change %s: %w", c.ID, mapErr(err))
	}
	return nil
}

// applyTransition moves a plan change to t.To if it is currently in t.From.
func applyTransition(ctx context.Context, q querier, t model.PlanChangeTransition) (*model.PlanChange, error) {
	c, err := scanPlanChange(q.QueryRow(ctx,
		`UPDATE plan_changes SET status = $2,
			provider_reference = COALESCE(NULLIF($3, ''), provider_reference),
			updated_at = now()
		 WHERE id = $1 AND status = ANY($4)
		 RETURNING `+planChangeColumns,
		t.ChangeID, t.To, t.ProviderReference, statusArgs(t.From)))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transition plan change %s: %w", t.ChangeID, mapErr(err))
	}

	var status model.PlanChangeStatus
	if err := q.QueryRow(ctx, `SELECT status FROM plan_changes WHERE id = $1`, t.ChangeID).Scan(&status); err != nil {
		return nil, fmt.Errorf("plan change %s: %w", t.ChangeID, mapErr(err))
	}
	return nil, fmt.Errorf("plan change %s is %s: %w", t.ChangeID, status, model.ErrConflict)
}

func (s *Store) CreatePlanChange(ctx context.Context, change *model.PlanChange) error {
	return insertPlanChange(ctx, s.db, change)
}

func (s *Store) GetPlanChange(ctx context.Context, id string) (*model.PlanChange, error) {
	c, err := scanPlanChange(s.db.QueryRow(ctx, `SELECT `+planChangeColumns+` FROM plan_changes WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get plan change %s: %w", id, mapErr(err))
	}
	return c, nil
}

func (s *Store) GetOpenPlanChange(ctx context.Context, subscriptionID string) (*model.PlanChange, error) {
	c, err := scanPlanChange(s.db.QueryRow(ctx,
		`SELECT `+planChangeColumns+` FROM plan_changes
		 WHERE subscription_id = $1 AND status IN ('pending_payment', 'scheduled')`, subscriptionID))
	if err != nil {
		return nil, fmt.Errorf("get open plan change for %s: %w", subscriptionID, mapErr(err))
	}
	return c, nil
}

func (s *Store) ResolvePlanChange(ctx context.Context, t model.PlanChangeTransition, entries []model.BillingEntry) (*model.PlanChange, error) {
	var c *model.PlanChange
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		c, err = applyTransition(ctx, tx, t)
		if err != nil {
			return err
		}
		for i := range entries {
			if err := insertBilling(ctx, tx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
