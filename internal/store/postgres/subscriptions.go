package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/entitlements/internal/model"
)

const subscriptionColumns = `id, subscriber_id, subscriber_kind, plan_type, billing_cycle, status, is_trial,
	start_date, end_date, auto_renew, remaining_quota, tier_id, version, created_at, updated_at`

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var sub model.Subscription
	err := row.Scan(&sub.ID, &sub.SubscriberID, &sub.SubscriberKind, &sub.PlanType, &sub.BillingCycle,
		&sub.Status, &sub.IsTrial, &sub.StartDate, &sub.EndDate, &sub.AutoRenew, &sub.RemainingQuota,
		&sub.TierID, &sub.Version, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func subscriptionArgs(sub *model.Subscription) []any {
	return []any{sub.ID, sub.SubscriberID, sub.SubscriberKind, sub.PlanType, sub.BillingCycle,
		sub.Status, sub.IsTrial, sub.StartDate, sub.EndDate, sub.AutoRenew, sub.RemainingQuota,
		sub.TierID, sub.Version, sub.CreatedAt, sub.UpdatedAt}
}

// upsertSubscription inserts a row or overwrites the subscriber's row when
// the guard on the existing row holds. Row identity (id, created_at) is kept.
func upsertSubscription(guard string) string {
	return `INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (subscriber_id) DO UPDATE SET
			subscriber_kind = EXCLUDED.subscriber_kind,
			plan_type = EXCLUDED.plan_type,
			billing_cycle = EXCLUDED.billing_cycle,
			status = EXCLUDED.status,
			is_trial = EXCLUDED.is_trial,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			auto_renew = EXCLUDED.auto_renew,
			remaining_quota = EXCLUDED.remaining_quota,
			tier_id = EXCLUDED.tier_id,
			version = subscriptions.version + 1,
			updated_at = EXCLUDED.updated_at
		WHERE ` + guard + `
		RETURNING ` + subscriptionColumns
}

var (
	startTrialSQL = upsertSubscription(`subscriptions.is_trial = false AND subscriptions.status <> 'active'`)
	activateSQL   = upsertSubscription(`NOT (subscriptions.is_trial = false AND subscriptions.status = 'active' AND subscriptions.end_date > EXCLUDED.start_date)`)
)

func (s *Store) GetSubscription(ctx context.Context, subscriberID string) (*model.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE subscriber_id = $1`, subscriberID))
	if err != nil {
		return nil, fmt.Errorf("get subscription for %s: %w", subscriberID, mapErr(err))
	}
	return sub, nil
}

func (s *Store) GetSubscriptionByID(ctx context.Context, id string) (*model.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, mapErr(err))
	}
	return sub, nil
}

func (s *Store) StartTrial(ctx context.Context, sub *model.Subscription) (*model.Subscription, bool, error) {
	stored, err := scanSubscription(s.db.QueryRow(ctx, startTrialSQL, subscriptionArgs(sub)...))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("upsert trial for %s: %w", sub.SubscriberID, mapErr(err))
	}
	existing, err := s.GetSubscription(ctx, sub.SubscriberID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Store) ConsumeQuota(ctx context.Context, subscriptionID string, now time.Time) (*model.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`UPDATE subscriptions SET
			remaining_quota = remaining_quota - 1,
			status = CASE WHEN remaining_quota - 1 = 0 THEN 'cancelled' ELSE status END,
			version = version + 1,
			updated_at = $2
		 WHERE id = $1 AND is_trial AND status = 'active' AND remaining_quota > 0 AND end_date > $2
		 RETURNING `+subscriptionColumns, subscriptionID, now))
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("consume quota on %s: %w", subscriptionID, mapErr(err))
	}

	cur, err := s.GetSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if cur.RemainingQuota <= 0 {
		return nil, fmt.Errorf("subscription %s: %w", subscriptionID, model.ErrQuotaExhausted)
	}
	return nil, fmt.Errorf("subscription %s is not an active trial: %w", subscriptionID, model.ErrNotSubscribed)
}

// transition runs a conditional status update on the subscriber's row, then
// expires the subscription's scheduled plan changes in the same transaction.
func (s *Store) transition(ctx context.Context, subscriberID, update string, now time.Time) (*model.Subscription, error) {
	var sub *model.Subscription
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		sub, err = scanSubscription(tx.QueryRow(ctx, update+` RETURNING `+subscriptionColumns, subscriberID, now))
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE subscriber_id = $1)`, subscriberID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("subscription for %s: %w", subscriberID, model.ErrNotFound)
			}
			return fmt.Errorf("subscription for %s: %w", subscriberID, model.ErrConflict)
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE plan_changes SET status = 'expired', updated_at = $2
			 WHERE subscription_id = $1 AND status = 'scheduled'`, sub.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Store) CancelSubscription(ctx context.Context, subscriberID string, now time.Time) (*model.Subscription, error) {
	sub, err := s.transition(ctx, subscriberID,
		`UPDATE subscriptions SET status = 'cancelled', auto_renew = false, version = version + 1, updated_at = $2
		 WHERE subscriber_id = $1 AND status = 'active'`, now)
	if err != nil {
		return nil, fmt.Errorf("cancel subscription for %s: %w", subscriberID, err)
	}
	return sub, nil
}

func (s *Store) ExpireSubscription(ctx context.Context, subscriberID string, now time.Time) (*model.Subscription, error) {
	sub, err := s.transition(ctx, subscriberID,
		`UPDATE subscriptions SET status = 'expired', auto_renew = false, version = version + 1, updated_at = $2
		 WHERE subscriber_id = $1 AND status IN ('active', 'cancelled') AND end_date <= $2`, now)
	if err != nil {
		return nil, fmt.Errorf("expire subscription for %s: %w", subscriberID, err)
	}
	return sub, nil
}

func (s *Store) ListLapsed(ctx context.Context, now time.Time, limit int) ([]model.Subscription, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE status IN ('active', 'cancelled') AND end_date <= $1
		   AND (is_trial OR status = 'cancelled' OR NOT auto_renew)
		 ORDER BY end_date, id
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list lapsed subscriptions: %w", mapErr(err))
	}
	defer rows.Close()

	var out []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lapsed subscriptions: %w", mapErr(err))
	}
	return out, nil
}

func (s *Store) ActivateSubscription(ctx context.Context, sub *model.Subscription, entries ...model.BillingEntry) (*model.Subscription, error) {
	var stored *model.Subscription
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		stored, err = scanSubscription(tx.QueryRow(ctx, activateSQL, subscriptionArgs(sub)...))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("subscription for %s is paid and active: %w", sub.SubscriberID, model.ErrConflict)
		}
		if err != nil {
			return err
		}
		for i := range entries {
			entries[i].SubscriptionID = stored.ID
			if err := insertBilling(ctx, tx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("activate subscription for %s: %w", sub.SubscriberID, err)
	}
	return stored, nil
}

func (s *Store) SaveSubscription(ctx context.Context, u model.SubscriptionUpdate) (*model.Subscription, error) {
	sub := u.Subscription
	var stored *model.Subscription
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		stored, err = scanSubscription(tx.QueryRow(ctx,
			`UPDATE subscriptions SET
				plan_type = $3, billing_cycle = $4, status = $5, is_trial = $6, start_date = $7,
				end_date = $8, auto_renew = $9, remaining_quota = $10, tier_id = $11,
				version = version + 1, updated_at = $12
			 WHERE id = $1 AND version = $2
			 RETURNING `+subscriptionColumns,
			sub.ID, u.ExpectedVersion, sub.PlanType, sub.BillingCycle, sub.Status, sub.IsTrial, sub.StartDate,
			sub.EndDate, sub.AutoRenew, sub.RemainingQuota, sub.TierID, sub.UpdatedAt))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("subscription %s changed concurrently: %w", sub.ID, model.ErrConflict)
		}
		if err != nil {
			return err
		}

		if u.Transition != nil {
			if _, err := applyTransition(ctx, tx, *u.Transition); err != nil {
				return err
			}
		}
		if u.InsertChange != nil {
			if err := insertPlanChange(ctx, tx, u.InsertChange); err != nil {
				return err
			}
		}
		for i := range u.Entries {
			if err := insertBilling(ctx, tx, &u.Entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save subscription %s: %w", sub.ID, err)
	}
	return stored, nil
}
