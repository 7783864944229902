package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/entitlements/internal/model"
)

const assignmentColumns = `id, actor_id, tier_id, commission_rate, start_date, end_date, created_at`

func (s *Store) ListAssignments(ctx context.Context, actorID string) ([]model.TierAssignment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+assignmentColumns+` FROM tier_assignments WHERE actor_id = $1 ORDER BY start_date, created_at`, actorID)
	if err != nil {
		return nil, fmt.Errorf("list tier assignments for %s: %w", actorID, mapErr(err))
	}
	defer rows.Close()

	var out []model.TierAssignment
	for rows.Next() {
		var a model.TierAssignment
		if err := rows.Scan(&a.ID, &a.ActorID, &a.TierID, &a.CommissionRate, &a.StartDate, &a.EndDate, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tier assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tier assignments: %w", mapErr(err))
	}
	return out, nil
}

// AssignTier serializes assignment changes per actor with a transaction
// scoped advisory lock, then closes the open interval and inserts the new one.
func (s *Store) AssignTier(ctx context.Context, a *model.TierAssignment) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, a.ActorID); err != nil {
			return err
		}

		var openStart time.Time
		err := tx.QueryRow(ctx,
			`SELECT start_date FROM tier_assignments WHERE actor_id = $1 AND end_date IS NULL`, a.ActorID,
		).Scan(&openStart)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return err
		case !a.StartDate.After(openStart):
			return fmt.Errorf("start %s not after open assignment start %s: %w",
				a.StartDate.Format(time.RFC3339), openStart.Format(time.RFC3339), model.ErrConflict)
		default:
			if _, err := tx.Exec(ctx,
				`UPDATE tier_assignments SET end_date = $2 WHERE actor_id = $1 AND end_date IS NULL`,
				a.ActorID, a.StartDate); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO tier_assignments (`+assignmentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			a.ID, a.ActorID, a.TierID, a.CommissionRate, a.StartDate, a.EndDate, a.CreatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("assign tier to %s: %w", a.ActorID, err)
	}
	return nil
}
