package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/entitlements/internal/model"
)

const commissionColumns = `id, actor_id, source_event_id, tier_id, gross_amount, currency, commission_rate,
	commission_amount, status, event_time, created_at, updated_at`

func scanCommission(row pgx.Row) (*model.CommissionRecord, error) {
	var c model.CommissionRecord
	err := row.Scan(&c.ID, &c.ActorID, &c.SourceEventID, &c.TierID, &c.GrossAmount, &c.Currency,
		&c.CommissionRate, &c.CommissionAmount, &c.Status, &c.EventTime, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) UpsertCommission(ctx context.Context, rec *model.CommissionRecord) (*model.CommissionRecord, error) {
	c, err := scanCommission(s.db.QueryRow(ctx,
		`INSERT INTO commission_records (`+commissionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (actor_id, source_event_id) DO UPDATE SET
			tier_id = EXCLUDED.tier_id,
			gross_amount = EXCLUDED.gross_amount,
			currency = EXCLUDED.currency,
			commission_rate = EXCLUDED.commission_rate,
			commission_amount = EXCLUDED.commission_amount,
			event_time = EXCLUDED.event_time,
			updated_at = EXCLUDED.updated_at
		 WHERE commission_records.status = 'pending'
		 RETURNING `+commissionColumns,
		rec.ID, rec.ActorID, rec.SourceEventID, rec.TierID, rec.GrossAmount, rec.Currency, rec.CommissionRate,
		rec.CommissionAmount, rec.Status, rec.EventTime, rec.CreatedAt, rec.UpdatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("commission for %s/%s is no longer pending: %w", rec.ActorID, rec.SourceEventID, model.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert commission for %s/%s: %w", rec.ActorID, rec.SourceEventID, mapErr(err))
	}
	return c, nil
}

func (s *Store) GetCommission(ctx context.Context, id string) (*model.CommissionRecord, error) {
	c, err := scanCommission(s.db.QueryRow(ctx, `SELECT `+commissionColumns+` FROM commission_records WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get commission %s: %w", id, mapErr(err))
	}
	return c, nil
}

func (s *Store) ListCommissions(ctx context.Context, actorID string, limit int, cursor string) ([]model.CommissionRecord, bool, error) {
	query := `SELECT ` + commissionColumns + ` FROM commission_records WHERE actor_id = $1`
	args := []any{actorID}
	if cursor != "" {
		args = append(args, cursor)
		query += fmt.Sprintf(` AND id > $%d`, len(args))
	}
	query += ` ORDER BY id`
	query, args = pageArgs(query, args, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list commissions for %s: %w", actorID, mapErr(err))
	}
	defer rows.Close()

	var out []model.CommissionRecord
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan commission: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate commissions: %w", mapErr(err))
	}
	out, more := hasMore(out, limit)
	return out, more, nil
}

func (s *Store) UpdateCommissionStatus(ctx context.Context, id string, from []model.CommissionStatus, to model.CommissionStatus, now time.Time) (*model.CommissionRecord, error) {
	c, err := scanCommission(s.db.QueryRow(ctx,
		`UPDATE commission_records SET status = $2, updated_at = $3
		 WHERE id = $1 AND status = ANY($4)
		 RETURNING `+commissionColumns, id, to, now, statusArgs(from)))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update commission %s: %w", id, mapErr(err))
	}
	cur, err := s.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("commission %s is %s: %w", id, cur.Status, model.ErrConflict)
}
