package postgres

import (
	"context"
	"fmt"

	"github.com/edvin/entitlements/internal/model"
)

func (s *Store) AppendUsage(ctx context.Context, rec *model.UsageRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO usage_records (id, subscriber_id, subscription_id, benefit_session_id, attended, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.SubscriberID, rec.SubscriptionID, rec.BenefitSessionID, rec.Attended, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert usage record for %s: %w", rec.SubscriberID, mapErr(err))
	}
	return nil
}

func (s *Store) ListUsage(ctx context.Context, subscriberID string, limit int, cursor string) ([]model.UsageRecord, bool, error) {
	query := `SELECT id, subscriber_id, subscription_id, benefit_session_id, attended, created_at
		FROM usage_records WHERE subscriber_id = $1`
	args := []any{subscriberID}
	if cursor != "" {
		args = append(args, cursor)
		query += fmt.Sprintf(` AND (created_at, id) > (SELECT created_at, id FROM usage_records WHERE id = $%d)`, len(args))
	}
	query += ` ORDER BY created_at, id`
	query, args = pageArgs(query, args, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list usage for %s: %w", subscriberID, mapErr(err))
	}
	defer rows.Close()

	var out []model.UsageRecord
	for rows.Next() {
		var r model.UsageRecord
		if err := rows.Scan(&r.ID, &r.SubscriberID, &r.SubscriptionID, &r.BenefitSessionID, &r.Attended, &r.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan usage record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate usage records: %w", mapErr(err))
	}
	out, more := hasMore(out, limit)
	return out, more, nil
}

func (s *Store) GetBenefitSession(ctx context.Context, sessionID string) (*model.BenefitSession, error) {
	var bs model.BenefitSession
	err := s.db.QueryRow(ctx,
		`SELECT session_id, category FROM benefit_sessions WHERE session_id = $1`, sessionID,
	).Scan(&bs.SessionID, &bs.Category)
	if err != nil {
		return nil, fmt.Errorf("get benefit session %s: %w", sessionID, mapErr(err))
	}
	return &bs, nil
}

func (s *Store) UpsertBenefitSession(ctx context.Context, bs *model.BenefitSession) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO benefit_sessions (session_id, category) VALUES ($1, $2)
		 ON CONFLICT (session_id) DO UPDATE SET category = EXCLUDED.category`,
		bs.SessionID, bs.Category)
	if err != nil {
		return fmt.Errorf("upsert benefit session %s: %w", bs.SessionID, mapErr(err))
	}
	return nil
}
