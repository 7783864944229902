package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/entitlements/internal/model"
)

const billingColumns = `id, subscription_id, kind, amount, currency, status,
	COALESCE(payment_method_ref, ''), COALESCE(transaction_ref, ''), description, created_at`

func scanBilling(row pgx.Row) (*model.BillingEntry, error) {
	var e model.BillingEntry
	err := row.Scan(&e.ID, &e.SubscriptionID, &e.Kind, &e.Amount, &e.Currency, &e.Status,
		&e.PaymentMethodRef, &e.TransactionRef, &e.Description, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func insertBilling(ctx context.Context, q querier, e *model.BillingEntry) error {
	_, err := q.Exec(ctx,
		`INSERT INTO billing_entries
			(id, subscription_id, kind, amount, currency, status, payment_method_ref, transaction_ref, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10)`,
		e.ID, e.SubscriptionID, e.Kind, e.Amount, e.Currency, e.Status,
		e.PaymentMethodRef, e.TransactionRef, e.Description, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert billing entry %s: %w", e.ID, mapErr(err))
	}
	return nil
}

func (s *Store) AppendBilling(ctx context.Context, entry *model.BillingEntry) error {
	return insertBilling(ctx, s.db, entry)
}

// ListBilling returns entries oldest first. The cursor is the id of the
// last entry of the previous page.
func (s *Store) ListBilling(ctx context.Context, subscriptionID string, limit int, cursor string) ([]model.BillingEntry, bool, error) {
	query := `SELECT ` + billingColumns + ` FROM billing_entries WHERE subscription_id = $1`
	args := []any{subscriptionID}
	if cursor != "" {
		args = append(args, cursor)
		query += fmt.Sprintf(` AND (created_at, id) > (SELECT created_at, id FROM billing_entries WHERE id = $%d)`, len(args))
	}
	query += ` ORDER BY created_at, id`
	query, args = pageArgs(query, args, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list billing for %s: %w", subscriptionID, mapErr(err))
	}
	defer rows.Close()

	var out []model.BillingEntry
	for rows.Next() {
		e, err := scanBilling(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan billing entry: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate billing entries: %w", mapErr(err))
	}
	out, more := hasMore(out, limit)
	return out, more, nil
}

func (s *Store) OutstandingCredit(ctx context.Context, subscriptionID string) (int64, error) {
	var sum int64
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::bigint FROM billing_entries
		 WHERE subscription_id = $1 AND kind IN ('credit', 'credit_applied')`, subscriptionID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("outstanding credit for %s: %w", subscriptionID, mapErr(err))
	}
	if sum >= 0 {
		return 0, nil
	}
	return -sum, nil
}

func (s *Store) FindBillingByTransactionRef(ctx context.Context, ref string) (*model.BillingEntry, error) {
	e, err := scanBilling(s.db.QueryRow(ctx,
		`SELECT `+billingColumns+` FROM billing_entries WHERE transaction_ref = $1`, ref))
	if err != nil {
		return nil, fmt.Errorf("find billing entry by ref %s: %w", ref, mapErr(err))
	}
	return e, nil
}
