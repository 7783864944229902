// Package postgres implements the engine Store on PostgreSQL with pgx.
// Single-row invariants are enforced by conditional statements and unique
// indexes; multi-row writes run in one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/entitlements/internal/model"
)

// querier is the statement surface shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return mapErr(s.db.Ping(ctx))
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	err := pgx.BeginFunc(ctx, s.db, fn)
	return mapErr(err)
}

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// mapErr translates driver errors into engine sentinels, keeping the
// original error in the chain. Errors already carrying a sentinel pass
// through unchanged.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{model.ErrNotFound, model.ErrConflict, model.ErrQuotaExhausted, model.ErrNotSubscribed, model.ErrTransientStore} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", model.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", model.ErrConflict, pgErr.ConstraintName)
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %w", model.ErrTransientStore, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", model.ErrTransientStore, err)
	}
	return err
}

// statusArgs converts typed statuses to a text[] parameter.
func statusArgs[T ~string](statuses []T) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// pageArgs appends the LIMIT placeholder. It fetches one extra row so
// callers can tell whether another page exists.
func pageArgs(query string, args []any, limit int) (string, []any) {
	args = append(args, limit+1)
	return query + fmt.Sprintf(` LIMIT $%d`, len(args)), args
}

func hasMore[T any](items []T, limit int) ([]T, bool) {
	if len(items) > limit {
		return items[:limit], true
	}
	return items, false
}
