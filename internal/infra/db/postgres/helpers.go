package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-verification-bot/internal/domain/ports/repository"
)

// executor is the subset of pgx APIs repositories need, satisfied by a pool,
// a pooled connection, or a transaction.
type executor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// pick resolves the executor for a repository call: the transaction handle
// when one is in flight, the shared pool otherwise.
func pick(pool *pgxpool.Pool, tx repository.Tx) executor {
	switch v := tx.(type) {
	case pgx.Tx:
		return v
	case *pgxpool.Conn:
		return v
	default:
		return pool
	}
}

// uniqueViolation reports whether err is a Postgres duplicate-key error
// (SQLSTATE 23505).
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
