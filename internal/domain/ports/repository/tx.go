package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle passed through repository methods.
// Concrete repositories type-assert it to their own executor kind.
type Tx interface{}

// NoTX signals that a repository call should run outside any transaction.
var NoTX Tx = nil

// TransactionManager brackets a callback in a database transaction.
type TransactionManager interface {
	WithTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
