package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle threaded through repository calls.
// The concrete type is infra-defined (pgx.Tx for Postgres); repositories
// must gracefully accept nil and fall back to their pooled connection.
type Tx interface{}

// NoTx marks the non-transactional path.
var NoTx Tx

// TransactionManager executes a function inside a database transaction,
// handing the transaction to repositories via the Tx argument so that
// use-case interfaces never leak storage types.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
