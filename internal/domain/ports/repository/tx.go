package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is the backend transaction handle. Only the matching backend inspects it.
type Tx interface{}

// NoTX runs a repository call outside any transaction.
var NoTX Tx

// TransactionManager executes fn within a storage transaction, passing the
// backend-defined handle (pgx.Tx for Postgres) as tx. Repositories accept a
// nil tx and fall back to their non-transactional path.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
