package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/ports/repository"
)

var _ repository.TransactionManager = (*TxManager)(nil)

// serializationAttempts bounds retries of transactions aborted with 40001.
const serializationAttempts = 3

// TxManager runs repository work inside one pgx transaction. Repositories
// receive the pgx.Tx through their repository.Tx argument.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx commits when fn returns nil and rolls back otherwise. Under
// SERIALIZABLE or REPEATABLE READ a serialization failure re-runs fn, so fn
// must not have side effects outside the transaction.
func (m *TxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	attempts := 1
	if txOpt.IsoLevel == pgx.Serializable || txOpt.IsoLevel == pgx.RepeatableRead {
		attempts = serializationAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = m.runOnce(ctx, txOpt, fn)
		if !isSerializationFailure(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (m *TxManager) runOnce(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, txOpt)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isSerializationFailure(err error) bool {
	return err != nil && pgCode(err) == pgSerializationFailure
}

// executor is the query surface shared by the pool and an open transaction.
type executor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// getExecutor picks the transaction when one is passed and the pool otherwise.
func getExecutor(pool *pgxpool.Pool, tx repository.Tx) (executor, error) {
	switch v := tx.(type) {
	case nil:
		if pool == nil {
			return nil, domain.ErrInvalidArgument
		}
		return pool, nil
	case pgx.Tx:
		return v, nil
	default:
		return nil, errors.Join(domain.ErrInvalidExecContext, errUnknownTx)
	}
}

var errUnknownTx = errors.New("tx is not a pgx.Tx")
