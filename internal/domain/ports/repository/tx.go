package repository

import (
	"context"
)

// Tx is an opaque transaction handle. Its concrete type is infra-defined
// (pgx.Tx for Postgres, *sql.Tx for SQLite, an in-memory tx for tests).
type Tx interface{}

// NoTX is passed to repository methods that should run outside a transaction.
var NoTX Tx

// TransactionManager executes fn within one store transaction.
//
// If fn returns an error the transaction is rolled back and nothing it wrote is
// visible; otherwise it is committed. Locks taken through the repositories with
// the same tx are released when WithTx returns.
//
// USAGE
//
//	tm.WithTx(ctx, func(ctx context.Context, tx Tx) error {
//		cred, err := creds.LockByID(ctx, tx, id)
//		...
//		return events.Append(ctx, tx, ev)
//	})
//
// Repositories MUST accept a nil tx (non-transactional read path).
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
