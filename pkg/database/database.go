// Package database wraps a pgx connection pool whose statements are logged
// through pkg/logging with the trace id of the request that issued them.
//
// Example usage:
//
//	pool, err := database.NewPool(ctx, cfg.Database, database.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
//
//	err = pool.WithTransaction(ctx, func(tx database.Transaction) error {
//	    _, err := tx.Exec(ctx, "UPDATE jobs SET state = $1 WHERE id = $2", "published", id)
//	    return err
//	})
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Database is the query surface shared by Pool and Transaction.
type Database interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Transaction is a Database that can be committed or rolled back.
type Transaction interface {
	Database
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionFunc runs inside a transaction. Returning an error rolls the
// transaction back.
type TransactionFunc func(tx Transaction) error
