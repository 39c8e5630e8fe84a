package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is implemented by pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UnitOfWork runs a group of statements atomically.
type UnitOfWork struct {
	db TxBeginner
}

// NewUnitOfWork creates a UnitOfWork that opens transactions on db.
func NewUnitOfWork(db TxBeginner) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithTransaction executes fn inside a transaction.
// The transaction commits only if fn returns nil; any error (or panic) rolls it back,
// so none of fn's writes become visible.
func (u *UnitOfWork) WithTransaction(ctx context.Context, fn func(q TxQuerier) error) error {
	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
