package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type txContextKey struct{}

// withTx returns a context whose queries run inside tx.
func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// txFromContext returns the transaction started by an enclosing InTx, if any.
func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx, ok && tx != nil
}

// Executor hands repositories the right Conn for a context: the enclosing
// transaction when one is active, the pool otherwise.
type Executor struct {
	base Conn
}

// NewExecutor wraps the pool (or any Conn) used outside transactions.
func NewExecutor(base Conn) *Executor {
	return &Executor{base: base}
}

// Conn returns the transaction carried by ctx, or the base connection.
func (e *Executor) Conn(ctx context.Context) Conn {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return e.base
}

// InTx runs fn in a transaction and commits if fn returns nil. When ctx
// already carries a transaction, fn runs in a savepoint of it, so a failure
// inside fn rolls back only fn's work and the outer transaction stays usable.
func (e *Executor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := e.Conn(ctx).Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// After a successful Commit this returns pgx.ErrTxClosed.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(withTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
