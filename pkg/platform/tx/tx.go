// Package tx carries a database transaction through a context so SQL stores
// join the caller's transaction instead of using the pool directly.
package tx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

type ctxKey struct{}

var txKey = ctxKey{}

type state struct {
	tx *sql.Tx

	mu          sync.Mutex
	afterCommit []func()
}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, &state{tx: tx})
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	st, ok := ctx.Value(txKey).(*state)
	if !ok {
		return nil, false
	}
	return st.tx, true
}

// AfterCommit defers fn until the transaction in ctx commits. Outside a
// transaction fn runs immediately. Hooks are dropped on rollback.
func AfterCommit(ctx context.Context, fn func()) {
	st, ok := ctx.Value(txKey).(*state)
	if !ok {
		fn()
		return
	}
	st.mu.Lock()
	st.afterCommit = append(st.afterCommit, fn)
	st.mu.Unlock()
}

// Run executes fn inside a transaction on db. The transaction commits when fn
// returns nil and rolls back otherwise. Nested calls reuse the outer
// transaction. AfterCommit hooks run once the commit succeeds.
func Run(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) (err error) {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
			}
		}
	}()

	txCtx := WithTx(ctx, tx)
	if err = fn(txCtx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	st := txCtx.Value(txKey).(*state)
	st.mu.Lock()
	hooks := st.afterCommit
	st.afterCommit = nil
	st.mu.Unlock()
	for _, hook := range hooks {
		hook()
	}
	return nil
}
