package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txCtxKey struct{}

// unitOfWork implements persistence.UnitOfWork against a single *sqlx.Tx
// carried on the context Begin returns. Each online job run begins its own
// transaction-bearing context, so concurrent venue jobs sharing one
// unitOfWork value never share transaction state — the transaction lives on
// the context, not on this struct.
type unitOfWork struct {
	db *sqlx.DB
}

func newUnitOfWork(db *sqlx.DB) *unitOfWork {
	return &unitOfWork{db: db}
}

func (u *unitOfWork) Begin(ctx context.Context) (context.Context, error) {
	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return ctx, fmt.Errorf("postgres: begin: %w", err)
	}
	return context.WithValue(ctx, txCtxKey{}, tx), nil
}

func (u *unitOfWork) Save(ctx context.Context) error {
	tx, ok := txFromContext(ctx)
	if !ok {
		return fmt.Errorf("postgres: Save called without a transaction; call Begin first")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	tx, ok := txFromContext(ctx)
	if !ok {
		return nil
	}
	// Rolling back an already-committed tx returns sql.ErrTxDone; that is
	// the expected outcome on the success path where Save ran first, so it
	// is not treated as a failure here.
	_ = tx.Rollback()
	return nil
}

func txFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txCtxKey{}).(*sqlx.Tx)
	return tx, ok
}
