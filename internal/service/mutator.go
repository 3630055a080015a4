package service

import (
	"context"
	"fmt"

	"marketbill/internal/repository"
	"marketbill/internal/util"
	"marketbill/pkg/db"
)

// txRunner bundles the transaction lifecycle dependencies shared by the
// services. The functions are injected so tests can substitute fakes
// without a live database.
type txRunner struct {
	dbBeginner db.DBTxBeginner
	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc
}

func newTxRunner(dbBeginner db.DBTxBeginner, begin db.BeginTxFunc, commit db.CommitTxFunc, rollback db.RollbackTxFunc) txRunner {
	return txRunner{
		dbBeginner: dbBeginner,
		beginTx:    begin,
		commitTx:   commit,
		rollbackTx: rollback,
	}
}

type (
	loadForUpdateFunc[T any] func(ctx context.Context, q repository.DBExecutor, id int64) (T, error)
	persistFunc[T any]       func(ctx context.Context, q repository.DBExecutor, v T) error
)

// mutateAggregate is the sole sanctioned mutation path for aggregates. It
// loads the target under a row-level exclusive lock, applies the mutation,
// persists on success and commits; any error discards the transaction and
// is returned untouched. Concurrent mutators of the same id block on the
// row lock until this critical section completes.
func mutateAggregate[T any](
	ctx context.Context,
	r txRunner,
	id int64,
	load loadForUpdateFunc[T],
	persist persistFunc[T],
	notFoundMsg string,
	mutate func(T) error,
) (T, error) {
	var zero T

	txController, err := r.beginTx(ctx, r.dbBeginner)
	if err != nil {
		return zero, fmt.Errorf("mutate: failed to begin transaction: %w", err)
	}
	defer r.rollbackTx(txController)

	q, ok := txController.(repository.DBExecutor)
	if !ok {
		return zero, fmt.Errorf("mutate: transaction controller does not implement DBExecutor")
	}

	target, err := load(ctx, q, id)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) && notFoundMsg != "" {
			return zero, fmt.Errorf("%s: %w", notFoundMsg, util.ErrNotFound)
		}
		return zero, err
	}

	if err := mutate(target); err != nil {
		return zero, err
	}

	if err := persist(ctx, q, target); err != nil {
		return zero, fmt.Errorf("mutate: failed to persist aggregate %d: %w", id, err)
	}

	if err := r.commitTx(txController); err != nil {
		return zero, fmt.Errorf("mutate: failed to commit transaction: %w", err)
	}

	return target, nil
}

// runInTx executes fn inside a transaction without the load-for-update
// step, for multi-statement writes that create new aggregates.
func runInTx(ctx context.Context, r txRunner, fn func(q repository.DBExecutor) error) error {
	txController, err := r.beginTx(ctx, r.dbBeginner)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer r.rollbackTx(txController)

	q, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("transaction controller does not implement DBExecutor")
	}

	if err := fn(q); err != nil {
		return err
	}
	if err := r.commitTx(txController); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
