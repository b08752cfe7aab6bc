package db

import (
	"context"
	"database/sql"
	"fmt"
)

type Database struct {
	DbForJet *sql.DB
}

type txKey struct{}

// TxFromContext : Transaction 블록 안이면 진행 중인 *sql.Tx
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

type TransactionChain[T any] struct {
	block           func(ctx context.Context) (T, error)
	failedCallBack  func(err error) (T, error)
	finallyCallBack func()
}

// Transaction : Transaction(block).Failed(...).Finally(...).Run(ctx, db)
func Transaction[T any](block func(ctx context.Context) (T, error)) *TransactionChain[T] {
	return &TransactionChain[T]{
		block: block,
	}
}

func (transaction *TransactionChain[T]) Failed(failedCallBack func(err error) (T, error)) *TransactionChain[T] {
	transaction.failedCallBack = failedCallBack
	return transaction
}

func (transaction *TransactionChain[T]) Finally(finallyCallBack func()) *TransactionChain[T] {
	transaction.finallyCallBack = finallyCallBack
	return transaction
}

func (transaction *TransactionChain[T]) fail(err error) (T, error) {
	if transaction.failedCallBack != nil {
		return transaction.failedCallBack(err)
	}
	var zero T
	return zero, err
}

// Run : block 이 에러를 내거나 panic 하면 rollback, 아니면 commit
func (transaction *TransactionChain[T]) Run(ctx context.Context, db *sql.DB) (result T, err error) {
	if transaction.finallyCallBack != nil {
		defer transaction.finallyCallBack()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return transaction.fail(fmt.Errorf("transaction start failed: %w", err))
	}
	ctx = context.WithValue(ctx, txKey{}, tx)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		_ = tx.Rollback()
		panicErr, ok := r.(error)
		if !ok {
			panic(r)
		}
		result, err = transaction.fail(fmt.Errorf("transaction panicked: %w", panicErr))
	}()

	result, err = transaction.block(ctx)
	if err != nil {
		if txErr := tx.Rollback(); txErr != nil {
			err = fmt.Errorf("%w (rollback failed: %v)", err, txErr)
		}
		return transaction.fail(err)
	}

	if err := tx.Commit(); err != nil {
		return transaction.fail(fmt.Errorf("transaction commit failed: %w", err))
	}
	return result, nil
}
