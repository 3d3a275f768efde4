package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/msc-edu/cms-api/repositories"
	"go.uber.org/zap"
)

type txKey struct{}

// TransactionManager opens the transactions that keep media_files rows in step
// with the storage bucket. A media delete removes its row on the transaction
// and only commits after the object is gone.
type TransactionManager struct {
	db     *DB
	logger *zap.Logger
}

func NewTransactionManager(db *DB, logger *zap.Logger) repositories.TransactionManager {
	return &TransactionManager{
		db:     db,
		logger: logger.Named("tx"),
	}
}

// Begin opens a transaction and binds it to the returned Transaction's Context.
func (tm *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	sqlTx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Transaction{tx: sqlTx, logger: tm.logger}
	tx.ctx = context.WithValue(ctx, txKey{}, tx)
	tm.logger.Debug("begin")
	return tx, nil
}

// InTransaction runs fn on a fresh transaction. Profile and media repositories
// handed fn's context write through the transaction instead of the pool.
func (tm *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, err := tm.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if fnErr := fn(tx.Context(), tx); fnErr != nil {
		if err := tx.Rollback(); err != nil {
			tm.logger.Error("rollback after failed unit of work",
				zap.Error(err),
				zap.NamedError("cause", fnErr))
		}
		return fnErr
	}
	return tx.Commit()
}

// Transaction is a *sql.Tx plus the context that carries it to repositories.
type Transaction struct {
	tx     *sql.Tx
	ctx    context.Context
	logger *zap.Logger
}

func (t *Transaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	t.logger.Debug("commit")
	return nil
}

// Rollback discards the transaction. It is safe after Commit.
func (t *Transaction) Rollback() error {
	err := t.tx.Rollback()
	switch {
	case err == nil:
		t.logger.Debug("rollback")
		return nil
	case errors.Is(err, sql.ErrTxDone):
		return nil
	default:
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
}

func (t *Transaction) Context() context.Context {
	return t.ctx
}

// Executor is the statement surface shared by *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GetExecutor picks where a repository statement runs: the transaction bound
// to ctx by Begin when there is one, the connection pool otherwise.
func GetExecutor(ctx context.Context, db *DB) Executor {
	if tx, ok := ctx.Value(txKey{}).(*Transaction); ok {
		return tx.tx
	}
	return db.DB
}
