package services

import (
	"context"
	"fmt"

	"github.com/msc-edu/cms-api/repositories"
)

// WithTransaction wraps a metadata change that must not outlive a failed
// storage call. fn gets the transaction's context, so media and profile
// repositories write through it. A nil return commits; an error or a panic
// rolls back and fn's error comes back as is.
func WithTransaction(ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, err := txMgr.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if fnErr := fn(tx.Context(), tx); fnErr != nil {
		if err := tx.Rollback(); err != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", fnErr, err)
		}
		return fnErr
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
