package repositories

import (
	"context"
	"errors"

	"github.com/msc-edu/cms-api/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// Commits if fn succeeds, rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// ProfileRepository reads the role-bearing profile rows
type ProfileRepository interface {
	// GetByID returns the profile for an identity-provider subject, or ErrNotFound
	GetByID(ctx context.Context, id string) (*models.Profile, error)
}

// MediaRepository handles media metadata rows
type MediaRepository interface {
	// Create inserts a metadata row
	Create(ctx context.Context, file *models.MediaFile) error

	// List returns a page of rows plus the total matching count, newest first
	List(ctx context.Context, filter models.MediaFilter) ([]*models.MediaFile, int, error)

	// DeleteByStoragePath removes the row(s) pointing at an object path.
	// Returns the number of rows removed.
	DeleteByStoragePath(ctx context.Context, path string) (int64, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Profiles ProfileRepository
	Media    MediaRepository
}
