package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/msc-edu/cms-api/models"
	"github.com/msc-edu/cms-api/repositories"
	"go.uber.org/zap"
)

// ProfileRepository implements repositories.ProfileRepository
type ProfileRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB, logger *zap.Logger) repositories.ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a profile by identity subject id
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	// profiles.id is a UUID column; anything else can never match
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("profile %q: %w", id, repositories.ErrNotFound)
	}

	query := `
		SELECT id, email, full_name, role, avatar_url, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	profile := &models.Profile{}
	var (
		fullName  sql.NullString
		role      sql.NullString
		avatarURL sql.NullString
	)

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&profile.ID,
		&profile.Email,
		&fullName,
		&role,
		&avatarURL,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if fullName.Valid {
		profile.FullName = &fullName.String
	}
	if avatarURL.Valid {
		profile.AvatarURL = &avatarURL.String
	}
	profile.Role = models.Role(role.String)

	return profile, nil
}
