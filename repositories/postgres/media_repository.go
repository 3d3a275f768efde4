package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/msc-edu/cms-api/models"
	"github.com/msc-edu/cms-api/repositories"
	"go.uber.org/zap"
)

const mediaColumns = `id, file_name, file_size_bytes, mime_type, file_url, folder_path,
		       storage_path, storage_bucket, is_public, uploaded_by, created_at, updated_at`

// MediaRepository implements repositories.MediaRepository
type MediaRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db *DB, logger *zap.Logger) repositories.MediaRepository {
	return &MediaRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a media metadata row
func (r *MediaRepository) Create(ctx context.Context, file *models.MediaFile) error {
	query := `
		INSERT INTO media_files (id, file_name, file_size_bytes, mime_type, file_url, folder_path,
		                         storage_path, storage_bucket, is_public, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		file.ID,
		file.FileName,
		file.FileSizeBytes,
		file.MimeType,
		file.FileURL,
		file.FolderPath,
		file.StoragePath,
		file.StorageBucket,
		file.IsPublic,
		file.UploadedBy,
		file.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create media file: %w", err)
	}

	r.logger.Debug("media file recorded",
		zap.String("id", file.ID.String()),
		zap.String("storage_path", file.StoragePath))
	return nil
}

// List returns a page of media rows in a folder, newest first, with the total count
func (r *MediaRepository) List(ctx context.Context, filter models.MediaFilter) ([]*models.MediaFile, int, error) {
	where, args := mediaWhere(filter)
	executor := GetExecutor(ctx, r.db)

	var total int
	countQuery := "SELECT COUNT(*) FROM media_files" + where
	if err := executor.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count media files: %w", err)
	}

	pageArgs := append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM media_files%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, mediaColumns, where, len(args)+1, len(args)+2)

	rows, err := executor.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query media files: %w", err)
	}
	defer rows.Close()

	files := make([]*models.MediaFile, 0, filter.Limit)
	for rows.Next() {
		file, err := scanMediaFile(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan media file: %w", err)
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating media rows: %w", err)
	}

	return files, total, nil
}

// DeleteByStoragePath removes the metadata row(s) for an object
func (r *MediaRepository) DeleteByStoragePath(ctx context.Context, path string) (int64, error) {
	query := `DELETE FROM media_files WHERE storage_path = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, path)
	if err != nil {
		return 0, fmt.Errorf("failed to delete media file: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Debug("media file metadata removed",
		zap.String("storage_path", path),
		zap.Int64("rows", affected))
	return affected, nil
}

// likeEscaper neutralises LIKE wildcards in a kind prefix
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// mediaWhere builds the WHERE clause shared by the count and page queries.
// A FileType containing '/' matches the MIME type exactly, otherwise it is a kind prefix.
func mediaWhere(filter models.MediaFilter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)

	if filter.Folder != "" {
		args = append(args, filter.Folder)
		clauses = append(clauses, fmt.Sprintf("folder_path = $%d", len(args)))
	}

	if filter.FileType != "" {
		if strings.Contains(filter.FileType, "/") {
			args = append(args, filter.FileType)
			clauses = append(clauses, fmt.Sprintf("mime_type = $%d", len(args)))
		} else {
			args = append(args, likeEscaper.Replace(filter.FileType)+"/%")
			clauses = append(clauses, fmt.Sprintf(`mime_type LIKE $%d ESCAPE '\'`, len(args)))
		}
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMediaFile(row rowScanner) (*models.MediaFile, error) {
	file := &models.MediaFile{}
	var (
		uploadedBy sql.NullString
		updatedAt  sql.NullTime
	)

	err := row.Scan(
		&file.ID,
		&file.FileName,
		&file.FileSizeBytes,
		&file.MimeType,
		&file.FileURL,
		&file.FolderPath,
		&file.StoragePath,
		&file.StorageBucket,
		&file.IsPublic,
		&uploadedBy,
		&file.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if uploadedBy.Valid {
		file.UploadedBy = &uploadedBy.String
	}
	if updatedAt.Valid {
		file.UpdatedAt = &updatedAt.Time
	}
	return file, nil
}
