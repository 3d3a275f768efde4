// Package media lists, uploads and deletes CMS media files.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/msc-edu/cms-api/models"
	"github.com/msc-edu/cms-api/repositories"
	"github.com/msc-edu/cms-api/services"
	"github.com/msc-edu/cms-api/storage"
	"github.com/msc-edu/cms-api/utils"
	"go.uber.org/zap"
)

// Listing and upload defaults
const (
	DefaultFolder = "uploads"
	DefaultLimit  = 50
	MaxLimit      = 100
)

// ObjectStore is the bucket the service writes objects to
type ObjectStore interface {
	Upload(ctx context.Context, path, contentType string, body io.Reader, size int64) (string, error)
	Remove(ctx context.Context, path string) error
	PublicURL(path string) string
	Bucket() string
}

// Config holds the upload limits
type Config struct {
	MaxFileSize      int64
	AllowedMIMETypes []string
}

// ListRequest selects a page of media rows
type ListRequest struct {
	Folder   string `validate:"omitempty,storagefolder"`
	FileType string `validate:"omitempty,max=127"`
	Limit    int
	Offset   int
}

// ListResult is a page of media rows
type ListResult struct {
	Files  []*models.MediaFile `json:"files"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// Service manages uploaded media: the objects in storage and their metadata rows
type Service struct {
	store   ObjectStore
	repo    repositories.MediaRepository
	txMgr   repositories.TransactionManager
	cfg     Config
	allowed map[string]struct{}
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a new media Service
func NewService(store ObjectStore, repo repositories.MediaRepository, txMgr repositories.TransactionManager, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 50 * 1024 * 1024
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMETypes))
	for _, t := range cfg.AllowedMIMETypes {
		allowed[t] = struct{}{}
	}
	return &Service{
		store:   store,
		repo:    repo,
		txMgr:   txMgr,
		cfg:     cfg,
		allowed: allowed,
		logger:  logger,
		now:     time.Now,
	}
}

// List returns media rows newest first. The folder defaults to "uploads",
// the limit to 50 (at most 100).
func (s *Service) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	if req.Folder == "" {
		req.Folder = DefaultFolder
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, services.NewCodedError(services.ErrorTypeValidation, "VALIDATION_ERROR", "Invalid query parameters", err)
	}
	req.Limit, req.Offset = utils.ClampLimitOffset(req.Limit, req.Offset, DefaultLimit, MaxLimit)

	files, total, err := s.repo.List(ctx, models.MediaFilter{
		Folder:   req.Folder,
		FileType: req.FileType,
		Limit:    req.Limit,
		Offset:   req.Offset,
	})
	if err != nil {
		s.logger.Error("failed to list media files", zap.String("folder", req.Folder), zap.Error(err))
		return nil, services.NewCodedError(services.ErrorTypeInternal, "SERVER_ERROR", "Failed to fetch media files", err)
	}

	return &ListResult{
		Files:  files,
		Total:  total,
		Limit:  req.Limit,
		Offset: req.Offset,
	}, nil
}

// Delete removes the object at path and its metadata row. The row is deleted
// inside a transaction that only commits once storage confirms the removal.
// A row whose object is already gone is still removed; not found is reported
// only when neither existed.
func (s *Service) Delete(ctx context.Context, path string) error {
	if path == "" {
		return services.ErrPathRequired
	}

	err := services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) error {
		rows, err := s.repo.DeleteByStoragePath(ctx, path)
		if err != nil {
			return services.WrapInternal("failed to delete media metadata", err)
		}
		if err := s.store.Remove(ctx, path); err != nil {
			if rows == 0 || !errors.Is(err, storage.ErrObjectNotFound) {
				return err
			}
			s.logger.Warn("object already removed from storage, dropping stale metadata",
				zap.String("path", path),
				zap.Int64("metadata_rows", rows))
			return nil
		}
		s.logger.Info("media file deleted",
			zap.String("path", path),
			zap.Int64("metadata_rows", rows))
		return nil
	})
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		s.logger.Info("media file not found", zap.String("path", path))
		return fmt.Errorf("%w: %w", services.ErrMediaNotFound, err)
	case services.GetErrorType(err) != "":
		s.logger.Error("failed to delete media file", zap.String("path", path), zap.Error(err))
		return err
	default:
		s.logger.Error("failed to delete media file", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %w", services.ErrStorageFailed, err)
	}
}
