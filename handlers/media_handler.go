package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/msc-edu/cms-api/middleware"
	"github.com/msc-edu/cms-api/services"
	"github.com/msc-edu/cms-api/services/media"
	"github.com/msc-edu/cms-api/utils"
	"go.uber.org/zap"
)

// multipartMemory is how much of a multipart body is kept in memory; the rest spills to disk
const multipartMemory = 32 << 20

// MediaService is the part of media.Service the handler uses
type MediaService interface {
	List(ctx context.Context, req media.ListRequest) (*media.ListResult, error)
	Upload(ctx context.Context, req media.UploadRequest) (*media.UploadResult, error)
	Delete(ctx context.Context, path string) error
}

// MediaHandler handles the media listing, upload and delete endpoints
type MediaHandler struct {
	service        MediaService
	maxRequestSize int64
	errors         ErrorResponder
	logger         *zap.Logger
}

// NewMediaHandler creates a new MediaHandler
func NewMediaHandler(service MediaService, maxRequestSize int64, responder ErrorResponder, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		service:        service,
		maxRequestSize: maxRequestSize,
		errors:         responder,
		logger:         logger,
	}
}

// HandleList handles GET /api/images
func (h *MediaHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := media.ListRequest{
		Folder:   strings.TrimSpace(q.Get("folder")),
		FileType: strings.TrimSpace(q.Get("file_type")),
		Limit:    utils.QueryInt(q, "limit", media.DefaultLimit),
		Offset:   utils.QueryInt(q, "offset", 0),
	}

	result, err := h.service.List(r.Context(), req)
	if err != nil {
		h.errors.HandleServiceError(w, err)
		return
	}

	if err := utils.WriteOK(w, result, ""); err != nil {
		h.logger.Error("failed to write media list response", zap.Error(err))
	}
}

// HandleUpload handles POST /api/images/upload
func (h *MediaHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxRequestSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestSize)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			h.errors.HandleServiceError(w, services.ErrPayloadTooLarge)
			return
		}
		// not multipart, or no parts at all: nothing was sent as files
		h.logger.Debug("unreadable multipart body", zap.Error(err))
		h.errors.HandleServiceError(w, services.ErrNoFiles)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("failed to remove multipart temp files", zap.Error(err))
		}
	}()

	headers := r.MultipartForm.File["files"]
	req := media.UploadRequest{
		Folder: strings.TrimSpace(r.FormValue("folder")),
		Files:  make([]media.UploadFile, 0, len(headers)),
	}
	if p := middleware.GetPrincipalFromContext(r.Context()); p != nil {
		req.UploadedBy = p.ID
	}
	for _, fh := range headers {
		req.Files = append(req.Files, uploadFileFrom(fh))
	}

	result, err := h.service.Upload(r.Context(), req)
	if err != nil {
		h.errors.HandleServiceError(w, err)
		return
	}

	if err := utils.WriteOK(w, result, ""); err != nil {
		h.logger.Error("failed to write upload response", zap.Error(err))
	}
}

// isBodyTooLarge reports whether err came from http.MaxBytesReader. The
// multipart reader does not always wrap it.
func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

func uploadFileFrom(fh *multipart.FileHeader) media.UploadFile {
	return media.UploadFile{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// HandleDelete handles DELETE /api/images/upload?path=
func (h *MediaHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))

	if err := h.service.Delete(r.Context(), path); err != nil {
		h.errors.HandleServiceError(w, err)
		return
	}

	if err := utils.WriteOK(w, nil, "File deleted successfully"); err != nil {
		h.logger.Error("failed to write delete response", zap.Error(err))
	}
}
