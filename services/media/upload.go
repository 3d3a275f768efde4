package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/msc-edu/cms-api/models"
	"github.com/msc-edu/cms-api/services"
	"github.com/msc-edu/cms-api/storage"
	"github.com/msc-edu/cms-api/utils"
	"go.uber.org/zap"
)

// sniffLen is how much of a file is read to detect its content type
const sniffLen = 3072

// maxNameLen bounds the sanitized file name inside an object path
const maxNameLen = 100

// UploadFile is one file of a multipart upload
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// UploadRequest is a batch of files for one folder
type UploadRequest struct {
	Folder     string `validate:"required,storagefolder"`
	Files      []UploadFile
	UploadedBy string
}

// UploadedFile describes an object written to storage
type UploadedFile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimetype"`
	Bucket    string `json:"bucket"`
	Path      string `json:"path"`
	CreatedAt string `json:"created_at"`
}

// FailedUpload describes a file that was not stored
type FailedUpload struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// UploadResult reports the outcome of every file in a batch
type UploadResult struct {
	Successful   []UploadedFile `json:"successful"`
	Failed       []FailedUpload `json:"failed"`
	Total        int            `json:"total"`
	SuccessCount int            `json:"successCount"`
	FailureCount int            `json:"failureCount"`
}

// Upload stores each file independently. A file that fails validation or
// storage is reported in Failed and does not stop the batch.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if len(req.Files) == 0 {
		return nil, services.ErrNoFiles
	}
	if req.Folder == "" {
		req.Folder = DefaultFolder
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, services.NewCodedError(services.ErrorTypeValidation, "VALIDATION_ERROR", "Invalid folder", err)
	}

	result := &UploadResult{
		Successful: make([]UploadedFile, 0, len(req.Files)),
		Failed:     make([]FailedUpload, 0),
		Total:      len(req.Files),
	}

	for _, file := range req.Files {
		if err := ctx.Err(); err != nil {
			result.Failed = append(result.Failed, FailedUpload{Filename: file.Name, Error: "Upload cancelled"})
			continue
		}

		uploaded, err := s.uploadOne(ctx, req.Folder, req.UploadedBy, file)
		if err != nil {
			s.logger.Warn("file upload failed",
				zap.String("filename", file.Name),
				zap.String("folder", req.Folder),
				zap.Error(err))
			result.Failed = append(result.Failed, FailedUpload{Filename: file.Name, Error: uploadErrorMessage(err)})
			continue
		}
		result.Successful = append(result.Successful, *uploaded)
	}

	result.SuccessCount = len(result.Successful)
	result.FailureCount = len(result.Failed)

	s.logger.Info("upload batch processed",
		zap.String("folder", req.Folder),
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.FailureCount))
	return result, nil
}

// fileError is a per-file validation failure shown to the client as is
type fileError struct {
	msg string
}

func (e *fileError) Error() string { return e.msg }

func uploadErrorMessage(err error) string {
	var fe *fileError
	switch {
	case errors.As(err, &fe):
		return fe.msg
	case errors.Is(err, storage.ErrObjectExists):
		return "A file with this name already exists"
	default:
		return "Upload failed"
	}
}

func (s *Service) uploadOne(ctx context.Context, folder, uploadedBy string, file UploadFile) (*UploadedFile, error) {
	if file.Size <= 0 {
		return nil, &fileError{"File is empty"}
	}
	if file.Size > s.cfg.MaxFileSize {
		return nil, &fileError{fmt.Sprintf("File size exceeds %dMB limit", s.cfg.MaxFileSize/1024/1024)}
	}

	declared := baseMediaType(file.ContentType)
	if declared != "" && declared != "application/octet-stream" {
		if _, ok := s.allowed[declared]; !ok {
			return nil, &fileError{fmt.Sprintf("File type %s is not allowed", declared)}
		}
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer rc.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read file: %w", err)
	}
	head = head[:n]

	contentType, err := s.resolveType(declared, mimetype.Detect(head))
	if err != nil {
		return nil, err
	}

	objectPath := s.objectPath(folder, file.Name)
	body := io.MultiReader(bytes.NewReader(head), rc)

	stored, err := s.store.Upload(ctx, objectPath, contentType, body, file.Size)
	if err != nil {
		return nil, err
	}
	url := s.store.PublicURL(stored)

	meta := models.NewMediaFile(file.Name, file.Size, contentType, url, folder, stored, s.store.Bucket())
	if uploadedBy != "" {
		meta.UploadedBy = &uploadedBy
	}
	if err := s.repo.Create(ctx, meta); err != nil {
		// the object is stored and reachable; only the listing misses it
		s.logger.Error("failed to record media metadata",
			zap.String("path", stored),
			zap.Error(err))
	}

	return &UploadedFile{
		ID:        path.Base(stored),
		Name:      file.Name,
		URL:       url,
		Size:      file.Size,
		MimeType:  contentType,
		Bucket:    s.store.Bucket(),
		Path:      stored,
		CreatedAt: meta.CreatedAt.Format(time.RFC3339Nano),
	}, nil
}

// resolveType checks the declared type against the sniffed content. A missing
// or generic declared type is replaced by the detected one.
func (s *Service) resolveType(declared string, detected *mimetype.MIME) (string, error) {
	if declared == "" || declared == "application/octet-stream" {
		declared = baseMediaType(detected.String())
		if _, ok := s.allowed[declared]; !ok {
			return "", &fileError{fmt.Sprintf("File type %s is not allowed", declared)}
		}
		return declared, nil
	}

	for m := detected; m != nil; m = m.Parent() {
		if m.Is(declared) {
			return declared, nil
		}
	}
	return "", &fileError{fmt.Sprintf("File content does not match type %s", declared)}
}

// objectPath builds folder/<unix-ms>-<short-id>-<name>
func (s *Service) objectPath(folder, name string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s/%d-%s-%s", folder, s.now().UnixMilli(), id, sanitizeName(name))
}

// sanitizeName reduces a client file name to a safe object name segment
func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.Trim(b.String(), "._")
	if len(out) > maxNameLen {
		out = out[len(out)-maxNameLen:]
	}
	if out == "" {
		return "file"
	}
	return out
}

func baseMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}
