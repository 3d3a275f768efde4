package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaFile is the metadata row stored for every uploaded object
type MediaFile struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	FileName      string     `json:"file_name" db:"file_name"`
	FileSizeBytes int64      `json:"file_size_bytes" db:"file_size_bytes"`
	MimeType      string     `json:"mime_type" db:"mime_type"`
	FileURL       string     `json:"file_url" db:"file_url"`
	FolderPath    string     `json:"folder_path" db:"folder_path"`
	StoragePath   string     `json:"storage_path" db:"storage_path"`
	StorageBucket string     `json:"storage_bucket" db:"storage_bucket"`
	IsPublic      bool       `json:"is_public" db:"is_public"`
	UploadedBy    *string    `json:"uploaded_by,omitempty" db:"uploaded_by"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// TableName returns the table name for the MediaFile model
func (MediaFile) TableName() string {
	return "media_files"
}

// NewMediaFile creates a public MediaFile for an object just written to storage
func NewMediaFile(name string, size int64, mimeType, url, folder, path, bucket string) *MediaFile {
	return &MediaFile{
		ID:            uuid.New(),
		FileName:      name,
		FileSizeBytes: size,
		MimeType:      mimeType,
		FileURL:       url,
		FolderPath:    folder,
		StoragePath:   path,
		StorageBucket: bucket,
		IsPublic:      true,
		CreatedAt:     time.Now().UTC(),
	}
}

// MediaFilter narrows a media listing
type MediaFilter struct {
	Folder   string
	FileType string // either a top-level kind ("image") or a full MIME type ("image/png")
	Limit    int
	Offset   int
}
