package model

import "time"

type UploadStatus string

const (
	UploadStatusPending    UploadStatus = "PENDING"
	UploadStatusProcessing UploadStatus = "PROCESSING"
	UploadStatusSuccess    UploadStatus = "SUCCESS"
	UploadStatusFailed     UploadStatus = "FAILED"
)

// Document is one uploaded PDF. Key is the storage key assigned by the
// upload transport; the unique index on it is what makes duplicate
// upload-complete callbacks collapse into a single row.
type Document struct {
	ID           string       `gorm:"size:64;primaryKey" json:"id"`
	Key          string       `gorm:"size:256;not null;uniqueIndex" json:"key"`
	Name         string       `gorm:"size:256;not null" json:"name"`
	URL          string       `gorm:"size:512;not null" json:"url"`
	UserID       uint         `gorm:"not null;index" json:"user_id"`
	UploadStatus UploadStatus `gorm:"size:16;not null;default:'PENDING'" json:"upload_status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
