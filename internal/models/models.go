package models

import (
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Document statuses. A record starts as uploaded and is moved by the verifier.
const (
	StatusUploaded     = "uploaded"
	StatusVerified     = "verified"
	StatusMissing      = "missing"
	StatusSizeMismatch = "size_mismatch"
)

// Upload sources.
const (
	SourceGCS    = "gcs"
	SourceDirect = "direct"
)

// Document is the backend record of an object stored in the bucket.
type Document struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	FileName     string    `db:"file_name" json:"file_name"`
	FilePath     string    `db:"file_path" json:"file_path"`
	FileSize     int64     `db:"file_size" json:"file_size"`
	UploadSource string    `db:"upload_source" json:"upload_source"` // "gcs" or "direct"
	Bucket       string    `db:"bucket" json:"gcs_bucket"`
	ObjectPath   string    `db:"object_path" json:"gcs_path"`
	ContentType  string    `db:"content_type" json:"content_type"`
	Status       string    `db:"status" json:"status"` // uploaded | verified | missing | size_mismatch
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UploadTarget is handed to a client so it can PUT the file straight into the bucket.
type UploadTarget struct {
	UploadURL  string    `json:"upload_url"`
	ObjectKey  string    `json:"filename"`
	BucketName string    `json:"bucket_name"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ObjectInfo is what the object store reports about a stored object.
type ObjectInfo struct {
	Size        int64
	ContentType string
	ETag        string
}
