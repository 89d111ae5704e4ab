package core

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/markdave123-py/Stratus/internal/models"
)

var (
	// ErrObjectNotFound is returned by ObjectClient when the key does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate record")
	// ErrRecordNotFound is returned by updates and deletes that match no row.
	ErrRecordNotFound = errors.New("record not found")
)

// DbClient defines all persistence operations the services need.
// Lookups return (nil, nil) when nothing matches.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) (err error)
	GetUserByEmail(ctx context.Context, email string) (user *models.User, err error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error
	DeleteDocument(ctx context.Context, id string) error

	Close() error
}

// ObjectClient defines interactions with S3 or any S3-compatible object storage
// (GCS interoperability, MinIO).
type ObjectClient interface {
	PresignUpload(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (url string, err error)
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	StatFile(ctx context.Context, bucket, key string) (*models.ObjectInfo, error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
