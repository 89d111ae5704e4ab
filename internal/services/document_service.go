package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/Stratus/internal/config"
	"github.com/markdave123-py/Stratus/internal/core"
	"github.com/markdave123-py/Stratus/internal/metrics"
	"github.com/markdave123-py/Stratus/internal/models"
)

const defaultContentType = "application/octet-stream"

var (
	ErrInvalidRecord    = errors.New("invalid upload record")
	ErrWrongBucket      = errors.New("bucket is not served by this backend")
	ErrForeignObject    = errors.New("object key is outside the caller's prefix")
	ErrDocumentNotFound = errors.New("document not found")
)

// Enqueuer accepts document ids for background verification.
type Enqueuer interface {
	Enqueue(docID string) bool
}

// RecordInput is the upload record a client submits after its PUT succeeded.
type RecordInput struct {
	FileName     string
	FilePath     string
	FileSize     int64
	UploadSource string
	Bucket       string
	ObjectPath   string
}

type DocumentService struct {
	db      core.DbClient
	storage core.ObjectClient
	queue   Enqueuer
	bucket  string
	prefix  string
	ttl     time.Duration
	now     func() time.Time
}

func NewDocumentService(db core.DbClient, storage core.ObjectClient, queue Enqueuer, cfg *config.Config) *DocumentService {
	return &DocumentService{
		db:      db,
		storage: storage,
		queue:   queue,
		bucket:  cfg.BucketName,
		prefix:  strings.Trim(cfg.ObjectPrefix, "/"),
		ttl:     cfg.UploadURLTTL,
		now:     time.Now,
	}
}

// IssueTarget reserves a fresh object key under the caller's prefix and signs
// a PUT URL for it.
func (s *DocumentService) IssueTarget(ctx context.Context, userID, filename string) (*models.UploadTarget, error) {
	key := s.objectKey(userID, uuid.NewString(), filename)

	url, err := s.storage.PresignUpload(ctx, s.bucket, key, defaultContentType, s.ttl)
	if err != nil {
		return nil, err
	}
	metrics.TargetsIssued.Inc()

	return &models.UploadTarget{
		UploadURL:  url,
		ObjectKey:  key,
		BucketName: s.bucket,
		ExpiresAt:  s.now().Add(s.ttl).UTC(),
	}, nil
}

// RegisterUpload records an object the client already stored through a signed URL.
func (s *DocumentService) RegisterUpload(ctx context.Context, userID string, in RecordInput) (*models.Document, error) {
	switch {
	case strings.TrimSpace(in.FileName) == "":
		return nil, fmt.Errorf("%w: file_name is required", ErrInvalidRecord)
	case strings.TrimSpace(in.FilePath) == "":
		return nil, fmt.Errorf("%w: file_path is required", ErrInvalidRecord)
	case in.FileSize < 0:
		return nil, fmt.Errorf("%w: file_size must not be negative", ErrInvalidRecord)
	case in.Bucket == "":
		return nil, fmt.Errorf("%w: gcs_bucket is required", ErrInvalidRecord)
	case in.ObjectPath == "":
		return nil, fmt.Errorf("%w: gcs_path is required", ErrInvalidRecord)
	}
	if in.Bucket != s.bucket {
		return nil, fmt.Errorf("%w: %s", ErrWrongBucket, in.Bucket)
	}
	if !s.owns(userID, in.ObjectPath) {
		return nil, ErrForeignObject
	}
	if in.UploadSource == "" {
		in.UploadSource = models.SourceGCS
	}

	doc := &models.Document{
		ID:           uuid.NewString(),
		UserID:       userID,
		FileName:     in.FileName,
		FilePath:     in.FilePath,
		FileSize:     in.FileSize,
		UploadSource: in.UploadSource,
		Bucket:       in.Bucket,
		ObjectPath:   in.ObjectPath,
		ContentType:  contentTypeFor(in.FileName),
		Status:       models.StatusUploaded,
	}
	if err := s.create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// UploadDirect stores the bytes itself and records them.
func (s *DocumentService) UploadDirect(ctx context.Context, userID, filename, contentType string, size int64, data io.Reader) (*models.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidRecord)
	}
	if contentType == "" {
		contentType = contentTypeFor(filename)
	}

	docID := uuid.NewString()
	key := s.objectKey(userID, docID, filename)

	if _, err := s.storage.UploadFile(ctx, s.bucket, key, data, contentType); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:           docID,
		UserID:       userID,
		FileName:     filename,
		FilePath:     filename,
		FileSize:     size,
		UploadSource: models.SourceDirect,
		Bucket:       s.bucket,
		ObjectPath:   key,
		ContentType:  contentType,
		Status:       models.StatusUploaded,
	}
	if err := s.create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	return s.db.ListDocumentsByUser(ctx, userID)
}

// Get returns the record only when userID owns it.
func (s *DocumentService) Get(ctx context.Context, userID, id string) (*models.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrDocumentNotFound
	}
	doc, err := s.db.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.UserID != userID {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Open streams the stored object of a record. The caller closes the reader.
func (s *DocumentService) Open(ctx context.Context, userID, id string) (*models.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.storage.GetObjectReader(ctx, doc.Bucket, doc.ObjectPath)
	if err != nil {
		if errors.Is(err, core.ErrObjectNotFound) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, err
	}
	return doc, rc, nil
}

// Delete removes the stored object, then the record.
func (s *DocumentService) Delete(ctx context.Context, userID, id string) error {
	doc, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteFile(ctx, doc.Bucket, doc.ObjectPath); err != nil && !errors.Is(err, core.ErrObjectNotFound) {
		return err
	}
	if err := s.db.DeleteDocument(ctx, doc.ID); err != nil {
		if errors.Is(err, core.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	return nil
}

func (s *DocumentService) SetStatus(ctx context.Context, docID string, status string) error {
	return s.db.UpdateDocumentStatus(ctx, docID, status)
}

func (s *DocumentService) create(ctx context.Context, doc *models.Document) error {
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return err
	}
	metrics.RecordsCreated.WithLabelValues(doc.UploadSource).Inc()
	metrics.BytesRegistered.Add(float64(doc.FileSize))

	if s.queue != nil && !s.queue.Enqueue(doc.ID) {
		log.Warn().Str("document_id", doc.ID).Msg("verification queue full; record left unverified")
	}
	return nil
}

// objectKey creates a consistent key layout: <prefix>/<user>/<id>/<file>.
func (s *DocumentService) objectKey(userID, docID, filename string) string {
	parts := []string{s.userPrefix(userID), docID}
	if name := sanitizeFilename(filename); name != "" {
		parts = append(parts, name)
	}
	return path.Join(parts...)
}

func (s *DocumentService) userPrefix(userID string) string {
	if s.prefix == "" {
		return userID
	}
	return s.prefix + "/" + userID
}

func (s *DocumentService) owns(userID, key string) bool {
	if path.Clean(key) != key {
		return false
	}
	return strings.HasPrefix(key, s.userPrefix(userID)+"/")
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.ReplaceAll(name, " ", "_")
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return defaultContentType
}
