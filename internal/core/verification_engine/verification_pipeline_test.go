package verification_engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/markdave123-py/Stratus/internal/core"
	"github.com/markdave123-py/Stratus/internal/models"
)

type docStore struct {
	core.DbClient
	mu   sync.Mutex
	docs map[string]*models.Document
}

func (s *docStore) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *docStore) UpdateDocumentStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return core.ErrRecordNotFound
	}
	d.Status = status
	return nil
}

func (s *docStore) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id].Status
}

type objectSizes struct {
	sizes map[string]int64
	err   error
}

func (o *objectSizes) StatFile(_ context.Context, bucket, key string) (*models.ObjectInfo, error) {
	if o.err != nil {
		return nil, o.err
	}
	size, ok := o.sizes[bucket+"/"+key]
	if !ok {
		return nil, core.ErrObjectNotFound
	}
	return &models.ObjectInfo{Size: size}, nil
}

func (o *objectSizes) PresignUpload(context.Context, string, string, string, time.Duration) (string, error) {
	return "", errors.New("unused")
}

func (o *objectSizes) UploadFile(context.Context, string, string, io.Reader, string) (string, error) {
	return "", errors.New("unused")
}

func (o *objectSizes) DeleteFile(context.Context, string, string) error { return errors.New("unused") }

func (o *objectSizes) GetObjectReader(context.Context, string, string) (io.ReadCloser, error) {
	return nil, errors.New("unused")
}

func fixture() (*docStore, *objectSizes) {
	db := &docStore{docs: map[string]*models.Document{
		"ok":      {ID: "ok", Bucket: "b1", ObjectPath: "u/ok.h5", FileSize: 10, Status: models.StatusUploaded},
		"short":   {ID: "short", Bucket: "b1", ObjectPath: "u/short.h5", FileSize: 10, Status: models.StatusUploaded},
		"missing": {ID: "missing", Bucket: "b1", ObjectPath: "u/missing.h5", FileSize: 10, Status: models.StatusUploaded},
	}}
	obj := &objectSizes{sizes: map[string]int64{"b1/u/ok.h5": 10, "b1/u/short.h5": 4}}
	return db, obj
}

func TestProcessOne(t *testing.T) {
	db, obj := fixture()
	v := NewDocumentVerifier(db, obj, nil)

	cases := map[string]string{
		"ok":      models.StatusVerified,
		"short":   models.StatusSizeMismatch,
		"missing": models.StatusMissing,
	}
	for id, want := range cases {
		got, err := v.ProcessOne(context.Background(), id)
		require.NoError(t, err, id)
		assert.Equal(t, want, got, id)
		assert.Equal(t, want, db.status(id), id)
	}

	_, err := v.ProcessOne(context.Background(), "unknown")
	assert.ErrorIs(t, err, core.ErrRecordNotFound)
}

func TestProcessOneStorageErrorKeepsStatus(t *testing.T) {
	db, obj := fixture()
	obj.err = errors.New("503 slow down")
	v := NewDocumentVerifier(db, obj, nil)

	_, err := v.ProcessOne(context.Background(), "ok")
	assert.ErrorIs(t, err, obj.err)
	assert.Equal(t, models.StatusUploaded, db.status("ok"))
}

func TestWorkersDrainQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	db, obj := fixture()
	v := NewDocumentVerifier(db, obj, &VerifyConfig{QueueSize: 8, Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	v.Start(ctx, 2)

	for _, id := range []string{"ok", "short", "missing"} {
		require.True(t, v.Enqueue(id))
	}

	assert.Eventually(t, func() bool {
		return db.status("ok") == models.StatusVerified &&
			db.status("short") == models.StatusSizeMismatch &&
			db.status("missing") == models.StatusMissing
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	v.Wait()
}

func TestEnqueueRefusesWhenFull(t *testing.T) {
	db, obj := fixture()
	v := NewDocumentVerifier(db, obj, &VerifyConfig{QueueSize: 1, Timeout: time.Second})

	assert.True(t, v.Enqueue("ok"))
	assert.False(t, v.Enqueue("short"))
}
