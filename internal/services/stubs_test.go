package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/markdave123-py/Stratus/internal/core"
	"github.com/markdave123-py/Stratus/internal/models"
)

type memDB struct {
	mu    sync.Mutex
	users map[string]*models.User
	docs  map[string]*models.Document
	seq   int
}

func newMemDB() *memDB {
	return &memDB{users: map[string]*models.User{}, docs: map[string]*models.Document{}}
}

func (m *memDB) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return fmt.Errorf("users_email_key: %w", core.ErrDuplicate)
	}
	u.CreatedAt = time.Now()
	cp := *u
	m.users[u.Email] = &cp
	return nil
}

func (m *memDB) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memDB) CreateDocument(_ context.Context, d *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	d.CreatedAt = time.Unix(int64(m.seq), 0)
	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

func (m *memDB) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memDB) ListDocumentsByUser(_ context.Context, userID string) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Document{}
	for _, d := range m.docs {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memDB) UpdateDocumentStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return core.ErrRecordNotFound
	}
	d.Status = status
	return nil
}

func (m *memDB) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return core.ErrRecordNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *memDB) Close() error { return nil }

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	ttl     time.Duration
	failPut error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (s *memStorage) PresignUpload(_ context.Context, bucket, key, _ string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	s.ttl = ttl
	s.mu.Unlock()
	return "https://storage.example/" + bucket + "/" + key + "?sig=1", nil
}

func (s *memStorage) UploadFile(_ context.Context, bucket, key string, data io.Reader, _ string) (string, error) {
	if s.failPut != nil {
		return "", s.failPut
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = b
	return "https://storage.example/" + bucket + "/" + key, nil
}

func (s *memStorage) StatFile(_ context.Context, bucket, key string) (*models.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, core.ErrObjectNotFound
	}
	return &models.ObjectInfo{Size: int64(len(b))}, nil
}

func (s *memStorage) DeleteFile(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, bucket+"/"+key)
	delete(s.objects, bucket+"/"+key)
	return nil
}

func (s *memStorage) GetObjectReader(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, core.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type memQueue struct {
	mu   sync.Mutex
	ids  []string
	full bool
}

func (q *memQueue) Enqueue(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.ids = append(q.ids, id)
	return true
}
