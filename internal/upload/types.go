package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

const octetStream = "application/octet-stream"

// FileHandle describes the file selected for upload. It is never mutated by the package.
type FileHandle struct {
	Name         string
	SizeBytes    int64
	DeclaredType string

	open func() (io.ReadCloser, error)
}

// NewFileHandle builds a handle whose content is produced by open. Every attempt
// calls open once, so open must return a fresh reader each time.
func NewFileHandle(name string, size int64, declaredType string, open func() (io.ReadCloser, error)) FileHandle {
	return FileHandle{Name: name, SizeBytes: size, DeclaredType: declaredType, open: open}
}

// BytesFile wraps an in-memory payload.
func BytesFile(name string, data []byte) FileHandle {
	return NewFileHandle(name, int64(len(data)), declaredType(name), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// OpenFile stats path and returns a handle that reopens it for each attempt.
func OpenFile(path string) (FileHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileHandle{}, err
	}
	if info.IsDir() {
		return FileHandle{}, fmt.Errorf("%s is a directory", path)
	}
	name := filepath.Base(path)
	return NewFileHandle(name, info.Size(), declaredType(name), func() (io.ReadCloser, error) {
		return os.Open(path)
	}), nil
}

// Open returns a reader over the file content.
func (f FileHandle) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %s has no content", f.Name)
	}
	return f.open()
}

func declaredType(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return octetStream
}

// UploadTarget is the write-once destination issued for a single attempt.
type UploadTarget struct {
	UploadURL string `json:"upload_url"`
	ObjectKey string `json:"filename"`
	BucketID  string `json:"bucket_name"`
}

func (t UploadTarget) validate() error {
	switch {
	case t.UploadURL == "":
		return fmt.Errorf("%w: missing upload_url", errMalformedTarget)
	case t.ObjectKey == "":
		return fmt.Errorf("%w: missing filename", errMalformedTarget)
	case t.BucketID == "":
		return fmt.Errorf("%w: missing bucket_name", errMalformedTarget)
	}
	return nil
}

// ConfirmRequest is the metadata sent to the backend once the bytes are stored.
type ConfirmRequest struct {
	FileName     string
	FilePath     string
	FileSize     int64
	UploadSource string
	Bucket       string
	ObjectPath   string
}

// UploadRecord is the backend's confirmation response. Its content is not interpreted.
type UploadRecord json.RawMessage

// Decode unmarshals the record into v.
func (r UploadRecord) Decode(v any) error {
	return json.Unmarshal(r, v)
}

// MarshalJSON returns the record unchanged.
func (r UploadRecord) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r UploadRecord) String() string {
	return string(r)
}
