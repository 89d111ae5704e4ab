package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	*httptest.Server
	mu          sync.Mutex
	stored      map[string]int
	records     []map[string]string
	confirmCode int
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{stored: map[string]int{}, confirmCode: http.StatusCreated}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/get-upload-url/", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("filename")
		key := "uploads/u1/" + name
		_ = json.NewEncoder(w).Encode(map[string]string{
			"upload_url":  b.URL + "/bucket/" + key,
			"filename":    key,
			"bucket_name": "b1",
		})
	})
	mux.HandleFunc("PUT /bucket/", func(w http.ResponseWriter, r *http.Request) {
		n, _ := io.Copy(io.Discard, r.Body)
		b.mu.Lock()
		b.stored[strings.TrimPrefix(r.URL.Path, "/bucket/")] = int(n)
		b.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/upload/", func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		rec := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			rec[k] = v[0]
		}
		b.mu.Lock()
		b.records = append(b.records, rec)
		code := b.confirmCode
		b.mu.Unlock()

		w.WriteHeader(code)
		if code == http.StatusCreated {
			_, _ = io.WriteString(w, `{"id":"doc-1","gcs_path":"`+rec["gcs_path"]+`"}`)
		} else {
			_, _ = io.WriteString(w, `{"error":"database unavailable"}`)
		}
	})
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "correct horse" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"tok-123"}`)
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, bytes.Repeat([]byte{7}, size), 0o600))
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUploadCommand(t *testing.T) {
	be := newBackend(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.h5", 2048)
	b := writeFile(t, dir, "b.nc", 10)

	out, err := execute(t, "upload", "--server", be.URL, "--token", "t", "--concurrency", "2", a, b)
	require.NoError(t, err, out)

	assert.Equal(t, 2048, be.stored["uploads/u1/a.h5"])
	assert.Equal(t, 10, be.stored["uploads/u1/b.nc"])
	require.Len(t, be.records, 2)
	for _, rec := range be.records {
		assert.Equal(t, "gcs", rec["upload_source"])
		assert.Equal(t, "b1", rec["gcs_bucket"])
	}

	assert.Contains(t, out, "[a.h5] requesting upload URL")
	assert.Contains(t, out, "[a.h5] 100.0% 2.0 KiB / 2.0 KiB")
	assert.Contains(t, out, "[a.h5] upload complete")
	assert.Contains(t, out, `[b.nc] record: {"id":"doc-1","gcs_path":"uploads/u1/b.nc"}`)
}

func TestUploadCommandRejectsInvalidFiles(t *testing.T) {
	be := newBackend(t)
	dir := t.TempDir()
	good := writeFile(t, dir, "good.h5", 4)
	bad := writeFile(t, dir, "notes.txt", 4)
	big := writeFile(t, dir, "big.h5", 2048)

	out, err := execute(t, "upload", "--server", be.URL, "--max-size", "1KiB", good, bad, big, filepath.Join(dir, "absent.h5"))
	require.EqualError(t, err, "3 of 4 files failed")

	assert.Contains(t, out, "notes.txt] rejected: ")
	assert.Contains(t, out, "big.h5] rejected: upload: big.h5: file size 2.0 KiB exceeds maximum allowed size of 1.0 KiB")
	assert.Contains(t, out, "absent.h5] rejected: ")
	assert.Contains(t, out, "[good.h5] upload complete")
	assert.Len(t, be.stored, 1)
}

func TestUploadCommandReportsOrphan(t *testing.T) {
	be := newBackend(t)
	be.confirmCode = http.StatusInternalServerError
	p := writeFile(t, t.TempDir(), "scan.h5", 16)

	out, err := execute(t, "upload", "--server", be.URL, p)
	require.Error(t, err)

	assert.Contains(t, out, "[scan.h5] upload failed")
	assert.Contains(t, out, "[scan.h5] object b1/uploads/u1/scan.h5 was stored but not registered")
	assert.Equal(t, 16, be.stored["uploads/u1/scan.h5"])
}

func TestUploadCommandEnvConfig(t *testing.T) {
	be := newBackend(t)
	t.Setenv("UPLOADER_SERVER", be.URL)
	t.Setenv("UPLOADER_SOURCE_TAG", "cloud")
	p := writeFile(t, t.TempDir(), "scan.h5", 16)

	_, err := execute(t, "upload", p)
	require.NoError(t, err)
	require.Len(t, be.records, 1)
	assert.Equal(t, "cloud", be.records[0]["upload_source"])
}

func TestLoginCommand(t *testing.T) {
	be := newBackend(t)

	out, err := execute(t, "login", "--server", be.URL, "--email", "ada@example.com", "--password", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "tok-123\n", out)

	_, err = execute(t, "login", "--server", be.URL, "--email", "ada@example.com", "--password", "wrong")
	assert.ErrorContains(t, err, "401")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}
