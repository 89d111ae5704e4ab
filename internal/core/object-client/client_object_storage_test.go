package objectclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Stratus/internal/config"
	"github.com/markdave123-py/Stratus/internal/core"
)

func testConfig(endpoint string) *config.Config {
	return &config.Config{
		AwsAccessKey:    "GOOG1EXAMPLE",
		AwsSecretKey:    "secret",
		AwsRegion:       "us-central1",
		BucketName:      "b1",
		StorageEndpoint: endpoint,
	}
}

func TestNewS3ClientRequiresSettings(t *testing.T) {
	cfg := testConfig("")
	cfg.AwsSecretKey = ""
	_, err := NewS3Client(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig("")
	cfg.BucketName = ""
	_, err = NewS3Client(context.Background(), cfg)
	assert.Error(t, err)
}

func TestPresignUpload(t *testing.T) {
	client, err := NewS3Client(context.Background(), testConfig("https://storage.googleapis.com/"))
	require.NoError(t, err)

	raw, err := client.PresignUpload(context.Background(), "b1", "uploads/u1/abc/scan.h5", "application/octet-stream", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "storage.googleapis.com", u.Host)
	assert.Equal(t, "/b1/uploads/u1/abc/scan.h5", u.Path)

	q := u.Query()
	assert.Equal(t, "900", q.Get("X-Amz-Expires"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
	assert.Contains(t, q.Get("X-Amz-SignedHeaders"), "content-type")
}

func TestStatFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		switch r.URL.Path {
		case "/b1/present.h5":
			w.Header().Set("Content-Length", "1048576")
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("ETag", `"abc123"`)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewS3Client(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)

	info, err := client.StatFile(context.Background(), "b1", "present.h5")
	require.NoError(t, err)
	assert.Equal(t, int64(1048576), info.Size)
	assert.Equal(t, "abc123", info.ETag)

	_, err = client.StatFile(context.Background(), "b1", "gone.h5")
	assert.ErrorIs(t, err, core.ErrObjectNotFound)
}

func TestGetObjectReader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/b1/scan.h5" {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		_, _ = io.WriteString(w, "HDF")
	}))
	defer srv.Close()

	client, err := NewS3Client(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)

	rc, err := client.GetObjectReader(context.Background(), "b1", "scan.h5")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "HDF", string(body))

	_, err = client.GetObjectReader(context.Background(), "b1", "other.h5")
	assert.ErrorIs(t, err, core.ErrObjectNotFound)
}
