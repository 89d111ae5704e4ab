package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTargetPath is the backend route that issues upload targets.
	DefaultTargetPath = "/api/get-upload-url/"

	// DefaultRecordPath is the backend route that registers stored objects.
	DefaultRecordPath = "/api/upload/"

	maxErrorBody = 4096
)

// HTTPClient talks to the backend and the object store over HTTP. It implements
// TargetSource, Transferrer and Confirmer.
type HTTPClient struct {
	client     *http.Client
	baseURL    *url.URL
	targetPath string
	recordPath string
	token      string
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(h *HTTPClient) {
		if c != nil {
			h.client = c
		}
	}
}

// WithToken sets the bearer token sent to the backend. It is never sent to the
// object store.
func WithToken(token string) ClientOption {
	return func(h *HTTPClient) {
		h.token = strings.TrimSpace(token)
	}
}

// WithPaths overrides the backend routes. Empty values keep the defaults.
func WithPaths(targetPath, recordPath string) ClientOption {
	return func(h *HTTPClient) {
		if targetPath != "" {
			h.targetPath = targetPath
		}
		if recordPath != "" {
			h.recordPath = recordPath
		}
	}
}

// NewHTTPClient returns a client for the backend at baseURL.
func NewHTTPClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q must use http or https", baseURL)
	}

	h := &HTTPClient{
		client:     &http.Client{Timeout: 30 * time.Minute},
		baseURL:    u,
		targetPath: DefaultTargetPath,
		recordPath: DefaultRecordPath,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// AcquireTarget requests a signed upload URL for file.
func (h *HTTPClient) AcquireTarget(ctx context.Context, file FileHandle) (UploadTarget, error) {
	endpoint := h.endpoint(h.targetPath)
	if file.Name != "" {
		q := endpoint.Query()
		q.Set("filename", file.Name)
		endpoint.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return UploadTarget{}, err
	}
	req.Header.Set("Accept", "application/json")
	h.authorize(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return UploadTarget{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus("get upload url", resp); err != nil {
		return UploadTarget{}, err
	}

	var target UploadTarget
	if err := json.NewDecoder(resp.Body).Decode(&target); err != nil {
		return UploadTarget{}, fmt.Errorf("%w: %v", errMalformedTarget, err)
	}
	return target, nil
}

// Transfer PUTs the raw file bytes to the signed URL.
func (h *HTTPClient) Transfer(ctx context.Context, target UploadTarget, file FileHandle, onProgress func(TransferProgress)) error {
	body, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer body.Close()

	var reader io.Reader = body
	if file.SizeBytes > 0 {
		reader = &progressReader{reader: body, total: file.SizeBytes, onUpdate: onProgress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.UploadURL, reader)
	if err != nil {
		return err
	}
	req.ContentLength = file.SizeBytes
	if file.SizeBytes == 0 {
		req.Body = http.NoBody
	}
	req.Header.Set("Content-Type", octetStream)

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus("put object", resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Confirm posts the object metadata as a multipart form and returns the backend's
// response body untouched.
func (h *HTTPClient) Confirm(ctx context.Context, cr ConfirmRequest) (UploadRecord, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := []struct{ key, value string }{
		{"file_name", cr.FileName},
		{"file_path", cr.FilePath},
		{"file_size", strconv.FormatInt(cr.FileSize, 10)},
		{"upload_source", cr.UploadSource},
		{"gcs_bucket", cr.Bucket},
		{"gcs_path", cr.ObjectPath},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.key, f.value); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint(h.recordPath).String(), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	h.authorize(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus("create record", resp); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return UploadRecord("null"), nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("record response is not valid json")
	}
	return UploadRecord(raw), nil
}

func (h *HTTPClient) endpoint(path string) *url.URL {
	u := *h.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return &u
}

func (h *HTTPClient) authorize(req *http.Request) {
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
