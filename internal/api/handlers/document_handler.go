package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	middleware "github.com/markdave123-py/Stratus/internal/api/middlewares"
	"github.com/markdave123-py/Stratus/internal/logger"
	"github.com/markdave123-py/Stratus/internal/services"
)

// multipart overhead allowed on top of the direct upload limit
const formSlack = 1 << 20

type DocumentHandler struct {
	docs          *services.DocumentService
	maxDirectSize int64
}

func NewDocumentHandler(docs *services.DocumentService, maxDirectSize int64) *DocumentHandler {
	return &DocumentHandler{docs: docs, maxDirectSize: maxDirectSize}
}

// GetUploadURL issues a signed PUT target for the caller.
func (h *DocumentHandler) GetUploadURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_id not found in context")
		return
	}

	target, err := h.docs.IssueTarget(r.Context(), userID, r.URL.Query().Get("filename"))
	if err != nil {
		h.fail(w, r, err, "issue upload url")
		return
	}
	writeJSON(w, http.StatusOK, target)
}

// UploadDocument records an object uploaded through a signed URL, or stores the
// attached file itself when the form carries one.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_id not found in context")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxDirectSize+formSlack)
	if err := r.ParseMultipartForm(h.maxDirectSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		h.storeDirect(w, r, userID, file, header.Filename, header.Header.Get("Content-Type"), header.Size)
		return
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		writeError(w, http.StatusBadRequest, "invalid file")
		return
	}

	in, err := recordFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.docs.RegisterUpload(r.Context(), userID, in)
	if err != nil {
		h.fail(w, r, err, "register upload")
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) storeDirect(w http.ResponseWriter, r *http.Request, userID string, file io.Reader, filename, contentType string, size int64) {
	if size > h.maxDirectSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds direct upload limit")
		return
	}
	if name := r.FormValue("file_name"); name != "" {
		filename = name
	}
	filename = filepath.Base(filename)

	doc, err := h.docs.UploadDirect(r.Context(), userID, filename, contentType, size, file)
	if err != nil {
		h.fail(w, r, err, "direct upload")
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_id not found in context")
		return
	}

	documents, err := h.docs.ListByUser(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err, "list documents")
		return
	}
	writeJSON(w, http.StatusOK, documents)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_id not found in context")
		return
	}

	doc, err := h.docs.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "get document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_id not found in context")
		return
	}

	doc, rc, err := h.docs.Open(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "open document")
		return
	}
	defer rc.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Str("document_id", doc.ID).Msg("download interrupted")
	}
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_id not found in context")
		return
	}

	if err := h.docs.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err, "delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) fail(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, services.ErrInvalidRecord), errors.Is(err, services.ErrWrongBucket):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrForeignObject):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	default:
		logger.Ctx(r.Context()).Error().Err(err).Str("op", op).Msg("request failed")
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

func recordFromForm(r *http.Request) (services.RecordInput, error) {
	in := services.RecordInput{
		FileName:     strings.TrimSpace(r.FormValue("file_name")),
		FilePath:     strings.TrimSpace(r.FormValue("file_path")),
		UploadSource: strings.TrimSpace(r.FormValue("upload_source")),
		Bucket:       strings.TrimSpace(r.FormValue("gcs_bucket")),
		ObjectPath:   strings.TrimSpace(r.FormValue("gcs_path")),
	}

	raw := strings.TrimSpace(r.FormValue("file_size"))
	if raw == "" {
		return in, errors.New("file_size is required")
	}
	size, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || size < 0 {
		return in, errors.New("file_size must be a non-negative integer")
	}
	in.FileSize = size
	return in, nil
}
