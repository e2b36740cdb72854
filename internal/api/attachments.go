package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	attachDir      = "attachments"
	maxUploadBytes = 50 << 20 // 50 MB
)

// imageExts lists the file types an image record may reference from its
// body. Anything else is rejected at upload and never served back.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".svg":  true,
}

// AttachmentHandler stores and serves the image files that image-type
// records point at. Files live under <vault>/attachments. Uploads get a
// unique name prefix so two clients uploading "photo.jpg" never clobber
// each other; the client links the returned URL into the record body.
type AttachmentHandler struct {
	vaultRoot string
}

// NewAttachmentHandler creates a handler rooted at the vault directory.
func NewAttachmentHandler(vaultRoot string) *AttachmentHandler {
	return &AttachmentHandler{vaultRoot: vaultRoot}
}

func (h *AttachmentHandler) attachPath() string {
	return filepath.Join(h.vaultRoot, attachDir)
}

// safeName validates that the filename is a plain image name (no path
// separators, no traversal, whitelisted extension) and returns the absolute
// path under the attachments dir.
func (h *AttachmentHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if !imageExts[strings.ToLower(filepath.Ext(cleaned))] {
		return "", fmt.Errorf("unsupported attachment type: %s", name)
	}
	abs := filepath.Join(h.attachPath(), cleaned)
	// Double-check the resolved path is under attachments dir.
	if !strings.HasPrefix(abs, h.attachPath()+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes attachments directory")
	}
	return abs, nil
}

// ServeFile handles GET /attachments/{filename}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	abs, err := h.safeName(filename)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/attachments (multipart/form-data, field "file").
// The stored name is returned in the response; the original name is kept as
// a suffix so the file stays recognizable on disk.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	stored := uuid.NewString()[:8] + "-" + filepath.Base(header.Filename)
	abs, err := h.safeName(stored)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	if err := os.MkdirAll(h.attachPath(), 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create attachments dir"))
		return
	}

	written, err := h.store(abs, file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to store file"))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"filename":     stored,
		"size":         written,
		"url":          "/attachments/" + stored,
		"content_type": mime.TypeByExtension(strings.ToLower(filepath.Ext(stored))),
	})
}

// store copies the upload to a temp file in the attachments dir and renames
// it into place, so a partially written upload is never served.
func (h *AttachmentHandler) store(abs string, src io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(h.attachPath(), ".upload-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	return written, os.Rename(tmp.Name(), abs)
}
