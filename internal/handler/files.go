// Package handler contains HTTP handlers for the LabSnap API.
//
// This file serves stored photos when the local storage backend is used.
package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/labsnap/internal/storage"
)

// FileHandler streams objects out of storage.
type FileHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(files storage.Storage, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		storage: files,
		logger:  logger,
	}
}

// RegisterRoutes registers the file route with the provided mux.
//
// Routes:
// - GET /files/{key...} -> Serve
func (h *FileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /files/{key...}", h.Serve)
}

// Serve writes the object stored under key.
func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	body, info, err := h.storage.Get(r.Context(), key)
	if err != nil {
		if storage.IsNotFound(err) {
			NotFoundResponse(w, r, h.logger)
			return
		}
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Cache-Control", "private, max-age=900")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Debug("file copy interrupted", "key", key, "error", err)
	}
}
