// Package handler contains HTTP handlers for the LabSnap API.
//
// This file implements the PRO problem history endpoints.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/labsnap/internal/auth"
	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/DukeRupert/labsnap/internal/service"
	"github.com/google/uuid"
)

// =============================================================================
// Request / Response Types
// =============================================================================

// HistoryListResponse is the body of GET /api/history.
type HistoryListResponse struct {
	Problems []domain.Problem `json:"problems"`
}

// FavoriteRequest is the body of PUT /api/history/{id}/favorite.
type FavoriteRequest struct {
	IsFavorite *bool `json:"is_favorite"`
}

// FavoriteResponse echoes the stored favourite flag.
type FavoriteResponse struct {
	ID         uuid.UUID `json:"id"`
	IsFavorite bool      `json:"is_favorite"`
}

// =============================================================================
// Handler Configuration
// =============================================================================

// HistoryHandler serves a PRO user's saved problems.
type HistoryHandler struct {
	history service.HistoryService
	logger  *slog.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(history service.HistoryService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger,
	}
}

// RegisterRoutes registers the history routes with the provided mux.
//
// Routes:
// - GET    /api/history               -> List
// - GET    /api/history/{id}          -> Get
// - PUT    /api/history/{id}/favorite -> SetFavorite
// - DELETE /api/history/{id}          -> Delete
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/history", h.List)
	mux.HandleFunc("GET /api/history/{id}", h.Get)
	mux.HandleFunc("PUT /api/history/{id}/favorite", h.SetFavorite)
	mux.HandleFunc("DELETE /api/history/{id}", h.Delete)
}

// List returns the caller's problems, newest first.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	problems, err := h.history.List(r.Context(), auth.GetIdentityFromRequest(r))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryListResponse{Problems: problems})
}

// Get returns one saved problem.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := problemID(r, "handler.history_get")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	problem, err := h.history.Get(r.Context(), auth.GetIdentityFromRequest(r), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, problem)
}

// SetFavorite marks or unmarks a problem as favourite.
func (h *HistoryHandler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	const op = "handler.history_favorite"

	id, err := problemID(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req FavoriteRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.IsFavorite == nil {
		ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "is_favorite", "is_favorite is required"))
		return
	}

	if err := h.history.SetFavorite(r.Context(), auth.GetIdentityFromRequest(r), id, *req.IsFavorite); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, FavoriteResponse{ID: id, IsFavorite: *req.IsFavorite})
}

// Delete removes a saved problem.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := problemID(r, "handler.history_delete")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.history.Delete(r.Context(), auth.GetIdentityFromRequest(r), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
