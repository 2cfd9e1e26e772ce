// Package handler contains HTTP handlers for the LabSnap API.
//
// This file implements the photo and text solve endpoints.
package handler

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/labsnap/internal/auth"
	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/DukeRupert/labsnap/internal/service"
	"github.com/DukeRupert/labsnap/internal/storage"
)

const (
	// maxMultipartMemory is how much of an upload is held in memory before
	// spilling to disk.
	maxMultipartMemory = 8 << 20

	// multipartOverhead allows for boundaries and headers around the photo.
	multipartOverhead = 1 << 20
)

// =============================================================================
// Request / Response Types
// =============================================================================

// SolveTextRequest is the body of POST /api/solve/text.
type SolveTextRequest struct {
	ProblemText string `json:"problem_text"`
}

// DenialResponse is returned when the entitlement gate refuses a request.
type DenialResponse struct {
	domain.Decision
	Plan domain.Plan `json:"plan"`
}

// =============================================================================
// Handler Configuration
// =============================================================================

// SolveHandler handles problem submissions.
type SolveHandler struct {
	solver service.SolveService
	logger *slog.Logger
}

// NewSolveHandler creates a new SolveHandler.
func NewSolveHandler(solver service.SolveService, logger *slog.Logger) *SolveHandler {
	return &SolveHandler{
		solver: solver,
		logger: logger,
	}
}

// RegisterRoutes registers the solve routes with the provided mux.
//
// Both routes go through the rate limiter.
//
// Routes:
// - POST /api/solve/photo -> SolvePhoto
// - POST /api/solve/text  -> SolveText
func (h *SolveHandler) RegisterRoutes(mux *http.ServeMux, rateLimit func(http.Handler) http.Handler) {
	mux.Handle("POST /api/solve/photo", rateLimit(http.HandlerFunc(h.SolvePhoto)))
	mux.Handle("POST /api/solve/text", rateLimit(http.HandlerFunc(h.SolveText)))
}

// =============================================================================
// POST /api/solve/photo
// =============================================================================

// SolvePhoto solves a problem from an uploaded photo in the "image" field.
func (h *SolveHandler) SolvePhoto(w http.ResponseWriter, r *http.Request) {
	const op = "handler.solve_photo"

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, op, "Photo must be smaller than %d MB", storage.MaxImageSize>>20))
			return
		}
		ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "image", "Please attach a photo of the problem"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("image")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "image", "Please attach a photo of the problem"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxImageSize+1))
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	// Browsers send octet-stream for files they cannot classify; fall back
	// to the extension and then the bytes.
	provided := header.Header.Get("Content-Type")
	if provided == "application/octet-stream" {
		provided = ""
	}
	contentType := storage.DetectContentType(provided, header.Filename, bytes.NewReader(data))

	h.solve(w, r, service.SolveParams{
		Identity:    auth.GetIdentityFromRequest(r),
		Kind:        domain.KindPhoto,
		ImageData:   data,
		ContentType: contentType,
	})
}

// =============================================================================
// POST /api/solve/text
// =============================================================================

// SolveText solves a typed problem.
func (h *SolveHandler) SolveText(w http.ResponseWriter, r *http.Request) {
	const op = "handler.solve_text"

	var req SolveTextRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.solve(w, r, service.SolveParams{
		Identity:    auth.GetIdentityFromRequest(r),
		Kind:        domain.KindCalculator,
		ProblemText: req.ProblemText,
	})
}

func (h *SolveHandler) solve(w http.ResponseWriter, r *http.Request, params service.SolveParams) {
	result, err := h.solver.Solve(r.Context(), params)
	if err != nil {
		if r.Context().Err() != nil {
			h.logger.Info("client went away during solve", "user_id", params.Identity.UserID, "kind", params.Kind)
			return
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if !result.Decision.Allowed {
		writeDenial(w, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeDenial maps an entitlement refusal to its status: a spent daily cap
// is 402 (upgrade to continue), a cooldown is 429 with Retry-After.
func writeDenial(w http.ResponseWriter, result *service.SolveResult) {
	status := http.StatusBadRequest
	switch result.Decision.Denial {
	case domain.DenialDailyCap:
		status = http.StatusPaymentRequired
	case domain.DenialCooldown:
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", strconv.Itoa(result.Decision.WaitSeconds))
	}
	writeJSON(w, status, DenialResponse{
		Decision: result.Decision,
		Plan:     result.Plan,
	})
}
