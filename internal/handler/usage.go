// Package handler contains HTTP handlers for the LabSnap API.
//
// This file implements the usage and pricing endpoints.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/labsnap/internal/auth"
	"github.com/DukeRupert/labsnap/internal/billing"
	"github.com/DukeRupert/labsnap/internal/service"
)

// =============================================================================
// Response Types
// =============================================================================

// UsageResponse is the caller's identity and entitlement summary.
type UsageResponse struct {
	UserID        string `json:"user_id"`
	Authenticated bool   `json:"authenticated"`
	*service.UsageStatus
}

// =============================================================================
// Handler Configuration
// =============================================================================

// UsageHandler reports plan status and prices.
type UsageHandler struct {
	metering service.MeteringService
	logger   *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(metering service.MeteringService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		metering: metering,
		logger:   logger,
	}
}

// RegisterRoutes registers the usage routes with the provided mux.
//
// Routes:
// - GET /api/usage   -> Usage
// - GET /api/pricing -> Pricing
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/usage", h.Usage)
	mux.HandleFunc("GET /api/pricing", h.Pricing)
}

// =============================================================================
// GET /api/usage
// =============================================================================

// Usage returns the effective plan, remaining uses and countdown state.
func (h *UsageHandler) Usage(w http.ResponseWriter, r *http.Request) {
	id := auth.GetIdentityFromRequest(r)

	status, err := h.metering.Status(r.Context(), id.UserID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, UsageResponse{
		UserID:        id.UserID,
		Authenticated: id.Authenticated,
		UsageStatus:   status,
	})
}

// =============================================================================
// GET /api/pricing
// =============================================================================

// Pricing returns the PRO price for the client's language.
func (h *UsageHandler) Pricing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Vary", "Accept-Language")
	writeJSON(w, http.StatusOK, billing.PriceFor(r.Header.Get("Accept-Language")))
}
