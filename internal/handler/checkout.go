// Package handler contains HTTP handlers for the LabSnap API.
//
// This file implements the simulated PRO checkout.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/labsnap/internal/auth"
	"github.com/DukeRupert/labsnap/internal/billing"
	"github.com/DukeRupert/labsnap/internal/service"
)

// CheckoutHandler handles PRO purchases.
type CheckoutHandler struct {
	checkout service.CheckoutService
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkout service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		logger:   logger,
	}
}

// RegisterRoutes registers the checkout route with the provided mux.
//
// Routes:
// - POST /api/checkout -> Checkout
func (h *CheckoutHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.Checkout)
}

// Checkout validates the card form and upgrades the caller to PRO.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	const op = "handler.checkout"

	var form billing.CheckoutForm
	if err := decodeJSON(w, r, op, &form); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	id := auth.GetIdentityFromRequest(r)
	result, err := h.checkout.Checkout(r.Context(), id.UserID, form, r.Header.Get("Accept-Language"))
	if err != nil {
		if r.Context().Err() != nil {
			h.logger.Info("client went away during checkout", "user_id", id.UserID)
			return
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
