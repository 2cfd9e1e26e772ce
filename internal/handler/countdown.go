// Package handler contains HTTP handlers for the LabSnap API.
//
// This file implements the countdown event stream.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/labsnap/internal/auth"
	"github.com/DukeRupert/labsnap/internal/countdown"
)

// DefaultKeepAlive is how often an idle stream sends a comment line.
const DefaultKeepAlive = 15 * time.Second

// CountdownHandler streams the caller's cooldown countdown.
type CountdownHandler struct {
	countdowns *countdown.Registry
	keepAlive  time.Duration
	logger     *slog.Logger
}

// NewCountdownHandler creates a new CountdownHandler. keepAlive <= 0 uses
// DefaultKeepAlive.
func NewCountdownHandler(countdowns *countdown.Registry, keepAlive time.Duration, logger *slog.Logger) *CountdownHandler {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &CountdownHandler{
		countdowns: countdowns,
		keepAlive:  keepAlive,
		logger:     logger,
	}
}

// RegisterRoutes registers the countdown route with the provided mux.
//
// Routes:
// - GET /api/countdown -> Stream
func (h *CountdownHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/countdown", h.Stream)
}

// Stream sends the current countdown state, then one "countdown" event per
// change until the client disconnects.
func (h *CountdownHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := auth.GetIdentityFromRequest(r)
	rc := http.NewResponseController(w)

	// The stream outlives the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	states, unsubscribe := h.countdowns.Subscribe(id.UserID)
	defer unsubscribe()

	if err := writeEvent(w, rc, h.countdowns.State(id.UserID)); err != nil {
		return
	}

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case state := <-states:
			if err := writeEvent(w, rc, state); err != nil {
				h.logger.Debug("countdown stream closed", "user_id", id.UserID, "error", err)
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, state countdown.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: countdown\ndata: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
