// Package service contains the business logic layer.
//
// This file implements the PRO problem history.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/labsnap/internal/auth"
	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/DukeRupert/labsnap/internal/storage"
	"github.com/DukeRupert/labsnap/internal/store"
	"github.com/google/uuid"
)

// imageURLExpiry is how long a history photo link stays valid.
const imageURLExpiry = 15 * time.Minute

// =============================================================================
// Interface Definition
// =============================================================================

// HistoryService reads and edits a user's saved problems.
//
// Every operation requires a signed-in account on an effective PRO plan.
// Returns domain.EUNAUTHORIZED for the demo account and domain.EPAYMENT when
// PRO is not active.
type HistoryService interface {
	// List returns the user's problems, newest first.
	List(ctx context.Context, id auth.Identity) ([]domain.Problem, error)

	// Get returns one problem. Returns domain.ENOTFOUND if it does not exist
	// or belongs to someone else.
	Get(ctx context.Context, id auth.Identity, problemID uuid.UUID) (*domain.Problem, error)

	// SetFavorite marks or unmarks a problem as favourite.
	SetFavorite(ctx context.Context, id auth.Identity, problemID uuid.UUID, favorite bool) error

	// Delete removes a problem and its stored photo.
	Delete(ctx context.Context, id auth.Identity, problemID uuid.UUID) error
}

// =============================================================================
// Implementation
// =============================================================================

type historyService struct {
	history  store.HistoryStore
	storage  storage.Storage
	metering MeteringService
	logger   *slog.Logger
}

// NewHistoryService creates a new HistoryService. files may be nil.
func NewHistoryService(history store.HistoryStore, files storage.Storage, metering MeteringService, logger *slog.Logger) HistoryService {
	return &historyService{
		history:  history,
		storage:  files,
		metering: metering,
		logger:   logger,
	}
}

func (s *historyService) List(ctx context.Context, id auth.Identity) ([]domain.Problem, error) {
	const op = "history.list"

	if err := s.authorize(ctx, op, id); err != nil {
		return nil, err
	}

	problems, err := s.history.List(ctx, id.UserID)
	if err != nil {
		return nil, domain.Internal(err, op, "Unable to load history")
	}
	for i := range problems {
		s.attachImageURL(ctx, &problems[i])
	}
	return problems, nil
}

func (s *historyService) Get(ctx context.Context, id auth.Identity, problemID uuid.UUID) (*domain.Problem, error) {
	const op = "history.get"

	if err := s.authorize(ctx, op, id); err != nil {
		return nil, err
	}

	problem, err := s.history.Get(ctx, id.UserID, problemID)
	if err != nil {
		return nil, s.mapStoreError(err, op, problemID)
	}
	s.attachImageURL(ctx, problem)
	return problem, nil
}

func (s *historyService) SetFavorite(ctx context.Context, id auth.Identity, problemID uuid.UUID, favorite bool) error {
	const op = "history.set_favorite"

	if err := s.authorize(ctx, op, id); err != nil {
		return err
	}
	if err := s.history.SetFavorite(ctx, id.UserID, problemID, favorite); err != nil {
		return s.mapStoreError(err, op, problemID)
	}
	return nil
}

func (s *historyService) Delete(ctx context.Context, id auth.Identity, problemID uuid.UUID) error {
	const op = "history.delete"

	if err := s.authorize(ctx, op, id); err != nil {
		return err
	}

	problem, err := s.history.Get(ctx, id.UserID, problemID)
	if err != nil {
		return s.mapStoreError(err, op, problemID)
	}
	if err := s.history.Delete(ctx, id.UserID, problemID); err != nil {
		return s.mapStoreError(err, op, problemID)
	}

	if problem.HasImage() && s.storage != nil {
		if err := s.storage.Delete(ctx, problem.ImageKey); err != nil && !storage.IsNotFound(err) {
			s.logger.Warn("failed to delete problem photo", "problem_id", problemID, "key", problem.ImageKey, "error", err)
		}
	}

	s.logger.Info("history entry deleted", "user_id", id.UserID, "problem_id", problemID)
	return nil
}

func (s *historyService) authorize(ctx context.Context, op string, id auth.Identity) error {
	if id.IsDemo() {
		return domain.Unauthorized(op, "Sign in to see your history")
	}
	if s.metering.Plan(ctx, id.UserID) != domain.PlanPro {
		return domain.PaymentRequired(op, "History is a PRO feature")
	}
	return nil
}

func (s *historyService) attachImageURL(ctx context.Context, p *domain.Problem) {
	if !p.HasImage() || s.storage == nil {
		return
	}
	url, err := s.storage.URL(ctx, p.ImageKey, imageURLExpiry)
	if err != nil {
		s.logger.Warn("failed to build photo URL", "problem_id", p.ID, "error", err)
		return
	}
	p.ImageURL = url
}

func (s *historyService) mapStoreError(err error, op string, problemID uuid.UUID) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound(op, "problem", problemID.String())
	}
	return domain.Internal(err, op, "Unable to update history")
}
