// Package service contains the business logic layer.
//
// This file implements the solve flow: gate, analyze, record, then keep the
// result in history for PRO accounts.
package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/labsnap/internal/ai"
	"github.com/DukeRupert/labsnap/internal/auth"
	"github.com/DukeRupert/labsnap/internal/clock"
	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/DukeRupert/labsnap/internal/metrics"
	"github.com/DukeRupert/labsnap/internal/storage"
	"github.com/DukeRupert/labsnap/internal/store"
	"github.com/google/uuid"
)

// historyWriteTimeout bounds a background history write.
const historyWriteTimeout = 30 * time.Second

// =============================================================================
// Interface Definition
// =============================================================================

// SolveService runs one problem through the entitlement gate and analysis.
type SolveService interface {
	// Solve checks the caller's entitlement, analyzes the problem and records
	// the usage. A refused request is returned as a result with
	// Decision.Allowed false, not as an error. A failed analysis returns an
	// EUPSTREAM error and consumes nothing.
	Solve(ctx context.Context, params SolveParams) (*SolveResult, error)

	// Drain waits for background history writes to finish or ctx to end.
	Drain(ctx context.Context) error
}

// SolveParams is one problem submission.
type SolveParams struct {
	Identity    auth.Identity
	Kind        domain.Kind
	ImageData   []byte
	ContentType string
	ProblemText string
}

// SolveResult is the outcome of an allowed or refused submission.
type SolveResult struct {
	Decision       domain.Decision  `json:"decision"`
	Plan           domain.Plan      `json:"plan"`
	Solution       *domain.Solution `json:"solution,omitempty"`
	ProblemID      *uuid.UUID       `json:"problem_id,omitempty"`
	CountdownArmed bool             `json:"countdown_armed"`
	Remaining      int              `json:"remaining"`
}

// =============================================================================
// Implementation
// =============================================================================

type solveService struct {
	metering MeteringService
	analyzer ai.Analyzer
	images   ImageProcessor
	history  store.HistoryStore
	storage  storage.Storage
	clock    clock.Clock
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	pending  sync.WaitGroup
}

// NewSolveService creates a new SolveService. history and files may be nil,
// in which case nothing is kept after a solve.
func NewSolveService(
	metering MeteringService,
	analyzer ai.Analyzer,
	images ImageProcessor,
	history store.HistoryStore,
	files storage.Storage,
	clk clock.Clock,
	logger *slog.Logger,
) SolveService {
	return &solveService{
		metering: metering,
		analyzer: analyzer,
		images:   images,
		history:  history,
		storage:  files,
		clock:    clk,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

func (s *solveService) Solve(ctx context.Context, params SolveParams) (*SolveResult, error) {
	const op = "solve.solve"

	if err := validateSolveParams(op, &params); err != nil {
		return nil, err
	}

	userID := params.Identity.UserID
	kind := string(params.Kind)

	if !s.acquire(userID) {
		metrics.SolveBusy(kind)
		return nil, domain.Conflict(op, "A problem is already being solved for this account. Wait for it to finish.")
	}
	defer s.release(userID)

	decision, plan := s.metering.Check(ctx, userID, params.Kind)
	if !decision.Allowed {
		metrics.SolveDenied(kind, string(decision.Denial))
		s.logger.Info("solve refused", "user_id", userID, "kind", kind, "denial", decision.Denial)
		return &SolveResult{Decision: decision, Plan: plan}, nil
	}

	start := time.Now()
	if params.Kind == domain.KindPhoto {
		params.ImageData, params.ContentType = s.prepare(params.ImageData, params.ContentType)
	}

	sol, err := s.analyzer.Analyze(ctx, ai.AnalyzeParams{
		Kind:        params.Kind,
		ImageData:   params.ImageData,
		ContentType: params.ContentType,
		ProblemText: params.ProblemText,
		UserID:      userID,
	})
	if err != nil {
		metrics.SolveFailed(kind)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("analysis failed", "user_id", userID, "kind", kind, "error", err)
		if errors.Is(err, ai.EAIInvalidInput) || errors.Is(err, ai.EAIContentPolicy) {
			return nil, domain.Wrap(err, domain.EINVALID, op, ai.UserMessage(err))
		}
		return nil, domain.Upstream(err, op, ai.UserMessage(err))
	}

	// The analysis succeeded, so it is counted even if the caller has gone.
	recordCtx := context.WithoutCancel(ctx)
	armed := s.metering.Record(recordCtx, userID, params.Kind)
	metrics.SolveCompleted(kind, time.Since(start))

	result := &SolveResult{
		Decision:       decision,
		Plan:           plan,
		CountdownArmed: armed,
	}
	if status, err := s.metering.Status(recordCtx, userID); err == nil {
		if params.Kind == domain.KindPhoto {
			result.Remaining = status.PhotosRemaining
		} else {
			result.Remaining = status.CalculatorRemaining
		}
	}

	if s.keepsHistory(params.Identity, plan) {
		problem := domain.NewProblem(userID, params.Kind, *sol, "", s.clock.Now())
		if params.Kind == domain.KindCalculator && problem.ProblemText == "" {
			problem.ProblemText = params.ProblemText
		}
		result.ProblemID = &problem.ID
		s.saveHistory(problem, params.ImageData, params.ContentType)
	}

	redacted := sol.ForPlan(plan)
	result.Solution = &redacted
	return result, nil
}

func (s *solveService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// keepsHistory reports whether a solve is saved: PRO accounts only, never the
// shared demo account.
func (s *solveService) keepsHistory(id auth.Identity, plan domain.Plan) bool {
	return s.history != nil && plan == domain.PlanPro && !id.IsDemo()
}

// saveHistory stores the photo and the problem record in the background.
// Failures are logged and counted; the caller already has its answer.
func (s *solveService) saveHistory(problem *domain.Problem, image []byte, contentType string) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()

		if problem.Kind == domain.KindPhoto && s.storage != nil && len(image) > 0 {
			key := storage.ProblemImageKey(problem.UserID, problem.ID, contentType)
			err := s.storage.Put(ctx, key, bytes.NewReader(image), storage.PutOptions{
				ContentType: contentType,
				MaxSize:     storage.MaxImageSize,
			})
			if err != nil {
				s.logger.Warn("failed to store problem photo", "user_id", problem.UserID, "problem_id", problem.ID, "error", err)
			} else {
				problem.ImageKey = key
			}
		}

		if err := s.history.Append(ctx, problem); err != nil {
			metrics.HistoryWriteFailures.Inc()
			s.logger.Error("failed to save history", "user_id", problem.UserID, "problem_id", problem.ID, "error", err)
			return
		}
		s.logger.Debug("history saved", "user_id", problem.UserID, "problem_id", problem.ID)
	}()
}

// prepare downsizes large photos. Formats the processor cannot read are sent
// as uploaded.
func (s *solveService) prepare(data []byte, contentType string) ([]byte, string) {
	out, outType, err := s.images.Prepare(data, contentType)
	if err != nil {
		s.logger.Debug("sending photo unprocessed", "content_type", contentType, "error", err)
		return data, contentType
	}
	return out, outType
}

func (s *solveService) acquire(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[userID]; busy {
		return false
	}
	s.inFlight[userID] = struct{}{}
	return true
}

func (s *solveService) release(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, userID)
}

func validateSolveParams(op string, p *SolveParams) error {
	if p.Identity.UserID == "" {
		p.Identity = auth.Demo()
	}

	switch p.Kind {
	case domain.KindPhoto:
		if len(p.ImageData) == 0 {
			return domain.NewValidationError(op, "image", "Please attach a photo of the problem")
		}
		if len(p.ImageData) > storage.MaxImageSize {
			return domain.Errorf(domain.ETOOLARGE, op, "Photo must be smaller than %d MB", storage.MaxImageSize>>20)
		}
		if !storage.IsAllowedImageType(p.ContentType) {
			return domain.NewValidationError(op, "image", "Photo must be a JPEG, PNG, GIF or WebP image")
		}
		p.ContentType = storage.NormalizeImageType(p.ContentType)
	case domain.KindCalculator:
		p.ProblemText = strings.TrimSpace(p.ProblemText)
		if p.ProblemText == "" {
			return domain.NewValidationError(op, "problem_text", "Please type a problem to solve")
		}
		if len([]rune(p.ProblemText)) > ai.MaxProblemTextLength {
			return domain.NewValidationError(op, "problem_text", "Problem text is too long")
		}
	default:
		return domain.Invalid(op, "Unknown request kind")
	}
	return nil
}
