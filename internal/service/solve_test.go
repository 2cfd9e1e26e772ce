package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DukeRupert/labsnap/internal/ai"
	"github.com/DukeRupert/labsnap/internal/auth"
	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textParams(id auth.Identity) SolveParams {
	return SolveParams{
		Identity:    id,
		Kind:        domain.KindCalculator,
		ProblemText: "How many moles are in 36 g of water?",
	}
}

func TestSolveService_TextForFreeUser(t *testing.T) {
	f := newSolveFixture(t)

	res, err := f.svc.Solve(context.Background(), textParams(member("ana")))
	require.NoError(t, err)

	assert.True(t, res.Decision.Allowed)
	assert.Equal(t, domain.PlanFree, res.Plan)
	assert.Equal(t, 2, res.Remaining)
	assert.False(t, res.CountdownArmed, "calculator never arms the countdown")
	assert.Nil(t, res.ProblemID, "free users keep no history")

	require.NotNil(t, res.Solution)
	assert.NotEmpty(t, res.Solution.Solution.FinalAnswer)
	assert.Empty(t, res.Solution.Solution.Steps, "steps are a PRO feature")

	assert.Equal(t, "How many moles are in 36 g of water?", f.analyzer.LastParams.ProblemText)
	assert.Equal(t, "ana", f.analyzer.LastParams.UserID)
}

func TestSolveService_PhotoArmsCountdown(t *testing.T) {
	f := newSolveFixture(t)

	res, err := f.svc.Solve(context.Background(), SolveParams{
		Identity:    member("ana"),
		Kind:        domain.KindPhoto,
		ImageData:   pngBytes(t, 40, 30),
		ContentType: "image/png",
	})
	require.NoError(t, err)

	assert.True(t, res.Decision.Allowed)
	assert.True(t, res.CountdownArmed)
	assert.Equal(t, 2, res.Remaining)
	assert.True(t, f.countdowns.State("ana").Armed)
	assert.Equal(t, domain.KindPhoto, f.analyzer.LastParams.Kind)
	assert.Equal(t, "image/png", f.analyzer.LastParams.ContentType, "small photos are sent as uploaded")
}

func TestSolveService_Denials(t *testing.T) {
	t.Run("cooldown", func(t *testing.T) {
		f := newSolveFixture(t)
		params := SolveParams{Identity: member("ana"), Kind: domain.KindPhoto, ImageData: pngBytes(t, 4, 4), ContentType: "image/png"}

		_, err := f.svc.Solve(context.Background(), params)
		require.NoError(t, err)
		f.clock.Advance(10 * time.Second)

		res, err := f.svc.Solve(context.Background(), params)
		require.NoError(t, err, "a refusal is not an error")
		assert.False(t, res.Decision.Allowed)
		assert.Equal(t, domain.DenialCooldown, res.Decision.Denial)
		assert.Equal(t, 20, res.Decision.WaitSeconds)
		assert.Nil(t, res.Solution)
		assert.Equal(t, 1, f.analyzer.CallCount(), "refused requests never reach the analyzer")
	})

	t.Run("daily cap", func(t *testing.T) {
		f := newSolveFixture(t)
		for i := 0; i < 3; i++ {
			_, err := f.svc.Solve(context.Background(), textParams(member("ana")))
			require.NoError(t, err)
		}

		res, err := f.svc.Solve(context.Background(), textParams(member("ana")))
		require.NoError(t, err)
		assert.Equal(t, domain.DenialDailyCap, res.Decision.Denial)
		assert.NotEmpty(t, res.Decision.Reason)
		assert.Equal(t, 3, f.analyzer.CallCount())
	})
}

func TestSolveService_FailedAnalysisConsumesNothing(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"upstream unavailable", fmt.Errorf("ai analyze: %w", ai.EAIUnavailable), domain.EUPSTREAM},
		{"malformed output", ai.EAIMalformedOutput, domain.EUPSTREAM},
		{"unreadable input", ai.EAIInvalidInput, domain.EINVALID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSolveFixture(t)
			f.analyzer.Err = tt.err

			res, err := f.svc.Solve(context.Background(), textParams(member("ana")))
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
			assert.True(t, errors.Is(err, tt.err))

			status, err := f.metering.Status(context.Background(), "ana")
			require.NoError(t, err)
			assert.Equal(t, 3, status.CalculatorRemaining)
		})
	}
}

func TestSolveService_CancelledDuringAnalysis(t *testing.T) {
	f := newSolveFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.analyzer.Hook = func(context.Context, ai.AnalyzeParams) { cancel() }
	f.analyzer.Err = context.Canceled

	_, err := f.svc.Solve(ctx, textParams(member("ana")))
	assert.ErrorIs(t, err, context.Canceled)

	status, err := f.metering.Status(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, 3, status.CalculatorRemaining)
}

func TestSolveService_ConcurrentSolveForSameUser(t *testing.T) {
	f := newSolveFixture(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var held atomic.Bool
	f.analyzer.Hook = func(_ context.Context, params ai.AnalyzeParams) {
		if params.UserID == "ana" && held.CompareAndSwap(false, true) {
			close(entered)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Solve(context.Background(), textParams(member("ana")))
		done <- err
	}()
	<-entered

	_, err := f.svc.Solve(context.Background(), textParams(member("ana")))
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	// Other users are not blocked.
	_, err = f.svc.Solve(context.Background(), textParams(member("bia")))
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	status, err := f.metering.Status(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, 2, status.CalculatorRemaining, "only the first request was counted")
}

func TestSolveService_ProKeepsHistory(t *testing.T) {
	f := newSolveFixture(t)
	ctx := context.Background()
	_, err := f.metering.Upgrade(ctx, "ana")
	require.NoError(t, err)

	res, err := f.svc.Solve(ctx, SolveParams{
		Identity:    member("ana"),
		Kind:        domain.KindPhoto,
		ImageData:   pngBytes(t, 8, 8),
		ContentType: "image/png",
	})
	require.NoError(t, err)
	f.drain(t)

	assert.Equal(t, domain.PlanPro, res.Plan)
	assert.Equal(t, domain.Unlimited, res.Remaining)
	assert.False(t, res.CountdownArmed)
	require.NotNil(t, res.Solution)
	assert.NotEmpty(t, res.Solution.Solution.Steps, "PRO sees every step")
	require.NotNil(t, res.ProblemID)

	saved, err := f.history.Get(ctx, "ana", *res.ProblemID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindPhoto, saved.Kind)
	require.True(t, saved.HasImage())

	exists, err := f.files.Exists(ctx, saved.ImageKey)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSolveService_DemoUserKeepsNoHistory(t *testing.T) {
	f := newSolveFixture(t)
	ctx := context.Background()
	_, err := f.metering.Upgrade(ctx, auth.DemoUserID)
	require.NoError(t, err)

	res, err := f.svc.Solve(ctx, textParams(auth.Demo()))
	require.NoError(t, err)
	f.drain(t)

	assert.Equal(t, domain.PlanPro, res.Plan)
	assert.Nil(t, res.ProblemID)
	problems, err := f.history.List(ctx, auth.DemoUserID)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestSolveService_Validation(t *testing.T) {
	tests := []struct {
		name     string
		params   SolveParams
		wantCode string
		field    string
	}{
		{"empty text", SolveParams{Kind: domain.KindCalculator, ProblemText: "   "}, "", "problem_text"},
		{"missing photo", SolveParams{Kind: domain.KindPhoto, ContentType: "image/png"}, "", "image"},
		{"unsupported photo", SolveParams{Kind: domain.KindPhoto, ImageData: []byte("%PDF"), ContentType: "application/pdf"}, "", "image"},
		{"unknown kind", SolveParams{Kind: "essay", ProblemText: "x"}, domain.EINVALID, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSolveFixture(t)

			_, err := f.svc.Solve(context.Background(), tt.params)
			require.Error(t, err)
			if tt.field != "" {
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Contains(t, verr.Fields, tt.field)
			} else {
				assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
			}
			assert.Zero(t, f.analyzer.CallCount())
		})
	}
}

func TestSolveService_MissingIdentityIsDemo(t *testing.T) {
	f := newSolveFixture(t)

	_, err := f.svc.Solve(context.Background(), SolveParams{Kind: domain.KindCalculator, ProblemText: "2 H2 + O2"})
	require.NoError(t, err)
	assert.Equal(t, auth.DemoUserID, f.analyzer.LastParams.UserID)
}
