// Package service contains the business logic layer.
//
// This file implements the simulated PRO checkout.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/DukeRupert/labsnap/internal/billing"
	"github.com/DukeRupert/labsnap/internal/domain"
)

// =============================================================================
// Interface Definition
// =============================================================================

// CheckoutService upgrades a user to PRO after a simulated payment.
type CheckoutService interface {
	// Checkout validates the card form, simulates the payment and installs a
	// 30-day PRO subscription. Validation failures return
	// *domain.ValidationError and leave the subscription untouched.
	Checkout(ctx context.Context, userID string, form billing.CheckoutForm, acceptLanguage string) (*CheckoutResult, error)
}

// CheckoutResult is a completed upgrade.
type CheckoutResult struct {
	Subscription domain.Subscription `json:"subscription"`
	CardLastFour string              `json:"card_last_four"`
	Price        billing.Price       `json:"price"`
}

// =============================================================================
// Implementation
// =============================================================================

type checkoutService struct {
	processor *billing.Processor
	metering  MeteringService
	logger    *slog.Logger
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(processor *billing.Processor, metering MeteringService, logger *slog.Logger) CheckoutService {
	return &checkoutService{
		processor: processor,
		metering:  metering,
		logger:    logger,
	}
}

func (s *checkoutService) Checkout(ctx context.Context, userID string, form billing.CheckoutForm, acceptLanguage string) (*CheckoutResult, error) {
	const op = "checkout.checkout"

	price := billing.PriceFor(acceptLanguage)

	receipt, err := s.processor.Process(ctx, form, price)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.Internal(err, op, "Payment could not be processed")
	}

	// Payment went through; install PRO even if the client has gone.
	sub, err := s.metering.Upgrade(context.WithoutCancel(ctx), userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("checkout completed",
		"user_id", userID,
		"currency", price.Currency,
		"amount", price.Amount,
	)

	return &CheckoutResult{
		Subscription: sub,
		CardLastFour: receipt.CardLastFour,
		Price:        price,
	}, nil
}
