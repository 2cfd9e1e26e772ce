// Package billing handles plan pricing and the simulated PRO checkout.
//
// No payment provider is contacted: a well-formed card form is accepted
// after a short processing delay.
package billing

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/labsnap/internal/clock"
	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultProcessingDelay is how long a simulated payment takes.
	DefaultProcessingDelay = 2 * time.Second

	// DefaultCountry is used when the form leaves country empty.
	DefaultCountry = "Brasil"
)

var expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/(\d{2})$`)

// CheckoutForm is the card and billing address a user submits to upgrade.
type CheckoutForm struct {
	CardName   string `json:"cardName" validate:"required,max=100"`
	CardNumber string `json:"cardNumber" validate:"required,credit_card"`
	ExpiryDate string `json:"expiryDate" validate:"required,card_expiry"`
	CVV        string `json:"cvv" validate:"required,numeric,min=3,max=4"`
	Address    string `json:"address" validate:"required,max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	ZipCode    string `json:"zipCode" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
}

// Normalize trims whitespace and applies the default country.
func (f *CheckoutForm) Normalize() {
	f.CardName = strings.TrimSpace(f.CardName)
	f.CardNumber = strings.TrimSpace(f.CardNumber)
	f.ExpiryDate = strings.TrimSpace(f.ExpiryDate)
	f.CVV = strings.TrimSpace(f.CVV)
	f.Address = strings.TrimSpace(f.Address)
	f.City = strings.TrimSpace(f.City)
	f.State = strings.TrimSpace(f.State)
	f.ZipCode = strings.TrimSpace(f.ZipCode)
	f.Country = strings.TrimSpace(f.Country)
	if f.Country == "" {
		f.Country = DefaultCountry
	}
}

// LastFour returns the final four digits of the card number.
func (f CheckoutForm) LastFour() string {
	digits := strings.ReplaceAll(f.CardNumber, " ", "")
	if len(digits) < 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// Receipt describes an accepted simulated payment.
type Receipt struct {
	CardLastFour string
	Price        Price
	ProcessedAt  time.Time
}

// Processor validates checkout forms and simulates payment processing.
type Processor struct {
	validate *validator.Validate
	clock    clock.Clock
	delay    time.Duration
}

// NewProcessor creates a checkout processor. A negative delay is treated as zero.
func NewProcessor(clk clock.Clock, delay time.Duration) *Processor {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("card_expiry", func(fl validator.FieldLevel) bool {
		return expiryPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register card_expiry validation: %v", err))
	}

	if delay < 0 {
		delay = 0
	}
	return &Processor{validate: v, clock: clk, delay: delay}
}

// Validate checks the form and returns a *domain.ValidationError keyed by
// JSON field name.
func (p *Processor) Validate(form CheckoutForm) error {
	const op = "billing.validate"

	var verr *domain.ValidationError
	if err := p.validate.Struct(form); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return domain.Internal(err, op, "Unable to validate checkout form")
		}
		for _, fe := range fieldErrs {
			verr = domain.AddFieldError(verr, op, fe.Field(), fieldMessage(fe))
		}
	}

	// Only a well-formed expiry is checked against the clock.
	if _, bad := fieldError(verr, "expiryDate"); !bad && form.ExpiryDate != "" && cardExpired(form.ExpiryDate, p.clock.Now()) {
		verr = domain.AddFieldError(verr, op, "expiryDate", "Card has expired")
	}

	if verr != nil {
		return verr
	}
	return nil
}

// Process validates the form and simulates the payment. It returns early with
// the context error if ctx ends during processing.
func (p *Processor) Process(ctx context.Context, form CheckoutForm, price Price) (*Receipt, error) {
	form.Normalize()
	if err := p.Validate(form); err != nil {
		return nil, err
	}

	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	return &Receipt{
		CardLastFour: form.LastFour(),
		Price:        price,
		ProcessedAt:  p.clock.Now(),
	}, nil
}

func fieldError(verr *domain.ValidationError, field string) (string, bool) {
	if verr == nil {
		return "", false
	}
	msg, ok := verr.Fields[field]
	return msg, ok
}

// cardExpired reports whether an MM/YY expiry lies before the current month.
func cardExpired(expiry string, now time.Time) bool {
	m := expiryPattern.FindStringSubmatch(expiry)
	if m == nil {
		return false
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	year += 2000

	if year != now.Year() {
		return year < now.Year()
	}
	return month < int(now.Month())
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "credit_card":
		return "Card number is invalid"
	case "card_expiry":
		return "Use the MM/YY format"
	case "numeric":
		return "Must contain only digits"
	case "min":
		return fmt.Sprintf("Must be at least %s characters long", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters long", fe.Param())
	default:
		return fmt.Sprintf("Invalid value (failed on '%s' tag)", fe.Tag())
	}
}
