// Package payment creates card payment intents for bookings.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// ErrNotConfigured is returned when no payment provider key was supplied.
var ErrNotConfigured = errors.New("payments are not configured")

type Intent struct {
	ID           string
	ClientSecret string
	AmountMinor  int64
	Currency     string
}

type Provider interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error)
}

type Stripe struct {
	api *client.API
}

func NewStripe(secretKey string) *Stripe {
	return &Stripe{api: client.New(secretKey, nil)}
}

func (s *Stripe) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent: %w", err)
	}
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

// Disabled stands in when STRIPE_SECRET_KEY is empty.
type Disabled struct{}

func (Disabled) CreateIntent(context.Context, int64, string, map[string]string) (*Intent, error) {
	return nil, ErrNotConfigured
}
