package domain

import (
	"context"
	"errors"

	paymentdomain "github.com/soundline/vocalis/internal/payment/domain"
	usagedomain "github.com/soundline/vocalis/internal/usage/domain"
)

type Service interface {
	// HandleEvent applies one normalized payment-processor event to the
	// tenant's subscription state, rewrites limits atomically, and schedules
	// the enforcement work a downgrade requires.
	HandleEvent(ctx context.Context, event *paymentdomain.SubscriptionEvent) (Transition, error)
}

// Transition reports what HandleEvent changed.
type Transition struct {
	TenantID      string             `json:"tenant_id"`
	Tier          usagedomain.Tier   `json:"tier"`
	Status        usagedomain.Status `json:"status"`
	JobsScheduled int                `json:"jobs_scheduled"`
}

var (
	ErrUnknownTier  = errors.New("unknown_tier")
	ErrInvalidEvent = errors.New("invalid_subscription_event")
)
