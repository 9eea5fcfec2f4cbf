package domain

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// EventType is the canonical subscription lifecycle event, normalized across
// payment providers by the adapters.
type EventType string

const (
	EventTypeSubscriptionCreated   EventType = "subscription_created"
	EventTypeSubscriptionUpdated   EventType = "subscription_updated"
	EventTypeSubscriptionCancelled EventType = "subscription_cancelled"
	EventTypePaymentFailed         EventType = "payment_failed"
	EventTypePaymentSucceeded      EventType = "payment_succeeded"
)

// SubscriptionEvent is the canonical payment-processor event parsed by
// adapters and consumed by the subscription state machine.
type SubscriptionEvent struct {
	Provider        string
	ProviderEventID string
	Type            EventType
	TenantID        string
	// Tier is the subscription tier named by the provider payload
	// ("free" or "pro"); empty when the event does not carry one.
	Tier       string
	OccurredAt time.Time
	RawPayload []byte
}

// Adapter verifies and parses one provider's webhook deliveries. Verify must
// compare signatures in constant time. Parse returns ErrEventIgnored for
// event types outside the closed set the state machine consumes.
type Adapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*SubscriptionEvent, error)
}

var (
	ErrProviderNotFound = errors.New("payment_provider_not_found")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrInvalidTenant    = errors.New("invalid_tenant")
	ErrEventIgnored     = errors.New("event_ignored")
)
