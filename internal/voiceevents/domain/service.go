package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Handle applies one validated voice-provider event to the local mirror.
	// Event types outside the known set are accepted and ignored so the
	// provider never retries deliveries we will never act on.
	Handle(ctx context.Context, body []byte) (Outcome, error)
}

// Outcome reports what Handle did with the delivery.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeIgnored Outcome = "ignored"
)

var (
	ErrInvalidEvent  = errors.New("invalid_voice_event")
	ErrMissingTenant = errors.New("voice_event_missing_tenant")
)
