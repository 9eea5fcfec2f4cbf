package domain

import (
	"context"
	"errors"
	"time"
)

// Assistant is the provider's view of a voice assistant.
type Assistant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"createdAt"`
}

// PhoneNumber is the provider's view of a provisioned phone number.
type PhoneNumber struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"createdAt"`
}

// UpdateRequest carries the mutable fields for both resource kinds.
type UpdateRequest struct {
	Disabled *bool   `json:"disabled,omitempty"`
	Name     *string `json:"name,omitempty"`
}

// Client is the outbound contract with the voice-provisioning provider.
// Every call carries a bounded timeout; 404 responses surface as ErrNotFound
// so callers can converge instead of retrying forever. The provider exposes a
// bulk listing for assistants only, so phone numbers are checked per id.
type Client interface {
	ListAssistants(ctx context.Context) ([]Assistant, error)
	GetAssistant(ctx context.Context, externalID string) (*Assistant, error)
	UpdateAssistant(ctx context.Context, externalID string, req UpdateRequest) error
	DeleteAssistant(ctx context.Context, externalID string) error

	GetPhoneNumber(ctx context.Context, externalID string) (*PhoneNumber, error)
	UpdatePhoneNumber(ctx context.Context, externalID string, req UpdateRequest) error
	DeletePhoneNumber(ctx context.Context, externalID string) error
}

var (
	ErrNotFound    = errors.New("provider_resource_not_found")
	ErrUnavailable = errors.New("provider_unavailable")
	ErrBadRequest  = errors.New("provider_rejected_request")
)
