package domain

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Verifier checks the keyed-hash signature of a raw webhook body for one
// provider. Implementations must compare in constant time.
type Verifier interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
}

// Policy controls the gate's pre-signature checks.
type Policy struct {
	RequireHTTPS       bool
	AllowedSources     []string
	MaxBodyBytes       int64
	TimestampTolerance time.Duration
	ReplayCapacity     int
}

// Accepted is the gate's output for a validated delivery.
type Accepted struct {
	Provider string
	Body     []byte
	// Timestamp is the payload's declared timestamp, or the receipt time
	// when the payload declares none.
	Timestamp time.Time
}

// Rejection reasons, in check order. The gate short-circuits on the first
// failure and never inserts the replay fingerprint for a rejected delivery.
var (
	ErrInsecureTransport  = errors.New("insecure_transport")
	ErrSourceNotAllowed   = errors.New("source_not_allowed")
	ErrUnsupportedContent = errors.New("unsupported_content_type")
	ErrPayloadTooLarge    = errors.New("payload_too_large")
	ErrUnparsablePayload  = errors.New("unparsable_payload")
	ErrTimestampTooOld    = errors.New("timestamp_out_of_tolerance")
	ErrDuplicateDelivery  = errors.New("duplicate_delivery")
	ErrInvalidSignature   = errors.New("invalid_signature")
	ErrUnknownProvider    = errors.New("unknown_webhook_provider")
)
