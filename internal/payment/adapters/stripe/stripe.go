package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paymentdomain "github.com/soundline/vocalis/internal/payment/domain"
)

type Adapter struct {
	webhookSecret string
}

func NewAdapter(webhookSecret string) *Adapter {
	return &Adapter{webhookSecret: strings.TrimSpace(webhookSecret)}
}

func (a *Adapter) Provider() string { return "stripe" }

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	_ = ctx
	if a.webhookSecret == "" {
		return paymentdomain.ErrInvalidSignature
	}
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.SubscriptionEvent, error) {
	_ = ctx
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	var eventType paymentdomain.EventType
	switch strings.TrimSpace(event.Type) {
	case "customer.subscription.created":
		eventType = paymentdomain.EventTypeSubscriptionCreated
	case "customer.subscription.updated":
		eventType = paymentdomain.EventTypeSubscriptionUpdated
	case "customer.subscription.deleted":
		eventType = paymentdomain.EventTypeSubscriptionCancelled
	case "invoice.payment_failed":
		eventType = paymentdomain.EventTypePaymentFailed
	case "invoice.payment_succeeded":
		eventType = paymentdomain.EventTypePaymentSucceeded
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	var object stripeObject
	if err := json.Unmarshal(event.Data.Object, &object); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	tenantID := strings.TrimSpace(object.Metadata["tenant_id"])
	if tenantID == "" {
		return nil, paymentdomain.ErrInvalidTenant
	}

	return &paymentdomain.SubscriptionEvent{
		Provider:        "stripe",
		ProviderEventID: event.ID,
		Type:            eventType,
		TenantID:        tenantID,
		Tier:            strings.ToLower(strings.TrimSpace(object.Metadata["tier"])),
		OccurredAt:      timestamp(event.Created),
		RawPayload:      payload,
	}, nil
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeObject struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func timestamp(value int64) time.Time {
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}
