package paddle

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
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

func (a *Adapter) Provider() string { return "paddle" }

// Verify checks the Paddle-Signature header: "ts=<unix>;h1=<hex hmac>" where
// the signed payload is "<ts>:<body>".
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	_ = ctx
	if a.webhookSecret == "" {
		return paymentdomain.ErrInvalidSignature
	}
	sigHeader := strings.TrimSpace(headers.Get("Paddle-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	var ts, h1 string
	for _, part := range strings.Split(sigHeader, ";") {
		keyValue := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		switch strings.TrimSpace(keyValue[0]) {
		case "ts":
			ts = strings.TrimSpace(keyValue[1])
		case "h1":
			h1 = strings.TrimSpace(keyValue[1])
		}
	}
	if ts == "" || h1 == "" {
		return paymentdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s:%s", ts, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(h1), []byte(expected)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.SubscriptionEvent, error) {
	_ = ctx
	var event paddleEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.EventID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	var eventType paymentdomain.EventType
	switch strings.TrimSpace(event.EventType) {
	case "subscription.created":
		eventType = paymentdomain.EventTypeSubscriptionCreated
	case "subscription.updated":
		eventType = paymentdomain.EventTypeSubscriptionUpdated
	case "subscription.canceled":
		eventType = paymentdomain.EventTypeSubscriptionCancelled
	case "transaction.payment_failed":
		eventType = paymentdomain.EventTypePaymentFailed
	case "transaction.completed":
		eventType = paymentdomain.EventTypePaymentSucceeded
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	tenantID := strings.TrimSpace(event.Data.CustomData["tenant_id"])
	if tenantID == "" {
		return nil, paymentdomain.ErrInvalidTenant
	}

	occurredAt := time.Now().UTC()
	if raw := strings.TrimSpace(event.OccurredAt); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			occurredAt = parsed.UTC()
		}
	}

	return &paymentdomain.SubscriptionEvent{
		Provider:        "paddle",
		ProviderEventID: event.EventID,
		Type:            eventType,
		TenantID:        tenantID,
		Tier:            strings.ToLower(strings.TrimSpace(event.Data.CustomData["tier"])),
		OccurredAt:      occurredAt,
		RawPayload:      payload,
	}, nil
}

type paddleEvent struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt string          `json:"occurred_at"`
	Data       paddleEventData `json:"data"`
}

type paddleEventData struct {
	ID         string            `json:"id"`
	CustomData map[string]string `json:"custom_data"`
}
