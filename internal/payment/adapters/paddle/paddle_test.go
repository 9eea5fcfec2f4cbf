package paddle

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	paymentdomain "github.com/soundline/vocalis/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "pdl_test"

func signedHeader(t *testing.T, ts string, payload []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(ts + ":" + string(payload)))
	return fmt.Sprintf("ts=%s;h1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerify(t *testing.T) {
	adapter := NewAdapter(testSecret)
	payload := []byte(`{"event_id":"ntf_1"}`)

	headers := http.Header{}
	headers.Set("Paddle-Signature", signedHeader(t, "1700000000", payload))
	assert.NoError(t, adapter.Verify(context.Background(), payload, headers))

	headers.Set("Paddle-Signature", "ts=1700000000;h1=deadbeef")
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, headers), paymentdomain.ErrInvalidSignature)

	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, http.Header{}), paymentdomain.ErrInvalidSignature)

	headers.Set("Paddle-Signature", "h1=deadbeef")
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, headers), paymentdomain.ErrInvalidSignature)
}

func TestParse_SubscriptionLifecycle(t *testing.T) {
	adapter := NewAdapter(testSecret)

	cases := []struct {
		paddleType string
		want       paymentdomain.EventType
	}{
		{"subscription.created", paymentdomain.EventTypeSubscriptionCreated},
		{"subscription.updated", paymentdomain.EventTypeSubscriptionUpdated},
		{"subscription.canceled", paymentdomain.EventTypeSubscriptionCancelled},
		{"transaction.payment_failed", paymentdomain.EventTypePaymentFailed},
		{"transaction.completed", paymentdomain.EventTypePaymentSucceeded},
	}
	for _, tc := range cases {
		payload := []byte(fmt.Sprintf(`{
			"event_id": "ntf_1",
			"event_type": "%s",
			"occurred_at": "2025-06-01T12:00:00Z",
			"data": {"id": "sub_1", "custom_data": {"tenant_id": "t1", "tier": "Pro"}}
		}`, tc.paddleType))

		event, err := adapter.Parse(context.Background(), payload)
		require.NoError(t, err, tc.paddleType)
		assert.Equal(t, tc.want, event.Type)
		assert.Equal(t, "paddle", event.Provider)
		assert.Equal(t, "ntf_1", event.ProviderEventID)
		assert.Equal(t, "t1", event.TenantID)
		assert.Equal(t, "pro", event.Tier)
		assert.Equal(t, "2025-06-01T12:00:00Z", event.OccurredAt.Format("2006-01-02T15:04:05Z07:00"))
	}
}

func TestParse_UnmappedEventIgnored(t *testing.T) {
	adapter := NewAdapter(testSecret)

	_, err := adapter.Parse(context.Background(), []byte(`{
		"event_id": "ntf_1",
		"event_type": "address.created",
		"data": {}
	}`))
	assert.ErrorIs(t, err, paymentdomain.ErrEventIgnored)
}

func TestParse_MissingTenant(t *testing.T) {
	adapter := NewAdapter(testSecret)

	_, err := adapter.Parse(context.Background(), []byte(`{
		"event_id": "ntf_1",
		"event_type": "subscription.created",
		"data": {"id": "sub_1", "custom_data": {}}
	}`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidTenant)
}

func TestParse_InvalidPayloads(t *testing.T) {
	adapter := NewAdapter(testSecret)

	_, err := adapter.Parse(context.Background(), []byte(`not json`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	_, err = adapter.Parse(context.Background(), []byte(`{"event_type": "subscription.created"}`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)
}
