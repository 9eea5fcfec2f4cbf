package webhookgate

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/soundline/vocalis/internal/webhookgate/domain"
)

// SharedSecretVerifier verifies a plain HMAC-SHA256 hex signature carried in
// a single header. Used for providers without a timestamped signature scheme.
type SharedSecretVerifier struct {
	provider string
	header   string
	secret   []byte
}

func NewSharedSecretVerifier(provider, header, secret string) *SharedSecretVerifier {
	return &SharedSecretVerifier{
		provider: provider,
		header:   header,
		secret:   []byte(strings.TrimSpace(secret)),
	}
}

func (v *SharedSecretVerifier) Provider() string { return v.provider }

func (v *SharedSecretVerifier) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	_ = ctx
	if len(v.secret) == 0 {
		return domain.ErrInvalidSignature
	}
	signature := strings.TrimSpace(headers.Get(v.header))
	if signature == "" {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return domain.ErrInvalidSignature
	}
	return nil
}
