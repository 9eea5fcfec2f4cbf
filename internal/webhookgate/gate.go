package webhookgate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/soundline/vocalis/internal/cache"
	"github.com/soundline/vocalis/internal/clock"
	"github.com/soundline/vocalis/internal/webhookgate/domain"
	"go.uber.org/zap"
)

// Gate validates inbound webhook deliveries before any business logic runs.
// Checks run in a fixed order and short-circuit on the first failure:
// transport, source allowlist, content shape, parseability, timestamp
// tolerance, replay, signature. The replay fingerprint is only recorded once
// every other check, including the signature, has passed.
type Gate struct {
	policy       domain.Policy
	registry     *Registry
	fingerprints *cache.BoundedSet[string]
	clock        clock.Clock
	log          *zap.Logger
}

func NewGate(policy domain.Policy, registry *Registry, clk clock.Clock, log *zap.Logger) *Gate {
	capacity := policy.ReplayCapacity
	if capacity <= 0 {
		capacity = 10000
	}
	if policy.MaxBodyBytes <= 0 {
		policy.MaxBodyBytes = 1 << 20
	}
	if policy.TimestampTolerance <= 0 {
		policy.TimestampTolerance = 300 * time.Second
	}
	return &Gate{
		policy:       policy,
		registry:     registry,
		fingerprints: cache.NewBoundedSet[string](capacity),
		clock:        clk,
		log:          log.Named("webhook.gate"),
	}
}

// Validate runs the full check sequence against an inbound request. The
// request body is consumed. On success the raw body and declared timestamp
// are returned for downstream parsing.
func (g *Gate) Validate(r *http.Request, provider string) (domain.Accepted, error) {
	ctx := r.Context()

	verifier, ok := g.registry.Find(provider)
	if !ok {
		return domain.Accepted{}, domain.ErrUnknownProvider
	}

	if err := g.checkTransport(r); err != nil {
		return domain.Accepted{}, err
	}
	if err := g.checkSource(r); err != nil {
		return domain.Accepted{}, err
	}

	body, err := g.readBody(r)
	if err != nil {
		return domain.Accepted{}, err
	}

	declared, err := g.parseTimestamp(body)
	if err != nil {
		return domain.Accepted{}, err
	}

	now := g.clock.Now()
	timestamp := now
	if !declared.IsZero() {
		drift := now.Sub(declared)
		if drift < 0 {
			drift = -drift
		}
		if drift > g.policy.TimestampTolerance {
			return domain.Accepted{}, domain.ErrTimestampTooOld
		}
		timestamp = declared
	}

	fingerprint := Fingerprint(body, timestamp)
	if g.fingerprints.Contains(fingerprint) {
		return domain.Accepted{}, domain.ErrDuplicateDelivery
	}

	if err := verifier.Verify(ctx, body, r.Header); err != nil {
		g.log.Warn("webhook signature rejected",
			zap.String("provider", provider),
			zap.String("remote", r.RemoteAddr),
		)
		return domain.Accepted{}, domain.ErrInvalidSignature
	}

	if !g.fingerprints.Add(fingerprint) {
		return domain.Accepted{}, domain.ErrDuplicateDelivery
	}

	return domain.Accepted{
		Provider:  strings.ToLower(strings.TrimSpace(provider)),
		Body:      body,
		Timestamp: timestamp,
	}, nil
}

func (g *Gate) checkTransport(r *http.Request) error {
	if !g.policy.RequireHTTPS {
		return nil
	}
	if r.TLS != nil {
		return nil
	}
	// Behind a terminating proxy the original scheme arrives as a header.
	if strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https") {
		return nil
	}
	return domain.ErrInsecureTransport
}

func (g *Gate) checkSource(r *http.Request) error {
	if len(g.policy.AllowedSources) == 0 {
		return nil
	}
	source := sourceIP(r)
	for _, allowed := range g.policy.AllowedSources {
		if source == strings.TrimSpace(allowed) {
			return nil
		}
	}
	return domain.ErrSourceNotAllowed
}

func (g *Gate) readBody(r *http.Request) ([]byte, error) {
	// An absent Content-Type is a rejection, not a pass; providers always
	// declare the payload type.
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, domain.ErrUnsupportedContent
	}
	if r.ContentLength > g.policy.MaxBodyBytes {
		return nil, domain.ErrPayloadTooLarge
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, g.policy.MaxBodyBytes+1))
	if err != nil {
		return nil, domain.ErrUnparsablePayload
	}
	if int64(len(body)) > g.policy.MaxBodyBytes {
		return nil, domain.ErrPayloadTooLarge
	}
	if !json.Valid(body) {
		return nil, domain.ErrUnparsablePayload
	}
	return body, nil
}

// parseTimestamp pulls the payload's declared timestamp if one exists.
// Providers differ: unix seconds under "timestamp" or "created", or an
// RFC3339 string under "occurred_at". A field that is present but malformed
// counts as no declared timestamp; the body already passed the shape check
// and the tolerance window only applies to timestamps actually declared.
func (g *Gate) parseTimestamp(body []byte) (time.Time, error) {
	var envelope struct {
		Timestamp  any `json:"timestamp"`
		Created    any `json:"created"`
		OccurredAt any `json:"occurred_at"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return time.Time{}, domain.ErrUnparsablePayload
	}

	for _, field := range []any{envelope.Timestamp, envelope.Created} {
		if seconds := unixSeconds(field); seconds > 0 {
			return time.Unix(seconds, 0).UTC(), nil
		}
	}
	if occurred, ok := envelope.OccurredAt.(string); ok {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(occurred))
		if err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, nil
}

func unixSeconds(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

// Fingerprint hashes the raw body together with its declared timestamp so
// a retransmitted delivery is recognized even across providers.
func Fingerprint(body []byte, timestamp time.Time) string {
	hash := sha256.New()
	hash.Write(body)
	hash.Write([]byte("|"))
	hash.Write([]byte(strconv.FormatInt(timestamp.Unix(), 10)))
	return hex.EncodeToString(hash.Sum(nil))
}

func sourceIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-Ip")); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
