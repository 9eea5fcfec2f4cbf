package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/soundline/vocalis/internal/payment/domain"
	voicedomain "github.com/soundline/vocalis/internal/providers/voice/domain"
	resourcedomain "github.com/soundline/vocalis/internal/resource/domain"
	subscriptiondomain "github.com/soundline/vocalis/internal/subscription/domain"
	syncdomain "github.com/soundline/vocalis/internal/syncjob/domain"
	usagedomain "github.com/soundline/vocalis/internal/usage/domain"
	voiceeventsdomain "github.com/soundline/vocalis/internal/voiceevents/domain"
	gatedomain "github.com/soundline/vocalis/internal/webhookgate/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}

	// Webhook gate rejections, one status per check.
	case errors.Is(err, gatedomain.ErrInsecureTransport):
		return http.StatusForbidden, errorPayload{Type: "insecure_transport", Message: "https required"}
	case errors.Is(err, gatedomain.ErrSourceNotAllowed):
		return http.StatusForbidden, errorPayload{Type: "source_not_allowed", Message: "source address not allowed"}
	case errors.Is(err, gatedomain.ErrUnsupportedContent):
		return http.StatusUnsupportedMediaType, errorPayload{Type: "unsupported_content_type", Message: "expected application/json"}
	case errors.Is(err, gatedomain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{Type: "payload_too_large", Message: "payload exceeds size ceiling"}
	case errors.Is(err, gatedomain.ErrUnparsablePayload):
		return http.StatusBadRequest, errorPayload{Type: "unparsable_payload", Message: "payload is not valid json"}
	case errors.Is(err, gatedomain.ErrTimestampTooOld):
		return http.StatusBadRequest, errorPayload{Type: "timestamp_out_of_tolerance", Message: "declared timestamp outside tolerance"}
	case errors.Is(err, gatedomain.ErrDuplicateDelivery):
		return http.StatusConflict, errorPayload{Type: "duplicate_delivery", Message: "delivery already processed"}
	case errors.Is(err, gatedomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{Type: "invalid_signature", Message: "signature verification failed"}
	case errors.Is(err, gatedomain.ErrUnknownProvider),
		errors.Is(err, paymentdomain.ErrProviderNotFound):
		return http.StatusNotFound, errorPayload{Type: "unknown_provider", Message: "unknown webhook provider"}

	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: "forbidden"}

	case errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, paymentdomain.ErrInvalidTenant),
		errors.Is(err, voiceeventsdomain.ErrInvalidEvent),
		errors.Is(err, voiceeventsdomain.ErrMissingTenant),
		errors.Is(err, subscriptiondomain.ErrUnknownTier),
		errors.Is(err, subscriptiondomain.ErrInvalidEvent),
		errors.Is(err, resourcedomain.ErrInvalidType),
		errors.Is(err, syncdomain.ErrInvalidJob),
		errors.Is(err, usagedomain.ErrInvalidKind),
		errors.Is(err, usagedomain.ErrInvalidIncrement),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: err.Error()}

	case errors.Is(err, resourcedomain.ErrNotFound),
		errors.Is(err, syncdomain.ErrJobNotFound),
		errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}

	// A tenant without a ledger row is a provisioning fault, not a limit
	// refusal; surfacing it as 4xx would invite callers to retry forever.
	case errors.Is(err, usagedomain.ErrTenantNotProvisioned):
		return http.StatusInternalServerError, errorPayload{Type: "tenant_not_provisioned", Message: "tenant usage record missing"}

	case errors.Is(err, voicedomain.ErrUnavailable):
		return http.StatusBadGateway, errorPayload{Type: "provider_unavailable", Message: "voice provider unavailable"}

	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}
