package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/soundline/vocalis/internal/payment/domain"
	"go.uber.org/zap"
)

// HandlePaymentWebhook receives payment-processor deliveries. The gate runs
// every check, including the provider's signature scheme, before any business
// logic sees the payload.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := c.Param("provider")

	accepted, err := s.gate.Validate(c.Request, provider)
	if err != nil {
		s.recordWebhook(c, provider, "rejected")
		AbortWithError(c, err)
		return
	}

	adapter, err := s.payments.Find(accepted.Provider)
	if err != nil {
		s.recordWebhook(c, provider, "rejected")
		AbortWithError(c, err)
		return
	}

	event, err := adapter.Parse(c.Request.Context(), accepted.Body)
	if errors.Is(err, paymentdomain.ErrEventIgnored) {
		// Out-of-set event types are acknowledged so the provider stops
		// retrying them.
		s.recordWebhook(c, provider, "ignored")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		s.recordWebhook(c, provider, "rejected")
		AbortWithError(c, err)
		return
	}

	transition, err := s.subscriptionSvc.HandleEvent(c.Request.Context(), event)
	if err != nil {
		s.recordWebhook(c, provider, "failed")
		AbortWithError(c, err)
		return
	}

	s.recordWebhook(c, provider, "applied")
	c.JSON(http.StatusOK, gin.H{
		"status":     "applied",
		"transition": transition,
	})
}

// HandleVoiceWebhook receives voice-provider lifecycle events and keeps the
// local resource mirror current.
func (s *Server) HandleVoiceWebhook(c *gin.Context) {
	accepted, err := s.gate.Validate(c.Request, "voice")
	if err != nil {
		s.recordWebhook(c, "voice", "rejected")
		AbortWithError(c, err)
		return
	}

	outcome, err := s.voiceEventsSvc.Handle(c.Request.Context(), accepted.Body)
	if err != nil {
		s.recordWebhook(c, "voice", "failed")
		AbortWithError(c, err)
		return
	}

	s.recordWebhook(c, "voice", string(outcome))
	c.JSON(http.StatusOK, gin.H{"status": string(outcome)})
}

func (s *Server) recordWebhook(c *gin.Context, provider, outcome string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordWebhookEvent(c.Request.Context(), provider, outcome)
	}
	if outcome == "rejected" {
		s.log.Warn("webhook rejected",
			zap.String("provider", provider),
			zap.String("remote", c.ClientIP()),
		)
	}
}
