package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	usagedomain "github.com/soundline/vocalis/internal/usage/domain"
)

// GetTenantUsage returns the tenant's current-period consumption and limits.
func (s *Server) GetTenantUsage(c *gin.Context) {
	tenantID := strings.TrimSpace(c.Param("tenantId"))
	if tenantID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	record, err := s.usageSvc.Get(c.Request.Context(), tenantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// CheckTenantLimit answers a pre-flight "may I" question for one dimension.
// A denial is 429 with the full check result so callers can render the limit.
func (s *Server) CheckTenantLimit(c *gin.Context) {
	tenantID := strings.TrimSpace(c.Param("tenantId"))
	if tenantID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	kind := usagedomain.LimitKind(strings.TrimSpace(c.Query("kind")))
	increment := int64(1)
	if raw := strings.TrimSpace(c.Query("increment")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			AbortWithError(c, usagedomain.ErrInvalidIncrement)
			return
		}
		increment = parsed
	}

	result, err := s.usageSvc.CanPerform(c.Request.Context(), tenantID, kind, increment)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !result.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": errorPayload{
				Type:    "limit_exceeded",
				Message: "tier limit exceeded",
			},
			"check": result,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"check": result})
}

type recordMinutesRequest struct {
	TenantID string `json:"tenant_id"`
	Minutes  int64  `json:"minutes"`
}

// RecordUsageMinutes books completed-call minutes reported by an internal
// collaborator that cannot emit provider webhooks.
func (s *Server) RecordUsageMinutes(c *gin.Context) {
	var req recordMinutesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.usageSvc.RecordMinutes(c.Request.Context(), strings.TrimSpace(req.TenantID), req.Minutes); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}
