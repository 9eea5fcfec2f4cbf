package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/soundline/vocalis/internal/audit/domain"
)

// ListAuditLogs exposes the enforcement audit trail to operators.
func (s *Server) ListAuditLogs(c *gin.Context) {
	filter := auditdomain.ListFilter{
		TenantID:   strings.TrimSpace(c.Query("tenant_id")),
		Action:     strings.TrimSpace(c.Query("action")),
		TargetType: strings.TrimSpace(c.Query("target_type")),
		TargetID:   strings.TrimSpace(c.Query("target_id")),
		Limit:      parseLimit(c, 100),
	}

	entries, err := s.auditSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": entries})
}
