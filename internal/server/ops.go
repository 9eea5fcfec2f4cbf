package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// TriggerSweep runs one reconciliation pass. The external scheduler calls
// this; it is synchronous so the scheduler's logs carry the summary.
func (s *Server) TriggerSweep(c *gin.Context) {
	summary, err := s.reconcileSvc.Sweep(c.Request.Context())
	if err != nil && summary.TenantsChecked == 0 && summary.TenantErrors == 0 {
		AbortWithError(c, err)
		return
	}

	status := "ok"
	if summary.TenantErrors > 0 {
		status = "partial"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"summary": summary,
	})
}

// GetSyncQueue is the operator's queue view: depth per status plus the dead
// jobs needing manual attention.
func (s *Server) GetSyncQueue(c *gin.Context) {
	depth, err := s.syncJobsSvc.Depth(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	dead, err := s.syncJobsSvc.ListDead(c.Request.Context(), parseLimit(c, 50))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"depth":     depth,
		"dead_jobs": dead,
	})
}

// DrainSyncQueue processes pending jobs inline, for operators who cannot wait
// for the worker's next tick.
func (s *Server) DrainSyncQueue(c *gin.Context) {
	summary, err := s.enforcementSvc.Drain(c.Request.Context(), parseLimit(c, 100))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func parseLimit(c *gin.Context, def int) int {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
