package server

import (
	"crypto/hmac"
	"strings"

	"github.com/gin-gonic/gin"
)

// bearerRequired guards a route group with a static bearer credential. An
// empty configured secret disables the route rather than opening it.
func (s *Server) bearerRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			AbortWithError(c, ErrForbidden)
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !hmac.Equal([]byte(strings.TrimSpace(token)), []byte(secret)) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}
