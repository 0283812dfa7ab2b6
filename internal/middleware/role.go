package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/pollsite/backend/pkg/response"
)

// RequireStaff allows only logged-in staff users. Must run after CurrentUser.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := UserFromContext(c)
		if u == nil {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}
		if !u.IsStaff {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
