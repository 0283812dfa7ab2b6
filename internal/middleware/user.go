package middleware

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pollsite/backend/internal/auth"
	"github.com/pollsite/backend/internal/models"
	"github.com/pollsite/backend/internal/sessions"
)

// ContextUser is the key for the authenticated *models.User in gin context.
const ContextUser = "user"

// CurrentUser resolves the session's _auth_user_id to a user and stores it in
// the context. Anonymous requests pass through untouched.
func CurrentUser(users auth.Repository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.FromContext(c)
		if s == nil {
			c.Next()
			return
		}
		raw, ok := s.Get(sessions.AuthUserIDKey)
		if !ok {
			c.Next()
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.Next()
			return
		}
		u, err := users.GetByID(c.Request.Context(), id)
		switch {
		case err == nil:
			if u.IsActive {
				c.Set(ContextUser, u)
			}
		case errors.Is(err, auth.ErrUserNotFound):
		default:
			logger.Warn("load session user", zap.Int64("user_id", id), zap.Error(err))
		}
		c.Next()
	}
}

// UserFromContext returns the user set by CurrentUser, or nil for anonymous requests.
func UserFromContext(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
