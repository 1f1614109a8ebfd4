package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"skuforge/internal/core/apperror"
	appctx "skuforge/internal/core/context"
)

// SessionValidator validates embedded-app session tokens.
type SessionValidator interface {
	ValidateToken(tokenString string) (*appctx.SessionContext, error)
}

// Auth middleware validates the bearer session token and populates the
// session context.
func Auth(validator SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		session, err := validator.ValidateToken(parts[1])
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid session token").WithCause(err))
			c.Abort()
			return
		}

		ctx := appctx.WithSession(c.Request.Context(), session)
		c.Request = c.Request.WithContext(ctx)

		c.Set("shop", session.Shop)
		c.Set("user_id", session.UserID)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
