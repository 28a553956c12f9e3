package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/reconciler/pkg/logctx"
	"github.com/fatflowers/reconciler/pkg/response"
)

// UserHeader carries the authenticated user id set by the gateway.
const UserHeader = "X-User-ID"

const ginUserIDKey = "userID"

// UserMiddleware rejects requests without a user id. Register it before
// RequestLoggerMiddleware so the request logger carries user_id.
func UserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetHeader(UserHeader)
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, "missing "+UserHeader))
			return
		}
		c.Set(ginUserIDKey, uid)
		c.Request = c.Request.WithContext(logctx.WithUserID(c.Request.Context(), uid))
		c.Next()
	}
}

// UserID returns the id stored by UserMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(ginUserIDKey)
}
