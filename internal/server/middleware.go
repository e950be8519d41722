package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/shiplabel/internal/observability/context"
)

// HeaderUserID carries the caller authenticated by the upstream gateway.
const HeaderUserID = "X-User-Id"

const contextUserIDKey = "user_id"

func ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, userID)
		c.Request = c.Request.WithContext(obscontext.WithActorID(c.Request.Context(), userID))
		c.Next()
	}
}

func TransactionContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if transactionID := strings.TrimSpace(c.Param("transaction_id")); transactionID != "" {
			c.Request = c.Request.WithContext(obscontext.WithTransactionID(c.Request.Context(), transactionID))
		}
		c.Next()
	}
}

func actorID(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}
