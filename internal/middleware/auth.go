package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/heartline/backend/internal/services"
)

// Auth resolves the bearer token and stores the caller's id under "userID".
func Auth(identity services.IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := services.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": services.MsgAuthRequired})
			return
		}

		userID, err := identity.ResolveIdentity(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": services.MsgSessionInvalid})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
