package middleware

import (
	"net/http"

	"bitwise74/face-auth-api/security"

	"github.com/gin-gonic/gin"
)

// NewJWTMiddleware guards a route behind a valid session cookie. On success
// the claimed user ID is exposed as userID; existence of the user record is
// the handler's problem
func NewJWTMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.MustGet("requestID").(string)

		tokenStr, err := c.Cookie(security.SessionCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":     "No auth_token cookie",
				"requestID": requestID,
			})
			return
		}

		userID, err := security.ParseSessionToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Authorization token invalid or expired. Please log in again",
				"requestID": requestID,
			})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
