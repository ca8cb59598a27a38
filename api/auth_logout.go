package api

import (
	"net/http"

	"bitwise74/face-auth-api/security"

	"github.com/gin-gonic/gin"
)

// AuthLogout clears the session cookies. Sessions are stateless so there is
// nothing to delete server-side; this always succeeds
func (a *API) AuthLogout(c *gin.Context) {
	security.ClearSessionCookies(c)

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}
