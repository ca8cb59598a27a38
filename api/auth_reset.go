package api

import (
	"errors"
	"net/http"
	"time"

	"bitwise74/face-auth-api/model"
	"bitwise74/face-auth-api/service"
	"bitwise74/face-auth-api/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type resetPasswordBody struct {
	Password string `json:"password"`
}

// AuthResetPassword exchanges a valid, unexpired reset token for a new
// password. The token is nulled in the same update, so replaying it fails
func (a *API) AuthResetPassword(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	token := c.Param("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No reset token provided",
			"requestID": requestID,
		})
		return
	}

	var data resetPasswordBody
	if err := c.ShouldBind(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if err := validators.PasswordValidator(data.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	var user model.User

	err := a.DB.
		Where("reset_token = ? AND reset_expires_at > ?", token, time.Now()).
		First(&user).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Invalid or expired reset token",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to look up reset token", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	hash, err := a.Argon.GenerateFromPassword(data.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to hash password", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	err = a.DB.Model(&user).Updates(map[string]any{
		"password_hash":    hash,
		"reset_token":      nil,
		"reset_expires_at": nil,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to store new password", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	service.SendAsync("reset success", requestID, func() error {
		return a.Mail.SendResetSuccessMail(user.Email)
	})

	c.JSON(http.StatusOK, gin.H{
		"message":   "Password reset successful",
		"requestID": requestID,
	})
}
