package api

import (
	"errors"
	"net/http"
	"strings"

	"bitwise74/face-auth-api/model"
	"bitwise74/face-auth-api/security"
	"bitwise74/face-auth-api/service"
	"bitwise74/face-auth-api/validators"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type forgotPasswordBody struct {
	Email string `json:"email"`
}

// AuthForgotPassword issues a one-hour reset token and mails the reset link.
// Regenerating overwrites any previous token, so only the newest link works
func (a *API) AuthForgotPassword(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var data forgotPasswordBody
	if err := c.ShouldBind(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if err := validators.EmailValidator(data.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	var user model.User

	if err := a.DB.Where("email = ?", data.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "User not found",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to look up user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	token, expiresAt, err := security.MakeResetToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate reset token", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	err = a.DB.Model(&user).Updates(map[string]any{
		"reset_token":      token,
		"reset_expires_at": expiresAt,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to store reset token", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	resetLink := strings.TrimSuffix(viper.GetString("client.url"), "/") + "/reset-password/" + token

	service.SendAsync("password reset", requestID, func() error {
		return a.Mail.SendPasswordResetMail(user.Email, resetLink)
	})

	c.JSON(http.StatusOK, gin.H{
		"message":   "Password reset link sent to your email",
		"requestID": requestID,
	})
}
