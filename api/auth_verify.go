package api

import (
	"errors"
	"net/http"
	"time"

	"bitwise74/face-auth-api/model"
	"bitwise74/face-auth-api/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type verifyEmailBody struct {
	Code string `json:"code"`
}

// AuthVerifyEmail confirms the code mailed at signup. A code whose expiry is
// not strictly in the future is treated exactly like an unknown code
func (a *API) AuthVerifyEmail(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var data verifyEmailBody
	if err := c.ShouldBind(&data); err != nil || data.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No verification code provided",
			"requestID": requestID,
		})
		return
	}

	var user model.User

	err := a.DB.
		Where("verification_token = ? AND verification_expires_at > ?", data.Code, time.Now()).
		First(&user).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Invalid or expired verification code",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to look up verification code", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	err = a.DB.Model(&user).Updates(map[string]any{
		"verified":                true,
		"verification_token":      nil,
		"verification_expires_at": nil,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to mark user as verified", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	user.Verified = true
	user.VerificationToken = nil
	user.VerificationExpiresAt = nil

	service.SendAsync("welcome", requestID, func() error {
		return a.Mail.SendWelcomeMail(user.Email, user.Name)
	})

	c.JSON(http.StatusOK, gin.H{
		"user":      user.Sanitized(),
		"requestID": requestID,
	})
}
