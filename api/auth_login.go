package api

import (
	"errors"
	"net/http"
	"time"

	"bitwise74/face-auth-api/face"
	"bitwise74/face-auth-api/model"
	"bitwise74/face-auth-api/security"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Image    string `json:"image"`
}

// AuthLogin checks email+password, then compares the captured face against
// the enrollment reference. Unknown email and wrong password return the same
// response so the endpoint can't be used to probe which emails exist
func (a *API) AuthLogin(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var data loginBody
	if err := c.ShouldBind(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})

		zap.L().Error("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if data.Email == "" || data.Password == "" || data.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "All fields, including a face image, are required",
			"requestID": requestID,
		})
		return
	}

	var user model.User

	if err := a.DB.Where("email = ?", data.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":     "Invalid credentials",
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

	ok, err := a.Argon.VerifyPasswd(data.Password, user.PasswordHash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to verify password", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Invalid credentials",
			"requestID": requestID,
		})
		return
	}

	if len(user.FaceImage) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No enrolled face image on file for this account",
			"requestID": requestID,
		})
		return
	}

	distance, err := a.Faces.Compare(data.Image, user.FaceImage)
	if err != nil {
		if errors.Is(err, face.ErrNoFaceDetected) || errors.Is(err, face.ErrBadImage) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "No face could be detected in the submitted image",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Face comparison failed", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	// Lower distance = more similar. Only a distance strictly below the
	// threshold counts as the same person
	if distance >= viper.GetFloat64("face.match_threshold") {
		zap.L().Debug("Face mismatch",
			zap.Float64("distance", distance),
			zap.String("requestID", requestID),
		)

		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Face verification failed",
			"requestID": requestID,
		})
		return
	}

	// Everything checked out. Persist the login timestamp before handing out
	// the cookie so a failed write can't produce a half-logged-in state
	now := time.Now()
	if err := a.DB.Model(&user).Update("last_login_at", now).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to update last login", zap.Error(err), zap.String("requestID", requestID))
		return
	}
	user.LastLoginAt = &now

	token, err := security.MakeSessionToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate session token", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	security.SetSessionCookies(c, token)

	c.JSON(http.StatusOK, gin.H{
		"user":      user.Sanitized(),
		"requestID": requestID,
	})
}
