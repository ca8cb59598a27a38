package service

import (
	"time"

	"bitwise74/face-auth-api/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TokenCleanup periodically nulls out expired verification and reset tokens.
// Expired tokens are already rejected at lookup time, this just keeps dead
// secrets from lingering in the database
func TokenCleanup(t time.Duration, db *gorm.DB) {
	ticker := time.NewTicker(t)

	zap.L().Debug("Token cleanup attached", zap.Duration("tick_every", t))

	go func() {
		for range ticker.C {
			now := time.Now()

			err := db.
				Model(model.User{}).
				Where("verification_expires_at < ?", now).
				Updates(map[string]any{
					"verification_token":      nil,
					"verification_expires_at": nil,
				}).Error
			if err != nil {
				zap.L().Error("Failed to cleanup expired verification tokens", zap.Error(err))
			}

			err = db.
				Model(model.User{}).
				Where("reset_expires_at < ?", now).
				Updates(map[string]any{
					"reset_token":      nil,
					"reset_expires_at": nil,
				}).Error
			if err != nil {
				zap.L().Error("Failed to cleanup expired reset tokens", zap.Error(err))
			}
		}
	}()
}
