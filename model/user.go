// Package model contains the database models used across the application
package model

import "time"

type User struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string
	PasswordHash string `gorm:"not null"`

	// FaceImage holds the enrollment reference captured at signup. Login
	// compares against it but never mutates it.
	FaceImage []byte `gorm:"not null"`

	Verified              bool `gorm:"default:false"`
	VerificationToken     *string
	VerificationExpiresAt *time.Time

	ResetToken     *string `gorm:"index"`
	ResetExpiresAt *time.Time

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SanitizedUser is the shape returned to clients. The password hash and the
// enrollment image never leave the server.
type SanitizedUser struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Verified    bool       `json:"verified"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (u *User) Sanitized() SanitizedUser {
	return SanitizedUser{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Verified:    u.Verified,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}
