package security

import (
	"time"

	"bitwise74/face-auth-api/util"
)

const (
	resetTokenSize = 20 // bytes, 40 hex chars on the wire

	verificationCodeDigits = 6
	// Users get a full day to type the emailed code in
	VerificationTokenTTL = time.Hour * 24
	// Reset links are live for an hour only
	ResetTokenTTL = time.Hour
)

// MakeResetToken generates a password-reset token and its absolute expiry.
// A token that matches but whose expiry is not strictly in the future must be
// treated the same as no token at all
func MakeResetToken() (token string, expiresAt time.Time, err error) {
	token, err = util.GenerateToken(resetTokenSize)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, time.Now().Add(ResetTokenTTL), nil
}

// MakeVerificationCode generates a short numeric email-verification code and
// its absolute expiry
func MakeVerificationCode() (code string, expiresAt time.Time, err error) {
	code, err = util.GenerateDigitCode(verificationCodeDigits)
	if err != nil {
		return "", time.Time{}, err
	}

	return code, time.Now().Add(VerificationTokenTTL), nil
}
