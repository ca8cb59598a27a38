package validators

import (
	"errors"

	passwordvalidator "github.com/wagslane/go-password-validator"
)

// Minimum entropy bits a password must reach before we accept it. 50 roughly
// maps to "8+ chars with some variety" without rejecting every human password
const minPasswordEntropy = 50

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong  = errors.New("password is too long")
	ErrPasswordTooWeak  = errors.New("password is too easy to guess")
	ErrPasswordEmpty    = errors.New("no password provided")
)

func PasswordValidator(p string) error {
	if p == "" {
		return ErrPasswordEmpty
	}

	if len(p) < 8 {
		return ErrPasswordTooShort
	}

	if len(p) > 255 {
		return ErrPasswordTooLong
	}

	if err := passwordvalidator.Validate(p, minPasswordEntropy); err != nil {
		return ErrPasswordTooWeak
	}

	return nil
}
