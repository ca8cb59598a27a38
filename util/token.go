package util

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// GenerateToken returns a hex string of 2n characters built from n
// cryptographically random bytes
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)

	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// GenerateDigitCode returns a random code of n decimal digits, zero-padded.
// Used for email verification codes that users type by hand
func GenerateDigitCode(n int) (string, error) {
	upper := big.NewInt(1)
	for range n {
		upper.Mul(upper, big.NewInt(10))
	}

	v, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", err
	}

	s := v.String()
	for len(s) < n {
		s = "0" + s
	}

	return s, nil
}
