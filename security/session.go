package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

// SessionDuration is how long an auth cookie stays valid. Sessions are
// stateless, so there is no server-side record to revoke before this runs out
const SessionDuration = time.Hour * 24 * 7

const (
	SessionCookie  = "auth_token"
	LoggedInCookie = "logged_in"
)

var ErrSessionInvalid = errors.New("session token invalid or expired")

// MakeSessionToken mints a signed HS256 token claiming the given user ID
func MakeSessionToken(userID string) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"type":    "auth",
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(SessionDuration).Unix(),
	})

	return t.SignedString([]byte(viper.GetString("jwt.secret")))
}

// ParseSessionToken validates a session token and returns the user ID it
// claims. Any parse, signature or expiry problem comes back as
// ErrSessionInvalid so callers can't leak the reason to clients
func ParseSessionToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}

		return []byte(viper.GetString("jwt.secret")), nil
	})
	if err != nil || !token.Valid {
		return "", ErrSessionInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrSessionInvalid
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", ErrSessionInvalid
	}

	return userID, nil
}

// SetSessionCookies attaches the session token as an HTTP-only cookie plus a
// JS-readable logged_in marker the frontend can branch on
func SetSessionCookies(c *gin.Context, token string) {
	ssl := viper.GetBool("host.ssl.enabled")
	maxAge := int(SessionDuration.Seconds())

	c.SetCookie(SessionCookie, token, maxAge, "/", "", ssl, true)
	c.SetCookie(LoggedInCookie, "1", maxAge, "/", "", ssl, false)
}

// ClearSessionCookies expires both session cookies
func ClearSessionCookies(c *gin.Context) {
	ssl := viper.GetBool("host.ssl.enabled")

	c.SetCookie(SessionCookie, "", -1, "/", "", ssl, true)
	c.SetCookie(LoggedInCookie, "", -1, "/", "", ssl, false)
}
