package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bitwise74/face-auth-api/face"
	"bitwise74/face-auth-api/model"
	"bitwise74/face-auth-api/security"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// stubComparator replaces the dlib pipeline so handler tests don't need
// model files or real faces
type stubComparator struct {
	distance float64
	err      error
}

func (s *stubComparator) Compare(_ string, _ []byte) (float64, error) {
	return s.distance, s.err
}

type mailRecorder struct {
	mu           sync.Mutex
	verification int
	welcome      int
	reset        int
	resetSuccess int
	lastLink     string
}

func (m *mailRecorder) SendVerificationMail(_, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verification++
	return nil
}

func (m *mailRecorder) SendWelcomeMail(_, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcome++
	return nil
}

func (m *mailRecorder) SendPasswordResetMail(_, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset++
	m.lastLink = link
	return nil
}

func (m *mailRecorder) SendResetSuccessMail(_ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetSuccess++
	return nil
}

func (m *mailRecorder) counts() (verification, welcome, reset, resetSuccess int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verification, m.welcome, m.reset, m.resetSuccess
}

func newTestAPI(t *testing.T, faces face.Comparator) (*API, *mailRecorder) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	viper.Set("jwt.secret", "test-secret")
	viper.Set("face.match_threshold", 0.6)
	viper.Set("client.url", "http://localhost:5173")
	viper.Set("ratelimit.rps", 10000)
	viper.Set("ratelimit.burst", 10000)

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.User{}))

	mail := &mailRecorder{}

	a := &API{
		DB:    db,
		Argon: security.New(),
		Faces: faces,
		Mail:  mail,
	}
	a.setupRoutes()

	return a, mail
}

func testImage(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func doJSON(t *testing.T, a *API, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}

func parseBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == security.SessionCookie && c.Value != "" {
			return c
		}
	}
	return nil
}

func signup(t *testing.T, a *API, email, password, name string) *httptest.ResponseRecorder {
	t.Helper()

	return doJSON(t, a, http.MethodPost, "/api/auth/signup", gin.H{
		"email":    email,
		"password": password,
		"name":     name,
		"image":    testImage(t),
	})
}

func TestSignup(t *testing.T) {
	a, mail := newTestAPI(t, &stubComparator{})

	w := signup(t, a, "a@x.com", "p1-strong-Password", "A")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := parseBody(t, w)
	user := body["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
	assert.Equal(t, "A", user["name"])
	assert.Equal(t, true, user["verified"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, user, "image")
	assert.NotContains(t, user, "faceImage")

	// Signup logs the user straight in
	assert.NotNil(t, sessionCookie(w))

	var stored model.User
	require.NoError(t, a.DB.Where("email = ?", "a@x.com").First(&stored).Error)

	// The stored hash must never be the plaintext, and only the right
	// password may verify against it
	assert.NotEqual(t, "p1-strong-Password", stored.PasswordHash)
	ok, err := a.Argon.VerifyPasswd("p1-strong-Password", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = a.Argon.VerifyPasswd("p1-strong-Passwore", stored.PasswordHash)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NotEmpty(t, stored.FaceImage)
	require.NotNil(t, stored.VerificationToken)
	assert.Len(t, *stored.VerificationToken, 6)

	require.Eventually(t, func() bool {
		v, _, _, _ := mail.counts()
		return v == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSignupMissingFields(t *testing.T) {
	a, _ := newTestAPI(t, &stubComparator{})

	w := doJSON(t, a, http.MethodPost, "/api/auth/signup", gin.H{
		"email":    "a@x.com",
		"password": "p1-strong-Password",
		"name":     "A",
		// no image
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignupDuplicateEmail(t *testing.T) {
	a, _ := newTestAPI(t, &stubComparator{})

	w := signup(t, a, "a@x.com", "p1-strong-Password", "A")
	require.Equal(t, http.StatusCreated, w.Code)

	w = signup(t, a, "a@x.com", "other-strong-Passw0rd", "B")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, parseBody(t, w)["error"], "already registered")
}

func TestSignupRejectsBadImage(t *testing.T) {
	a, _ := newTestAPI(t, &stubComparator{})

	w := doJSON(t, a, http.MethodPost, "/api/auth/signup", gin.H{
		"email":    "a@x.com",
		"password": "p1-strong-Password",
		"name":     "A",
		"image":    "%%%not-base64%%%",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginSameFace(t *testing.T) {
	faces := &stubComparator{distance: 0.01}
	a, _ := newTestAPI(t, faces)

	require.Equal(t, http.StatusCreated, signup(t, a, "a@x.com", "p1-strong-Password", "A").Code)

	w := doJSON(t, a, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "a@x.com",
		"password": "p1-strong-Password",
		"image":    testImage(t),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotNil(t, sessionCookie(w))

	var stored model.User
	require.NoError(t, a.DB.Where("email = ?", "a@x.com").First(&stored).Error)
	require.NotNil(t, stored.LastLoginAt)
	first := *stored.LastLoginAt

	// Last login has to strictly increase between logins
	time.Sleep(20 * time.Millisecond)

	w = doJSON(t, a, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "a@x.com",
		"password": "p1-strong-Password",
		"image":    testImage(t),
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, a.DB.Where("email = ?", "a@x.com").First(&stored).Error)
	require.NotNil(t, stored.LastLoginAt)
	assert.True(t, stored.LastLoginAt.After(first))
}

func TestLoginUniformCredentialError(t *testing.T) {
	a, _ := newTestAPI(t, &stubComparator{})

	require.Equal(t, http.StatusCreated, signup(t, a, "a@x.com", "p1-strong-Password", "A").Code)

	unknown := doJSON(t, a, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "nobody@x.com",
		"password": "p1-strong-Password",
		"image":    testImage(t),
	})
	wrongPass := doJSON(t, a, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "a@x.com",
		"password": "wrong-Password-123",
		"image":    testImage(t),
	})

	// Unknown email and wrong password must be indistinguishable so the
	// endpoint can't be used to enumerate accounts
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, parseBody(t, unknown)["error"], parseBody(t, wrongPass)["error"])
}

func TestLoginFaceMismatch(t *testing.T) {
	faces := &stubComparator{distance: 0.85}
	a, _ := newTestAPI(t, faces)

	require.Equal(t, http.StatusCreated, signup(t, a, "a@x.com", "p1-strong-Password", "A").Code)

	w := doJSON(t, a, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "a@x.com",
		"password": "p1-strong-Password",
		"image":    testImage(t),
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, sessionCookie(w))

	// A failed face check must not advance the login timestamp
	var stored model.User
	require.NoError(t, a.DB.Where("email = ?", "a@x.com").First(&stored).Error)
	assert.Nil(t, stored.LastLoginAt)
}

func TestLoginThresholdBoundary(t *testing.T) {
	faces := &stubComparator{}
	a, _ := newTestAPI(t, faces)

	require.Equal(t, http.StatusCreated, signup(t, a, "a@x.com", "p1-strong-Password", "A").Code)

	login := func() *httptest.ResponseRecorder {
		return doJSON(t, a, http.MethodPost, "/api/auth/login", gin.H{
			"email":    "a@x.com",
			"password": "p1-strong-Password",
			"image":    testImage(t),
		})
	}

	// Exactly at the threshold is a rejection, only strictly below passes
	faces.distance = 0.6
	assert.Equal(t, http.StatusUnauthorized, login().Code)

	faces.distance = 0.59
	assert.Equal(t, http.StatusOK, login().Code)
}

func TestLoginNoFaceDetected(t *testing.T) {
	faces := &stubComparator{err: face.ErrNoFaceDetected}
	a, _ := newTestAPI(t, faces)

	require.Equal(t, http.StatusCreated, signup(t, a, "a@x.com", "p1-strong-Password", "A").Code)

	w := doJSON(t, a, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "a@x.com",
		"password": "p1-strong-Password",
		"image":    testImage(t),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, sessionCookie(w))
}

func TestVerifyEmail(t *testing.T) {
	a, mail := newTestAPI(t, &stubComparator{})

	require.Equal(t, http.StatusCreated, signup(t, a, "a@x.com", "p1-strong-Password", "A").Code)

	var stored model.User
	require.NoError(t, a.DB.Where("email = ?", "a@x.com").First(&stored).Error)
	require.NotNil(t, stored.VerificationToken)
	code := *stored.VerificationToken

	w := doJSON(t, a, http.MethodPost, "/api/auth/verify-email", gin.H{"code": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, a.DB.Where("email = ?", "a@x.com").First(&stored).Error)
	assert.True(t, stored.Verified)
	assert.Nil(t, stored.VerificationToken)
	assert.Nil(t, stored.VerificationExpiresAt)

	require.Eventually(t, func() bool {
		_, welcome, _, _ := mail.counts()
		return welcome == 1
	}, time.Second, 10*time.Millisecond)

	// The code is single-use
	w = doJSON(t, a, http.MethodPost, "/api/auth/verify-email", gin.H{"code": code})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyEmailExpiredCode(t *testing.T) {
	a, _ := newTestAPI(t, &stubComparator{})

	require.Equal(t, http.StatusCreated, signup(t, a, "a@x.com", "p1-strong-Password", "A").Code)

	var stored model.User
	require.NoError(t, a.DB.Where("email = ?", "a@x.com").First(&stored).Error)
	code := *stored.VerificationToken

	// A matching code that has passed its expiry is the same as no code.
	// Expiry equal to "now" counts as expired too
	past := time.Now().Add(-time.Second)
	require.NoError(t, a.DB.Model(&stored).Update("verification_expires_at", past).Error)

	w := doJSON(t, a, http.MethodPost, "/api/auth/verify-email", gin.H{"code": code})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, parseBody(t, w)["error"], "Invalid or expired")
}

func TestForgotAndResetPassword(t *testing.T) {
	a, mail := newTestAPI(t, &stubComparator{distance: 0.01})

	require.Equal(t, http.StatusCreated, signup(t, a, "a@x.com", "p1-strong-Password", "A").Code)

	w := doJSON(t, a, http.MethodPost, "/api/auth/forgot-password", gin.H{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored model.User
	require.NoError(t, a.DB.Where("email = ?", "a@x.com").First(&stored).Error)
	require.NotNil(t, stored.ResetToken)
	token := *stored.ResetToken
	assert.Len(t, token, 40)
	require.NotNil(t, stored.ResetExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *stored.ResetExpiresAt, time.Minute)

	require.Eventually(t, func() bool {
		_, _, reset, _ := mail.counts()
		return reset == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "http://localhost:5173/reset-password/"+token, mail.lastLink)

	w = doJSON(t, a, http.MethodPost, "/api/auth/reset-password/"+token, gin.H{
		"password": "brand-new-Passw0rd",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, a.DB.Where("email = ?", "a@x.com").First(&stored).Error)
	assert.Nil(t, stored.ResetToken)
	assert.Nil(t, stored.ResetExpiresAt)

	// New password works, old one doesn't
	w = doJSON(t, a, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "a@x.com",
		"password": "brand-new-Passw0rd",
		"image":    testImage(t),
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, a, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "a@x.com",
		"password": "p1-strong-Password",
		"image":    testImage(t),
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Replaying the used token fails
	w = doJSON(t, a, http.MethodPost, "/api/auth/reset-password/"+token, gin.H{
		"password": "yet-another-Passw0rd",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, parseBody(t, w)["error"], "Invalid or expired")
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	a, mail := newTestAPI(t, &stubComparator{})

	w := doJSON(t, a, http.MethodPost, "/api/auth/forgot-password", gin.H{"email": "nobody@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, parseBody(t, w)["error"], "User not found")

	// No token persisted, no mail triggered
	var count int64
	require.NoError(t, a.DB.Model(model.User{}).Where("reset_token IS NOT NULL").Count(&count).Error)
	assert.Zero(t, count)

	time.Sleep(50 * time.Millisecond)
	_, _, reset, _ := mail.counts()
	assert.Zero(t, reset)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	a, _ := newTestAPI(t, &stubComparator{})

	require.Equal(t, http.StatusCreated, signup(t, a, "a@x.com", "p1-strong-Password", "A").Code)

	var stored model.User
	require.NoError(t, a.DB.Where("email = ?", "a@x.com").First(&stored).Error)

	token := "aaaabbbbccccddddeeeeffff0000111122223333"
	past := time.Now().Add(-time.Minute)
	require.NoError(t, a.DB.Model(&stored).Updates(map[string]any{
		"reset_token":      token,
		"reset_expires_at": past,
	}).Error)

	w := doJSON(t, a, http.MethodPost, "/api/auth/reset-password/"+token, gin.H{
		"password": "brand-new-Passw0rd",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckAuth(t *testing.T) {
	a, _ := newTestAPI(t, &stubComparator{})

	w := signup(t, a, "a@x.com", "p1-strong-Password", "A")
	require.Equal(t, http.StatusCreated, w.Code)
	cookie := sessionCookie(w)
	require.NotNil(t, cookie)

	w = doJSON(t, a, http.MethodGet, "/api/auth/check-auth", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	user := parseBody(t, w)["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])

	// No cookie at all
	w = doJSON(t, a, http.MethodGet, "/api/auth/check-auth", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Garbage cookie
	w = doJSON(t, a, http.MethodGet, "/api/auth/check-auth", nil, &http.Cookie{
		Name:  security.SessionCookie,
		Value: "garbage",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckAuthDeletedUser(t *testing.T) {
	a, _ := newTestAPI(t, &stubComparator{})

	// A structurally valid session for an ID that doesn't resolve anymore
	token, err := security.MakeSessionToken("gonegonegonegone")
	require.NoError(t, err)

	w := doJSON(t, a, http.MethodGet, "/api/auth/check-auth", nil, &http.Cookie{
		Name:  security.SessionCookie,
		Value: token,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, parseBody(t, w)["error"], "User not found")
}

func TestLogout(t *testing.T) {
	a, _ := newTestAPI(t, &stubComparator{})

	w := doJSON(t, a, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == security.SessionCookie {
			cleared = c.Value == "" && c.MaxAge < 0
		}
	}
	assert.True(t, cleared, "auth_token cookie should be expired")
}
