// Package api contains all endpoints available
package api

import (
	"fmt"
	"time"

	"bitwise74/face-auth-api/db"
	"bitwise74/face-auth-api/face"
	"bitwise74/face-auth-api/middleware"
	"bitwise74/face-auth-api/security"
	"bitwise74/face-auth-api/service"

	ginzap "github.com/gin-contrib/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

// Signup and login carry a base64 webcam frame each
const maxAuthBodySize = 8 << 20

type API struct {
	DB     *gorm.DB
	Router *gin.Engine
	Argon  *security.ArgonHash
	Faces  face.Comparator
	Mail   service.MailSender
}

func NewRouter() (*API, error) {
	a := &API{
		Argon: security.New(),
		Mail:  service.NewMailer(),
	}

	db, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	a.DB = db

	// Load the face models before the listener starts so the first login
	// doesn't eat the disk I/O
	rec := face.NewRecognizer(viper.GetString("face.models_dir"))
	if err := rec.Warmup(); err != nil {
		return nil, err
	}
	a.Faces = rec

	makeLogger()
	a.setupRoutes()

	service.TokenCleanup(time.Hour, a.DB)

	return a, nil
}

func (a *API) setupRoutes() {
	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{viper.GetString("client.url")},
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	jwt := middleware.NewJWTMiddleware()

	rps := viper.GetInt("ratelimit.rps")
	if rps <= 0 {
		rps = 5
	}
	burst := viper.GetInt("ratelimit.burst")
	if burst <= 0 {
		burst = 10
	}

	main := router.Group("/api")
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		main.HEAD("/heartbeat", a.Heartbeat)
	}

	auth := main.Group("/auth",
		middleware.BodySizeLimiter(maxAuthBodySize),
		middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
			RequestsPerSecond: rps,
			Burst:             burst,
		}),
	)
	{
		// POST /api/auth/signup		-> Registers a new user with an enrollment face image
		auth.POST("/signup", a.AuthSignup)

		// POST /api/auth/login			-> Verifies credentials + face and sets the session cookie
		auth.POST("/login", a.AuthLogin)

		// POST /api/auth/logout		-> Clears the session cookie
		auth.POST("/logout", a.AuthLogout)

		// POST /api/auth/verify-email		-> Confirms the emailed verification code
		auth.POST("/verify-email", a.AuthVerifyEmail)

		// POST /api/auth/forgot-password	-> Issues a reset token and mails the link
		auth.POST("/forgot-password", a.AuthForgotPassword)

		// POST /api/auth/reset-password/:token	-> Sets a new password using a reset token
		auth.POST("/reset-password/:token", a.AuthResetPassword)

		// GET /api/auth/check-auth		-> Resolves the session cookie to the current user
		auth.GET("/check-auth", jwt, a.AuthCheck)
	}
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	if lvl, err := zapcore.ParseLevel(viper.GetString("app.log_level")); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}
