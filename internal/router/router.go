package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"compass-auth/internal/handler"
	"compass-auth/internal/middleware"
	"compass-auth/internal/model"
)

type Options struct {
	CORSOrigins    []string
	RateLimitRPM   int
	RequestTimeout time.Duration
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

type Handlers struct {
	Auth        *handler.AuthHandler
	Affiliation *handler.AffiliationHandler
	Audit       *handler.AuditHandler
	Health      *handler.HealthHandler
	Metrics     http.Handler
}

func New(opts Options, authMiddleware *middleware.AuthMiddleware, observer middleware.RequestObserver, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(opts.RateLimitRPM)

	if opts.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(observer))
	r.Use(middleware.CORS(opts.CORSOrigins))

	r.Get("/health", h.Health.Health)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Group(func(api chi.Router) {
		api.Use(rateLimitMiddleware.Handler)
		api.Use(middleware.Timeout(opts.RequestTimeout))

		api.Post("/register", h.Auth.Register)
		api.Post("/login", h.Auth.Login)
		api.Post("/refresh-token", h.Auth.RefreshToken)
		api.Post("/logout", h.Auth.Logout)
		api.Post("/google-login", h.Auth.GoogleLogin)
		api.Post("/forgot-password", h.Auth.ForgotPassword)
		api.Post("/verify-code", h.Auth.VerifyCode)
		api.Post("/reset-password", h.Auth.ResetPassword)
		api.With(authMiddleware.RequireAuth).Get("/validate-token", h.Auth.ValidateToken)

		api.Route("/verify-affiliated-email", func(aff chi.Router) {
			aff.Use(authMiddleware.RequireAuth)
			aff.Post("/request", h.Affiliation.Request)
			aff.Post("/verify", h.Affiliation.Verify)
			aff.Post("/unlink", h.Affiliation.Unlink)
		})

		api.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles(model.RoleAdmin)).Get("/audit", h.Audit.List)
	})

	return r
}
