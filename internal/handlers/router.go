package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/abdul-hamid-achik/kiosk/internal/config"
	"github.com/abdul-hamid-achik/kiosk/internal/middleware"
	"github.com/abdul-hamid-achik/kiosk/internal/ratelimit"
	"github.com/abdul-hamid-achik/kiosk/internal/session"
	"github.com/abdul-hamid-achik/kiosk/internal/vault"
)

// Dependencies holds all the dependencies needed for handlers.
type Dependencies struct {
	Config   *config.Config
	Vault    *vault.Vault
	Sessions *session.Manager
	Limiter  *ratelimit.Limiter
	// Throttle limits request volume on /api/auth. Nil disables it.
	Throttle middleware.Allower
	// Redis is checked by /ready when set.
	Redis  *redis.Client
	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps *Dependencies) http.Handler {
	r := chi.NewRouter()
	r.NotFound(NotFoundHandler)
	r.MethodNotAllowed(MethodNotAllowedHandler)

	// Global middleware
	if deps.Config.Server.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.Metrics())
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(chimiddleware.Timeout(deps.Config.Server.RequestTimeout))
	r.Use(middleware.SecurityHeaders(deps.Config.Server.SecureCookies))
	r.Use(middleware.MaxBodySize(deps.Config.Security.MaxRequestBodySize))
	if len(deps.Config.Server.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.Config.Server.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	cookie := middleware.SessionCookie{
		MaxAge: deps.Sessions.AbsoluteTTL(),
		Secure: deps.Config.Server.SecureCookies,
	}
	sessionAuth := middleware.SessionAuth(deps.Sessions, cookie)

	// Create handlers
	healthHandler := NewHealthHandler(deps.Vault, deps.Redis)
	authHandler := NewAuthHandler(deps.Vault, deps.Sessions, deps.Limiter, cookie)
	configHandler := NewConfigHandler(deps.Vault, deps.Sessions, deps.Limiter, cookie)

	// Health checks and metrics (no auth, no rate limit)
	r.Get("/health", healthHandler.Liveness)
	r.Get("/ready", healthHandler.Readiness)
	if deps.Config.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Liveness)

		r.Route("/auth", func(r chi.Router) {
			if deps.Throttle != nil {
				r.Use(middleware.RateLimit(deps.Throttle))
			}
			r.Get("/status", authHandler.Status)
			r.Post("/init-setup", authHandler.InitSetup)
			r.Post("/complete-setup", authHandler.CompleteSetup)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.With(sessionAuth).Post("/change-pin", authHandler.ChangePIN)
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/public", configHandler.GetPublicConfig)

			r.Group(func(r chi.Router) {
				r.Use(sessionAuth)
				r.Get("/", configHandler.GetConfig)
				r.Put("/", configHandler.UpdateConfig)
				r.Post("/factory-reset", configHandler.FactoryReset)
			})
		})
	})

	return r
}
