package api

import (
	"log"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/textly/backend/internal/api/handlers"
	"github.com/textly/backend/internal/auth"
	"github.com/textly/backend/internal/billing"
	"github.com/textly/backend/internal/cache"
	"github.com/textly/backend/internal/config"
	"github.com/textly/backend/internal/database"
	"github.com/textly/backend/internal/middleware"
	"github.com/textly/backend/internal/ratelimit"
	"github.com/textly/backend/internal/repository"
)

// NewRouter creates and configures the main router
func NewRouter(cfg *config.Config, db *database.DB, redisCache *cache.Redis) *chi.Mux {
	r := chi.NewRouter()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	quotaRepo := repository.NewQuotaRepository(db)

	// Auth services
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTExpiration)
	authMiddleware := auth.NewMiddleware(jwtService)

	// Billing core
	evaluator := billing.NewEvaluator(subRepo, redisCache, cfg.EntitlementCacheTTL)
	tracker := billing.NewTracker(quotaRepo, cfg.FreeDailyLimit)
	ingester := billing.NewIngester([]byte(cfg.PayhipWebhookSecret), userRepo, subRepo, evaluator)
	if cfg.PayhipWebhookSecret == "" {
		log.Println("[api] PAYHIP_WEBHOOK_SECRET is not set; webhook endpoint will reject all events")
	}

	// Rate limiter for the public-facing endpoints
	limiter := ratelimit.New(redisCache, cfg.RateLimitPerMinute, time.Minute)

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORSWithOrigins(cfg.CORSOrigins))

	// Initialize handlers
	healthHandler := handlers.NewHealthChecker(db, redisCache)
	authHandler := handlers.NewAuthHandler(userRepo, jwtService, evaluator, tracker, subRepo)
	generateHandler := handlers.NewGenerateHandler(evaluator, tracker)
	webhookHandler := handlers.NewWebhookHandler(ingester)

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", handlers.LivenessProbe)
	r.Get("/health/ready", healthHandler.ReadinessProbe)

	// Provider callbacks are verified by signature, not session, and are
	// not rate limited: the provider retries on any non-2xx.
	r.Post("/webhooks/payhip", webhookHandler.Payhip)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter))

		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Protected endpoints
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/generate", generateHandler.Generate)
			r.Get("/user/me", authHandler.Me)
			r.Get("/user/subscriptions", authHandler.Subscriptions)
		})
	})

	return r
}
