package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/chaintalk-ai/chaintalk/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc
	Me       http.HandlerFunc

	// Chat handlers
	Chat       http.HandlerFunc
	ChatStream http.HandlerFunc

	// Conversation handlers
	ListConversations   http.HandlerFunc
	RenameConversation  http.HandlerFunc
	ArchiveConversation http.HandlerFunc
	DeleteConversation  http.HandlerFunc
	ExportConversation  http.HandlerFunc
	ContextSummary      http.HandlerFunc

	// History and stats
	SearchHistory http.HandlerFunc
	UserStats     http.HandlerFunc

	// Price handlers
	AssetPrice     http.HandlerFunc
	TrendingAssets http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// HealthCheckers reports the readiness of each backing dependency.
type HealthCheckers struct {
	Redis func(context.Context) bool
	Store func(context.Context) bool
	LLM   func(context.Context) bool
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	ChatRateLimiter    func(http.Handler) http.Handler
	AuthRateLimiter    func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig, health HealthCheckers, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe, always 200 with no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe checks Redis, the message store and the LLM API
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		report := map[string]string{
			"status": "healthy",
			"redis":  "healthy",
			"store":  "healthy",
			"llm":    "healthy",
		}
		status := http.StatusOK

		check := func(name string, probe func(context.Context) bool) {
			if probe == nil {
				report[name] = "not configured"
				return
			}
			if !probe(r.Context()) {
				report[name] = "unhealthy"
				report["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
		check("redis", health.Redis)
		check("store", health.Store)
		check("llm", health.LLM)

		JSON(w, status, report)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public), rate-limited against credential stuffing
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
				r.Get("/me", h.Me)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			// Chat routes, rate-limited per client IP
			r.Group(func(r chi.Router) {
				if cfg.ChatRateLimiter != nil {
					r.Use(cfg.ChatRateLimiter)
				}
				r.Post("/chat", h.Chat)
				r.Post("/chat/stream", h.ChatStream)
			})

			// Conversation routes
			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", h.ListConversations)

				r.Route("/{conversationID}", func(r chi.Router) {
					r.Patch("/", h.RenameConversation)
					r.Post("/archive", h.ArchiveConversation)
					r.Delete("/", h.DeleteConversation)
					r.Get("/export", h.ExportConversation)
					r.Get("/context", h.ContextSummary)
				})
			})

			r.Get("/history/search", h.SearchHistory)
			r.Get("/stats", h.UserStats)

			// Price routes
			r.Route("/prices", func(r chi.Router) {
				r.Get("/trending", h.TrendingAssets)
				r.Get("/{assetID}", h.AssetPrice)
			})
		})
	})

	return r
}
