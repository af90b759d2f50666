package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/chaintalk-ai/chaintalk/internal/api"
	"github.com/chaintalk-ai/chaintalk/internal/auth"
	"github.com/chaintalk-ai/chaintalk/internal/cache"
	"github.com/chaintalk-ai/chaintalk/internal/chat"
	"github.com/chaintalk-ai/chaintalk/internal/config"
	"github.com/chaintalk-ai/chaintalk/internal/contextwindow"
	"github.com/chaintalk-ai/chaintalk/internal/llm"
	"github.com/chaintalk-ai/chaintalk/internal/middleware"
	"github.com/chaintalk-ai/chaintalk/internal/prices"
	iredis "github.com/chaintalk-ai/chaintalk/internal/redis"
	"github.com/chaintalk-ai/chaintalk/internal/server"
	"github.com/chaintalk-ai/chaintalk/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx := context.Background()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	cacheManager := cache.New(redisClient)

	// Message store
	storeClient := store.NewClient(cfg.Store)
	if err := storeClient.EnsureCollections(ctx); err != nil {
		slog.Error("preparing message store", "error", err)
		os.Exit(1)
	}

	// LLM backend and context window manager
	llmClient := llm.NewClient(cfg.LLM)
	profile := llm.ResolveProfile(cfg.LLM)
	selectionCache := contextwindow.NewSelectionCache(redisClient, 0, 0)
	manager, err := contextwindow.NewManager(profile, chat.HistorySource{Store: storeClient}, selectionCache)
	if err != nil {
		slog.Error("building context window manager", "model", profile.Model, "error", err)
		os.Exit(1)
	}
	manager.Configure(cfg.Chat.MaxContextMessages, 0)
	slog.Info("context window ready",
		"model", profile.Model,
		"available_tokens", manager.Budget().Available(),
	)

	// Market data
	priceSvc := prices.NewService(prices.NewCoinGeckoClient(cfg.Prices), cacheManager, cfg.Prices.CacheTTL)
	priceHandler := prices.NewHandler(priceSvc)

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, storeClient, redisClient)
	authHandler := auth.NewHandler(authSvc)

	// Chat pipeline
	chatSvc := chat.NewService(storeClient, cacheManager, llmClient, priceSvc, manager, cfg.Chat)
	chatHandler := chat.NewHandler(chatSvc)

	// Router
	chatLimiter := middleware.NewRateLimiter(redisClient, "chat", cfg.RateLimit.Requests, cfg.RateLimit.WindowSec)
	authLimiter := middleware.NewRateLimiter(redisClient, "auth", cfg.RateLimit.AuthRequests, cfg.RateLimit.WindowSec)
	router := api.NewRouter(
		api.RouterConfig{
			ChatRateLimiter: chatLimiter.Middleware,
			AuthRateLimiter: authLimiter.Middleware,
		},
		api.HealthCheckers{
			Redis: func(ctx context.Context) bool { return cacheManager.Healthy(ctx) },
			Store: storeClient.Healthy,
			LLM:   llmClient.Healthy,
		},
		api.HandlerSet{
			Register: authHandler.Register,
			Login:    authHandler.Login,
			Refresh:  authHandler.Refresh,
			Logout:   authHandler.Logout,
			Me:       authHandler.Me,

			Chat:       chatHandler.Chat,
			ChatStream: chatHandler.ChatStream,

			ListConversations:   chatHandler.ListConversations,
			RenameConversation:  chatHandler.RenameConversation,
			ArchiveConversation: chatHandler.ArchiveConversation,
			DeleteConversation:  chatHandler.DeleteConversation,
			ExportConversation:  chatHandler.ExportConversation,
			ContextSummary:      chatHandler.ContextSummary,

			SearchHistory: chatHandler.SearchHistory,
			UserStats:     chatHandler.UserStats,

			AssetPrice:     priceHandler.AssetPrice,
			TrendingAssets: priceHandler.TrendingAssets,

			AuthMiddleware: auth.Middleware(authSvc),
		},
	)

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
