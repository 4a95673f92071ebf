package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetfusion/internal/cache"
	"fleetfusion/internal/config"
	"fleetfusion/internal/handler"
	"fleetfusion/internal/limiter"
	"fleetfusion/internal/middleware"
	"fleetfusion/internal/repository"
	"fleetfusion/internal/service"
	"fleetfusion/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	repos := repository.NewRepositories(dbPool, rdb, appLogger)

	// The limiter store and both caches own background sweepers; they are
	// stopped explicitly during shutdown.
	limiterStore := limiter.NewStore(cfg.RateLimit.SweepInterval, appLogger)
	authCache := cache.NewAuthCache(cache.Options{
		UserTTL:       cfg.Cache.UserTTL,
		OrgTTL:        cfg.Cache.OrgTTL,
		PermissionTTL: cfg.Cache.PermissionTTL,
		SweepInterval: cfg.Cache.SweepInterval,
	}, appLogger)
	sessionCache := cache.NewSessionCache(cfg.Cache.SessionTTL, cfg.Cache.SweepInterval, appLogger)

	services, err := service.NewServices(repos, sessionCache, authCache, limiterStore, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize services", "error", err)
	}

	if err := services.RateLimit.ReloadRules(context.Background()); err != nil {
		appLogger.Warn("Failed to load rate limit rule overrides, using config defaults", "error", err)
	}

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, services.Audit, appLogger)

	handlers := handler.NewHandlers(services, authCache, sessionCache, cfg, appLogger)

	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	limiterStore.Stop()
	authCache.Stop()
	sessionCache.Stop()

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)

	v1 := router.Group("/api/v1")
	{
		// Webhooks are unauthenticated but signature-checked and globally
		// rate-limited across all instances.
		v1.POST("/webhooks/identity", rateLimitMiddleware.LimitGlobal(), handlers.Webhook.Identity)

		authorized := v1.Group("")
		authorized.Use(authMiddleware.RequireAuth())
		{
			authorized.GET("/me", rateLimitMiddleware.Limit("default"), handlers.Me.Get)

			admin := authorized.Group("/admin")
			admin.Use(authMiddleware.RequirePermission("admin:manage"))
			{
				admin.GET("/ratelimit/stats", handlers.Admin.RateLimitStats)
				admin.GET("/ratelimit/status", handlers.Admin.RateLimitStatus)
				admin.POST("/ratelimit/reset", handlers.Admin.RateLimitReset)
				admin.POST("/ratelimit/rules/reload", handlers.Admin.RulesReload)
				admin.GET("/cache/stats", handlers.Admin.CacheStats)
				admin.POST("/cache/invalidate", handlers.Admin.CacheInvalidate)
			}
		}
	}

	return router
}
