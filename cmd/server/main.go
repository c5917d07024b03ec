package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/trunkstat/internal/api"
	"github.com/ZanzyTHEbar/trunkstat/internal/config"
	apperrors "github.com/ZanzyTHEbar/trunkstat/internal/errors"
	"github.com/ZanzyTHEbar/trunkstat/internal/middleware"
	"github.com/ZanzyTHEbar/trunkstat/internal/monitoring"
	"github.com/ZanzyTHEbar/trunkstat/internal/ratelimit"
	"github.com/ZanzyTHEbar/trunkstat/internal/security"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load(getEnvOrDefault("TRUNKSTAT_CONFIG", ""))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := monitoring.NewLoggerWithWriter(os.Stdout, monitoring.ParseLevel(cfg.Log.Level))
	slog.SetDefault(appLogger.Logger)

	if monitoring.ParseLevel(cfg.Log.Level) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appMetrics := monitoring.NewMetrics()
	go monitoring.NewMemorySampler(appMetrics, appLogger, 15*time.Second).Run(ctx)

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewRateLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		})
		go limiter.Run(ctx)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      setupRouter(cfg, appMetrics, appLogger, limiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Server.Port, "policy", cfg.Engine.Policy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

// setupRouter wires middleware and routes. A nil limiter disables rate limiting.
func setupRouter(cfg config.Config, metrics *monitoring.Metrics, logger *monitoring.Logger, limiter *ratelimit.RateLimiter) *gin.Engine {
	r := gin.New()
	compressor := middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig())

	r.Use(monitoring.RequestIDMiddleware())
	r.Use(monitoring.MonitoringMiddleware(metrics, logger))
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())
	r.Use(security.SecurityHeadersMiddleware())
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   version,
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		stats := metrics.GetStats()
		if limiter != nil {
			stats["rate_limiter"] = limiter.GetStats()
		}
		stats["compression"] = compressor.GetStats()
		c.JSON(http.StatusOK, stats)
	})

	routes := r.Group("")
	if limiter != nil {
		routes.Use(limiter.IPRateLimitMiddleware())
	}
	routes.Use(security.RequireJSON(), security.BodyLimit(int64(cfg.Server.MaxBodyBytes)))
	routes.Use(compressor.Handler())
	api.NewHandler(cfg, metrics, logger).Register(routes)

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsConfig.AddAllowHeaders(monitoring.RequestIDHeader)
	corsConfig.ExposeHeaders = []string{
		monitoring.RequestIDHeader,
		"X-RateLimit-Limit",
		"X-RateLimit-Remaining",
		"X-RateLimit-Reset",
		"Retry-After",
	}

	if len(origins) == 0 || slices.Contains(origins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}

	return cors.New(corsConfig)
}

// getEnvOrDefault reads key from the environment
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
