package routes

import (
	"context"
	"net/http"

	"drayage-tms/internal/config"
	"drayage-tms/internal/delivery/http/handler"
	"drayage-tms/internal/logger"
	"drayage-tms/internal/middleware"
	"drayage-tms/internal/usecase/automation"
	"drayage-tms/internal/usecase/query"
	"drayage-tms/pkg/utils"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Health() error
}

// SetupRoutes builds the HTTP surface. Background middleware goroutines stop with ctx.
func SetupRoutes(ctx context.Context, cfg *config.Config, health HealthChecker, engine *automation.Engine, queries *query.Service) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Order: recovery, request ID, logging, security headers, CORS, request size limit, rate limit
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.CORS))
	router.Use(middleware.RequestSizeLimitMiddleware(middleware.DefaultMaxRequestSize))
	router.Use(middleware.RateLimitMiddleware(ctx, cfg.RateLimit.GeneralRPS, cfg.RateLimit.GeneralBurst))

	router.GET("/health", func(c *gin.Context) {
		if err := health.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"message": "Database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Service is running",
		})
	})

	automationHandler := handler.NewAutomationHandler(engine)
	queryHandler := handler.NewQueryHandler(queries)

	v1 := router.Group("/api/v1")
	{
		automationHandler.RegisterRoutes(v1)
		queryHandler.RegisterRoutes(v1)
	}

	router.NoRoute(func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusNotFound, "Route not found")
	})

	logger.Info("All routes initialized")
	return router
}
