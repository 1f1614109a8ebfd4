// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"skuforge/internal/core/idempotency"
	"skuforge/internal/core/sku"
	"skuforge/internal/infrastructure/http/v1/handlers"
	"skuforge/internal/infrastructure/http/v1/middleware"
	"skuforge/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Mode is the gin mode (release, debug, test). Empty means release.
	Mode string

	Logger *logger.Logger

	// Assigner runs batch assignments
	Assigner handlers.BatchAssigner

	// Formatter renders preview identifiers
	Formatter sku.Formatter

	// History serves the assignment journal (optional)
	History handlers.HistoryReader

	// SessionValidator enables session-token auth on /api/v1 when set
	SessionValidator middleware.SessionValidator

	// Idempotency enables X-Idempotency-Key handling on assign when set
	Idempotency idempotency.Store

	// ReadinessChecks are probed by /health/ready
	ReadinessChecks map[string]handlers.Pinger
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	mode := cfg.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.ReadinessChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	if cfg.SessionValidator != nil {
		v1.Use(middleware.Auth(cfg.SessionValidator))
	}

	var mutating []gin.HandlerFunc
	if cfg.Idempotency != nil {
		mutating = append(mutating, middleware.Idempotency(cfg.Idempotency))
	}

	skuHandler := handlers.NewSKUHandler(handlers.NewBaseHandler(), cfg.Assigner, cfg.Formatter, cfg.History)
	skuHandler.RegisterRoutes(v1, mutating...)

	return router
}
