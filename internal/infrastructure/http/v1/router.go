// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Valencza/sistem-inventaris-barang/internal/core/numerator"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain/audit"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain/stock"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain/transfer"
	"github.com/Valencza/sistem-inventaris-barang/internal/infrastructure/http/v1/handlers"
	"github.com/Valencza/sistem-inventaris-barang/internal/infrastructure/http/v1/middleware"
	"github.com/Valencza/sistem-inventaris-barang/internal/infrastructure/reports"
	"github.com/Valencza/sistem-inventaris-barang/internal/infrastructure/storage/postgres"
	"github.com/Valencza/sistem-inventaris-barang/internal/infrastructure/storage/postgres/stock_repo"
	"github.com/Valencza/sistem-inventaris-barang/internal/infrastructure/storage/postgres/transfer_repo"
	"github.com/Valencza/sistem-inventaris-barang/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks).
	Pool *postgres.Pool

	// TxManager runs request transactions.
	TxManager *postgres.TxManager

	// Logger for request logging.
	Logger *logger.Logger

	// JWTValidator for token validation.
	JWTValidator middleware.JWTValidator

	// Numerator generates transfer numbers.
	Numerator numerator.Generator

	// Audit records entity changes; defaults to audit.Nop when nil.
	Audit audit.Recorder
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Metrics())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health and metrics endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("", healthHandler.Live)
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auditRec := cfg.Audit
	if auditRec == nil {
		auditRec = audit.Nop{}
	}

	// Wire repositories and services
	baseHandler := handlers.NewBaseHandler()

	stockRepo := stock_repo.NewStockRepo(cfg.TxManager)
	stockService := stock.NewService(stockRepo, cfg.TxManager, auditRec)
	stockHandler := handlers.NewStockHandler(baseHandler, stockService, reports.NewBalanceExporter())

	transferRepo := transfer_repo.NewTransferRepo(cfg.TxManager)
	transferService := transfer.NewService(transferRepo, stockService, cfg.Numerator, cfg.TxManager, auditRec)
	transferHandler := handlers.NewTransferHandler(baseHandler, transferService)

	// API v1 (JWT required, identity used for attribution)
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))
	{
		stockHandler.RegisterRoutes(api.Group("/stock"))
		transferHandler.RegisterRoutes(api.Group("/transfers"))
	}

	return router
}
