// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"publica/internal/domain/item"
	"publica/internal/infrastructure/http/v1/handlers"
	"publica/internal/infrastructure/http/v1/middleware"
	"publica/internal/infrastructure/storage"
	"publica/internal/metadata"
	"publica/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// ItemService runs the item pipelines for all registered models
	ItemService *item.Service

	// Registry stores model definitions
	Registry *metadata.Registry

	// Store is the active storage engine, used by health checks
	Store storage.Translator

	// Logger for request logging
	Logger *logger.Logger
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	baseHandler := handlers.NewBaseHandler()

	healthHandler := handlers.NewHealthHandler(cfg.Store)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	{
		metaHandler := handlers.NewMetadataHandler(baseHandler, cfg.Registry)
		meta := v1.Group("/meta")
		{
			meta.GET("", metaHandler.ListModels)
			meta.GET("/:name", metaHandler.GetModel)
		}

		itemHandler := handlers.NewItemHandler(baseHandler, cfg.ItemService)
		itemHandler.RegisterRoutes(v1)
	}

	return router
}
