package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/docrecon/docrecon/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	v1.Use(TimeoutMiddleware(cfg.Server.RequestTimeout))
	{
		v1.POST("/reconcile", handler.Reconcile)

		catalog := v1.Group("/catalog")
		{
			catalog.GET("/items", handler.ListCatalogItems)
			catalog.POST("/items", handler.AddCatalogItems)
		}

		orders := v1.Group("/purchase-orders")
		{
			orders.GET("", handler.ListPurchaseOrders)
			orders.POST("", handler.SavePurchaseOrder)
			orders.GET("/:orderNo/items", handler.ListPurchaseOrderItems)
		}

		v1.POST("/similarity/refresh", handler.RefreshEmbeddings)
	}

	return router
}
