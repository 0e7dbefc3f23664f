package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/offline-payment-sync/internal/api_gateway/handler"
	"github.com/offline-payment-sync/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	paymentHandler *handler.PaymentHandler,
	connectivityHandler *handler.ConnectivityHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Payment queue
		transactions := v1.Group("/transactions")
		{
			transactions.POST("", paymentHandler.Create)
			transactions.GET("", paymentHandler.List)
			transactions.POST("/sync", paymentHandler.Sync)
			transactions.GET("/:id", paymentHandler.GetByID)
			transactions.POST("/:id/retry", paymentHandler.Retry)
		}

		v1.GET("/sync-passes", paymentHandler.SyncPasses)

		// Link observations
		v1.POST("/connectivity", connectivityHandler.Report)
		v1.GET("/connectivity", connectivityHandler.Status)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
