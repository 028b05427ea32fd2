package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rewardhub/settlement-engine/internal/api_gateway/handler"
	"github.com/rewardhub/settlement-engine/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	withdrawalHandler *handler.WithdrawalHandler,
	transactionHandler *handler.TransactionHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Member withdrawal operations
		withdrawals := v1.Group("/withdrawals")
		{
			withdrawals.POST("", withdrawalHandler.Create)
			withdrawals.GET("", withdrawalHandler.List)
			withdrawals.GET("/:reference", withdrawalHandler.GetByReference)
		}

		// Admin batch operations
		admin := v1.Group("/admin/withdrawals")
		{
			admin.POST("/approve", withdrawalHandler.Approve)
			admin.POST("/reject", withdrawalHandler.Reject)
		}

		// Payment transaction lookups
		transactions := v1.Group("/transactions")
		{
			transactions.GET("", transactionHandler.List)
			transactions.GET("/:reference", transactionHandler.GetByReference)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
