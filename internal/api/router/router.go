package router

import (
	"net/http"

	"github.com/freelancehub/escrow-engine/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes.
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "escrow-service",
		})
	})

	escrowHandler := handler.NewEscrowHandler(deps)

	// API v1 routes; every escrow operation requires an authenticated actor.
	v1 := r.Group("/api/v1")
	v1.Use(ActorMiddleware())
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", escrowHandler.CreateJob)
			jobs.GET("/:job_id", escrowHandler.GetJob)
			jobs.POST("/:job_id/start", escrowHandler.StartWork)
			jobs.POST("/:job_id/submit", escrowHandler.SubmitWork)
			jobs.POST("/:job_id/approve", escrowHandler.ApproveWork)
			jobs.POST("/:job_id/dispute", escrowHandler.OpenDispute)
			jobs.POST("/:job_id/resolve", escrowHandler.ResolveDispute)
			jobs.POST("/:job_id/cancel", escrowHandler.CancelJob)
			jobs.POST("/:job_id/refund", escrowHandler.Refund)
		}

		policy := v1.Group("/policy")
		{
			policy.PUT("/arbiters/:identity", escrowHandler.SetArbiter)
			policy.DELETE("/arbiters/:identity", escrowHandler.RemoveArbiter)
		}

		accounts := v1.Group("/accounts")
		{
			accounts.POST("/:identity/deposit", escrowHandler.Deposit)
			accounts.GET("/:identity/balance", escrowHandler.Balance)
		}
	}

	return r
}
