package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskhive/taskhive-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check probes database and broker connectivity
	r.GET("/health", func(c *gin.Context) {
		if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}

		if !deps.RabbitClient.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "broker disconnected",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "taskhive-api",
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	bidHandler := handler.NewBidHandler(deps)
	paymentHandler := handler.NewPaymentHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.PUT("/:job_id", jobHandler.UpdateJob)

			// Lifecycle transitions
			jobs.POST("/:job_id/open", jobHandler.OpenForBids)
			jobs.POST("/:job_id/start", jobHandler.StartWork)
			jobs.POST("/:job_id/complete", jobHandler.CompleteJob)
			jobs.POST("/:job_id/release", jobHandler.ReleasePayment)
			jobs.POST("/:job_id/finalize", jobHandler.FinalizeJob)
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)

			// Bidding on a job
			jobs.POST("/:job_id/bids", bidHandler.PlaceBid)
			jobs.GET("/:job_id/bids", bidHandler.ListBids)

			// Confirmation codes
			jobs.GET("/:job_id/codes", jobHandler.GetConfirmationCodes)
			jobs.POST("/:job_id/codes/start/reissue", jobHandler.ReissueStartCode)
			jobs.POST("/:job_id/codes/release/reissue", jobHandler.ReissueReleaseCode)

			// Escrow
			jobs.POST("/:job_id/escrow", paymentHandler.LockEscrow)
			jobs.GET("/:job_id/escrow", paymentHandler.EscrowStatus)
		}

		bids := v1.Group("/bids")
		{
			bids.POST("/:bid_id/accept", bidHandler.AcceptBid)
			bids.POST("/:bid_id/handshake", bidHandler.Handshake)
		}
	}

	return r
}
