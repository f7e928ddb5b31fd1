package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/orzulab/billz-worker/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.DBClient != nil {
			if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "billz-api-service",
					"error":   err.Error(),
				})
				return
			}
		}
		if deps.RabbitClient != nil && !deps.RabbitClient.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "billz-api-service",
				"error":   "rabbitmq connection lost",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "billz-api-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	logHandler := handler.NewLogHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Enqueue a new job
			jobs.POST("", jobHandler.EnqueueJob)
		}

		logs := v1.Group("/logs")
		{
			// GET /api/v1/logs - List audit records with filtering and pagination
			logs.GET("", logHandler.ListLogs)

			// GET /api/v1/logs/errors - Most recent failure records
			logs.GET("/errors", logHandler.ErrorLogs)

			// GET /api/v1/logs/correlation/:correlation_id - Full trail of one job
			logs.GET("/correlation/:correlation_id", logHandler.LogsByCorrelation)
		}
	}

	return r
}
