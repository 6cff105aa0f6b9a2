// Package router sets up all HTTP routes for the API.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/tubeboard-api/internal/handlers"
	"github.com/Shimizu-Technology/tubeboard-api/internal/middleware"
)

// Setup creates and configures the Gin router with all routes.
// The rate limiter only guards endpoints that call the model provider.
func Setup(h *handlers.Handler, rateLimiter *middleware.RateLimiter, allowedOrigins []string) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CORS(allowedOrigins))

	// --- Public Routes (no auth required) ---
	r.GET("/api/v1/health", h.HealthCheck)
	r.POST("/api/v1/auth/login", h.Login)

	r.GET("/api/docs", h.ServeSwaggerUI)
	r.GET("/api/docs/openapi.yaml", h.ServeOpenAPISpec)

	// --- Protected Routes (operator token when auth is enabled) ---
	protected := r.Group("/api/v1")
	protected.Use(h.Auth.Require())
	{
		protected.GET("/models", h.ListModels)

		// Settings
		protected.GET("/settings", h.GetSettings)
		protected.PATCH("/settings", h.UpdateSettings)
		protected.PUT("/settings/credential", h.SetCredential)

		// Projects. "active" is registered before :id.
		protected.GET("/projects", h.ListProjects)
		protected.POST("/projects", h.CreateProject)
		protected.GET("/projects/active", h.GetActiveProject)
		protected.DELETE("/projects/active", h.ClearActiveProject)
		protected.GET("/projects/:id", h.GetProject)
		protected.DELETE("/projects/:id", h.DeleteProject)
		protected.POST("/projects/:id/select", h.SelectProject)

		// Generations
		protected.POST("/projects/:id/generations", rateLimiter.RateLimit(), h.CreateGeneration)
		protected.GET("/projects/:id/generations/:gid", h.GetGeneration)
		protected.GET("/projects/:id/generations/:gid/export", h.ExportGeneration)
		protected.POST("/projects/:id/generations/:gid/quiz", h.SubmitQuiz)
		protected.GET("/jobs/:id", h.GetJob)

		// Chat (Server-Sent Events)
		protected.GET("/projects/:id/chat", h.GetChat)
		protected.POST("/projects/:id/chat", rateLimiter.RateLimit(), h.PostChat)

		// Cost dashboard
		protected.GET("/costs", h.GetCosts)
		protected.GET("/costs/export", h.ExportCosts)
	}

	// Live updates (WebSocket). Browsers cannot set headers on an upgrade,
	// so this route alone also takes ?token=.
	r.GET("/api/v1/events", h.Auth.RequireWebSocket(), h.Events)

	return r
}
