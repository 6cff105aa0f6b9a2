// Package handlers contains HTTP handler functions for the API.
//
// Go Pattern: Handlers in Gin receive a *gin.Context which provides:
// - Request data (params, query, body, headers)
// - Response methods (JSON, String, Status)
// - Middleware data (c.Get/c.Set)
//
// Unlike Ruby controllers, Go handlers are plain functions: no class inheritance.
// We group related handlers into a struct (Handler) that holds shared dependencies.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/tubeboard-api/internal/middleware"
	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
	"github.com/Shimizu-Technology/tubeboard-api/internal/pricing"
	"github.com/Shimizu-Technology/tubeboard-api/internal/services/gemini"
	"github.com/Shimizu-Technology/tubeboard-api/internal/services/worker"
	"github.com/Shimizu-Technology/tubeboard-api/internal/services/youtube"
	"github.com/Shimizu-Technology/tubeboard-api/internal/state"
)

// Version is reported by the health check.
const Version = "1.0.0"

// HealthChecker reports whether the backing database is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ChatStreamer starts a streamed chat turn. *gemini.Client satisfies it.
type ChatStreamer interface {
	StreamChat(ctx context.Context, req gemini.ChatRequest) (<-chan gemini.StreamEvent, error)
}

// Handler holds shared dependencies for all HTTP handlers.
// Go Pattern: Dependency injection via struct fields. Instead of global
// variables or service locators, we pass dependencies explicitly.
// This makes testing easy: just create a Handler with fake dependencies.
type Handler struct {
	Store    *state.Store
	DB       HealthChecker // nil when running on the in-memory store
	Worker   *worker.Pool
	Chat     ChatStreamer
	Auth     *middleware.Auth
	Metadata youtube.MetadataLookup // nil disables title lookup

	// AllowedOrigins are the browser origins admitted to the events feed.
	AllowedOrigins []string
}

// NewHandler creates a new handler with all dependencies.
func NewHandler(store *state.Store, db HealthChecker, wp *worker.Pool, chat ChatStreamer, auth *middleware.Auth, meta youtube.MetadataLookup) *Handler {
	return &Handler{
		Store:    store,
		DB:       db,
		Worker:   wp,
		Chat:     chat,
		Auth:     auth,
		Metadata: meta,
	}
}

// HealthCheck returns the API health status.
// GET /api/v1/health
func (h *Handler) HealthCheck(c *gin.Context) {
	dbStatus := "memory"
	if h.DB != nil {
		dbStatus = "healthy"
		if err := h.DB.HealthCheck(c.Request.Context()); err != nil {
			dbStatus = "unhealthy: " + err.Error()
		}
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:   "ok",
		Version:  Version,
		Database: dbStatus,
		Workers:  h.Worker.WorkerCount(),
		Queued:   h.Worker.QueueSize(),
	})
}

// ListModels returns the priced models.
// GET /api/v1/models
func (h *Handler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": pricing.Models()})
}

// respondError writes the standard error body.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Error:   code,
		Message: message,
		Code:    status,
	})
}
