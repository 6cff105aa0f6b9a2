// auth.go handles operator login.
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/tubeboard-api/internal/middleware"
	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
)

// Login exchanges the operator password for a session token.
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	if h.Auth == nil || !h.Auth.Enabled() {
		respondError(c, http.StatusNotFound, "auth_disabled", "Operator auth is not enabled on this server")
		return
	}

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Password is required")
		return
	}

	resp, err := h.Auth.Login(req.Password)
	if errors.Is(err, middleware.ErrInvalidPassword) {
		respondError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid password")
		return
	}
	if err != nil {
		log.Printf("❌ Failed to issue token: %v", err)
		respondError(c, http.StatusInternalServerError, "token_error", "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, resp)
}
