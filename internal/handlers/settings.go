// settings.go handles the credential and user preferences.
package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
	"github.com/Shimizu-Technology/tubeboard-api/internal/pricing"
	"github.com/Shimizu-Technology/tubeboard-api/internal/state"
)

// GetSettings returns the preferences and whether a credential is set.
// GET /api/v1/settings
func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settingsResponse())
}

// UpdateSettings changes any provided preference fields.
// PATCH /api/v1/settings
//
// Request body (all fields optional):
//
//	{"selected_model": "gemini-3.1-pro-preview", "exchange_rate": 83.2,
//	 "speech": {"voice": "Samantha", "rate": 1.2, "pitch": 1}}
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req models.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Request body must be a JSON object")
		return
	}

	if req.SelectedModel != nil && !pricing.Known(*req.SelectedModel) {
		respondError(c, http.StatusBadRequest, "invalid_model", "Unknown model: "+*req.SelectedModel)
		return
	}

	// All-or-nothing: one invalid field leaves every preference unchanged.
	err := h.Store.UpdatePreferences(c.Request.Context(), state.PreferencesUpdate{
		SelectedModel: req.SelectedModel,
		ExchangeRate:  req.ExchangeRate,
		Speech:        req.Speech,
	})
	if err != nil {
		h.settingsError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.settingsResponse())
}

// SetCredential stores the Gemini API key. The key is never echoed back.
// PUT /api/v1/settings/credential
func (h *Handler) SetCredential(c *gin.Context) {
	var req models.SetCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.APIKey) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "api_key is required")
		return
	}

	if err := h.Store.SetCredential(c.Request.Context(), strings.TrimSpace(req.APIKey)); err != nil {
		h.settingsError(c, err)
		return
	}
	log.Println("🔑 API credential updated")

	c.JSON(http.StatusOK, h.settingsResponse())
}

func (h *Handler) settingsResponse() models.SettingsResponse {
	cred := h.Store.Credential()
	return models.SettingsResponse{
		CredentialSet:  cred != "",
		CredentialHint: credentialHint(cred),
		Preferences:    h.Store.Preferences(),
	}
}

func (h *Handler) settingsError(c *gin.Context, err error) {
	if errors.Is(err, state.ErrInvalidInput) {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	log.Printf("❌ Failed to save settings: %v", err)
	respondError(c, http.StatusInternalServerError, "storage_error", "Failed to save settings")
}

// credentialHint shows just enough of a key to recognize it, e.g. "AIza…x9Qk".
func credentialHint(key string) string {
	if len(key) < 12 {
		if key == "" {
			return ""
		}
		return "…"
	}
	return key[:4] + "…" + key[len(key)-4:]
}
