// costs.go serves the cost dashboard.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
	"github.com/Shimizu-Technology/tubeboard-api/internal/pricing"
)

// GetCosts returns the ledger with totals and per-project spend.
// GET /api/v1/costs
func (h *Handler) GetCosts(c *gin.Context) {
	entries := h.Store.CostHistory()
	byProject := h.Store.CostByProject()
	total := h.Store.TotalCost()
	rate := h.Store.Preferences().ExchangeRate

	if entries == nil {
		entries = []models.CostEntry{}
	}
	if byProject == nil {
		byProject = []models.ProjectCost{}
	}

	c.JSON(http.StatusOK, models.CostSummaryResponse{
		TotalCost:    total,
		TotalDisplay: pricing.FormatDual(total, rate),
		ExchangeRate: rate,
		RequestCount: len(entries),
		ProjectCount: len(byProject),
		ByProject:    byProject,
		Entries:      entries,
	})
}
