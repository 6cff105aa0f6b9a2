// export.go serves file downloads of generations and the cost ledger.
//
// Supported formats:
//   - json: the rendered rows (or {content} for plain text)
//   - csv, xlsx: one row per segment, scene, question, or flashcard
//   - md: Markdown with a metadata header
//   - txt: plain text
//   - srt: SubRip subtitles (time-coded transcripts only)
//
// The cost ledger exports as json, csv, or xlsx with USD and INR columns.
package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/tubeboard-api/internal/render"
)

// ExportGeneration exports a generation in the requested format.
// GET /api/v1/projects/:id/generations/:gid/export?format=json|csv|xlsx|md|txt|srt
//
// Response headers are set for file download:
//   - Content-Type: appropriate MIME type
//   - Content-Disposition: attachment with filename
func (h *Handler) ExportGeneration(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}
	gen, ok := h.loadGeneration(c)
	if !ok {
		return
	}

	file, err := render.Export(project.Name, gen, c.DefaultQuery("format", render.FormatJSON))
	if err != nil {
		h.exportError(c, err)
		return
	}
	sendFile(c, file)
}

// ExportCosts exports the cost ledger.
// GET /api/v1/costs/export?format=json|csv|xlsx
func (h *Handler) ExportCosts(c *gin.Context) {
	file, err := render.ExportCosts(h.Store.CostHistory(), h.Store.Preferences().ExchangeRate, c.DefaultQuery("format", render.FormatCSV))
	if err != nil {
		h.exportError(c, err)
		return
	}
	sendFile(c, file)
}

func (h *Handler) exportError(c *gin.Context, err error) {
	if errors.Is(err, render.ErrUnsupportedFormat) {
		respondError(c, http.StatusBadRequest, "invalid_format", err.Error())
		return
	}
	log.Printf("❌ Export failed: %v", err)
	respondError(c, http.StatusInternalServerError, "export_error", "Failed to build export")
}

func sendFile(c *gin.Context, file *render.File) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
