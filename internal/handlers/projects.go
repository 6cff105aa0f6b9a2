// projects.go handles project CRUD and the active selection.
package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
	"github.com/Shimizu-Technology/tubeboard-api/internal/services/youtube"
	"github.com/Shimizu-Technology/tubeboard-api/internal/state"
)

// projectDetail is a full project plus its player URLs.
type projectDetail struct {
	models.Project
	Video  *youtube.Video `json:"video,omitempty"`
	Active bool           `json:"active"`
}

// ListProjects returns every project, most recently created first.
// GET /api/v1/projects
func (h *Handler) ListProjects(c *gin.Context) {
	activeID := h.Store.ActiveProjectID()
	projects := h.Store.Projects()

	// Go Pattern: Initialize with make() so an empty list encodes as [] not null.
	summaries := make([]models.ProjectSummary, 0, len(projects))
	for _, p := range projects {
		s := models.ProjectSummary{
			ID:              p.ID,
			Name:            p.Name,
			VideoURL:        p.VideoURL,
			CreatedAt:       p.CreatedAt,
			GenerationCount: len(p.Generations),
			MessageCount:    len(p.ChatHistory),
			Active:          p.ID == activeID,
		}
		if v, err := youtube.Parse(p.VideoURL); err == nil {
			s.VideoID = v.ID
		}
		summaries = append(summaries, s)
	}

	c.JSON(http.StatusOK, gin.H{"projects": summaries, "active_project_id": activeID})
}

// CreateProject creates a project for a YouTube video and selects it.
// POST /api/v1/projects
//
// Request body:
//
//	{"name": "Lecture 3", "video_url": "https://youtu.be/dQw4w9WgXcQ"}
//
// When name is empty and yt-dlp is available, the video title is used.
func (h *Handler) CreateProject(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "video_url is required")
		return
	}

	video, err := youtube.Parse(req.VideoURL)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_url", err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" && h.Metadata != nil {
		if meta, err := h.Metadata.Lookup(c.Request.Context(), video.WatchURL); err != nil {
			log.Printf("⚠️  Title lookup failed for %s: %v", video.ID, err)
		} else {
			name = meta.Title
		}
	}
	if name == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	project, err := h.Store.CreateProject(c.Request.Context(), name, video.WatchURL)
	if err != nil {
		h.storeError(c, err)
		return
	}
	log.Printf("📁 Project created: %s (%s)", project.ID, video.ID)

	c.JSON(http.StatusCreated, detailFor(project, true))
}

// GetProject returns a project with its generations and chat history.
// GET /api/v1/projects/:id
func (h *Handler) GetProject(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, detailFor(project, project.ID == h.Store.ActiveProjectID()))
}

// DeleteProject removes a project. The cost ledger keeps its entries.
// DELETE /api/v1/projects/:id
func (h *Handler) DeleteProject(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.Store.Project(id); !ok {
		respondError(c, http.StatusNotFound, "not_found", "Project not found")
		return
	}
	if err := h.Store.DeleteProject(c.Request.Context(), id); err != nil {
		h.storeError(c, err)
		return
	}
	log.Printf("🗑️  Project deleted: %s", id)
	c.Status(http.StatusNoContent)
}

// SelectProject makes a project the active one.
// POST /api/v1/projects/:id/select
func (h *Handler) SelectProject(c *gin.Context) {
	if err := h.Store.SelectProject(c.Param("id")); err != nil {
		h.storeError(c, err)
		return
	}
	project, _ := h.Store.ActiveProject()
	c.JSON(http.StatusOK, detailFor(project, true))
}

// GetActiveProject returns the selected project.
// GET /api/v1/projects/active
func (h *Handler) GetActiveProject(c *gin.Context) {
	project, ok := h.Store.ActiveProject()
	if !ok {
		respondError(c, http.StatusNotFound, "no_active_project", "No project is selected")
		return
	}
	c.JSON(http.StatusOK, detailFor(project, true))
}

// ClearActiveProject unsets the selection.
// DELETE /api/v1/projects/active
func (h *Handler) ClearActiveProject(c *gin.Context) {
	h.Store.ClearSelection()
	c.Status(http.StatusNoContent)
}

// loadProject resolves :id or writes a 404.
func (h *Handler) loadProject(c *gin.Context) (models.Project, bool) {
	project, ok := h.Store.Project(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, "not_found", "Project not found")
		return models.Project{}, false
	}
	return project, true
}

// storeError maps state errors to HTTP responses.
func (h *Handler) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, state.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", "Project not found")
	case errors.Is(err, state.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		log.Printf("❌ Storage error: %v", err)
		respondError(c, http.StatusInternalServerError, "storage_error", "Failed to save changes")
	}
}

func detailFor(p models.Project, active bool) projectDetail {
	d := projectDetail{Project: p, Active: active}
	if v, err := youtube.Parse(p.VideoURL); err == nil {
		d.Video = &v
	}
	return d
}
