// generations.go queues AI generations and serves their results.
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
	"github.com/Shimizu-Technology/tubeboard-api/internal/pricing"
	"github.com/Shimizu-Technology/tubeboard-api/internal/quiz"
	"github.com/Shimizu-Technology/tubeboard-api/internal/render"
	"github.com/Shimizu-Technology/tubeboard-api/internal/services/worker"
)

// generationResponse pairs a stored generation with its rendered view.
type generationResponse struct {
	Generation models.Generation `json:"generation"`
	View       render.View       `json:"view"`
}

// CreateGeneration queues a generation for a project.
// POST /api/v1/projects/:id/generations
//
// Request body:
//
//	{"type": "QUIZ", "custom_prompt": "Focus on chapter 2", "model": "gemini-3.1-pro-preview"}
//
// Response: 202 with the pending job. Poll GET /api/v1/jobs/:id until it
// reaches "completed" or "failed".
func (h *Handler) CreateGeneration(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}

	var req models.CreateGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "type is required")
		return
	}
	if !req.Type.Valid() {
		respondError(c, http.StatusBadRequest, "invalid_type", "Unknown generation type: "+string(req.Type))
		return
	}
	if req.Model != "" && !pricing.Known(req.Model) {
		respondError(c, http.StatusBadRequest, "invalid_model", "Unknown model: "+req.Model)
		return
	}
	if h.Store.Credential() == "" {
		respondError(c, http.StatusPreconditionFailed, "missing_credential", "Set an API key before generating content")
		return
	}

	// Go Pattern: We respond immediately with the pending job and process
	// in the background. The worker records the generation when it finishes.
	job, err := h.Worker.Submit(project.ID, req)
	if errors.Is(err, worker.ErrQueueFull) {
		c.Header("Retry-After", "30")
		respondError(c, http.StatusServiceUnavailable, "queue_full", err.Error())
		return
	}
	if errors.Is(err, worker.ErrStopped) {
		respondError(c, http.StatusServiceUnavailable, "shutting_down", err.Error())
		return
	}
	if err != nil {
		log.Printf("⚠️  Failed to queue generation: %v", err)
		respondError(c, http.StatusInternalServerError, "queue_error", "Failed to queue generation")
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// GetJob returns the status of a queued generation.
// GET /api/v1/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	job, ok := h.Worker.Job(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, "not_found", "Job not found")
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetGeneration returns one generation and its rendered view.
// GET /api/v1/projects/:id/generations/:gid
func (h *Handler) GetGeneration(c *gin.Context) {
	gen, ok := h.loadGeneration(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, generationResponse{Generation: gen, View: render.Build(gen)})
}

// SubmitQuiz scores a finished quiz attempt.
// POST /api/v1/projects/:id/generations/:gid/quiz
//
// Request body:
//
//	{"answers": {"1": "Paris", "2": "True"}}
//
// Every multiple-choice and true/false question must be answered; short
// answer questions are optional.
func (h *Handler) SubmitQuiz(c *gin.Context) {
	gen, ok := h.loadGeneration(c)
	if !ok {
		return
	}

	questions, err := render.Questions(gen)
	if err != nil {
		respondError(c, http.StatusBadRequest, "not_a_quiz", err.Error())
		return
	}

	var req models.QuizSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "answers must map question ids to answers")
		return
	}

	attempt := quiz.NewAttempt(questions)
	for id, answer := range req.Answers {
		if err := attempt.Answer(id, answer); err != nil {
			respondError(c, http.StatusBadRequest, "invalid_answer", err.Error())
			return
		}
	}
	if !attempt.Ready() {
		respondError(c, http.StatusUnprocessableEntity, "incomplete_quiz", "Answer every multiple-choice question before submitting")
		return
	}

	c.JSON(http.StatusOK, attempt.Submit())
}

// loadGeneration resolves :id and :gid or writes a 404.
func (h *Handler) loadGeneration(c *gin.Context) (models.Generation, bool) {
	if _, ok := h.loadProject(c); !ok {
		return models.Generation{}, false
	}
	gen, ok := h.Store.Generation(c.Param("id"), c.Param("gid"))
	if !ok {
		respondError(c, http.StatusNotFound, "not_found", "Generation not found")
		return models.Generation{}, false
	}
	return gen, true
}
