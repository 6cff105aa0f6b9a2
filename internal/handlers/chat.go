// chat.go handles the per-project chat about the video.
package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
	"github.com/Shimizu-Technology/tubeboard-api/internal/pricing"
	"github.com/Shimizu-Technology/tubeboard-api/internal/services/gemini"
)

// Placeholder replies committed when the model returns nothing or fails.
const (
	EmptyReplyMessage = "I couldn't generate a response."
	ChatErrorMessage  = "Sorry, I encountered an error processing your request."
)

// ChatModel answers chat turns. Chat favors latency over depth.
const ChatModel = pricing.ModelFlash

// GetChat returns a project's chat history, oldest first.
// GET /api/v1/projects/:id/chat
func (h *Handler) GetChat(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.ChatHistoryResponse{
		ProjectID: project.ID,
		Messages:  project.ChatHistory,
	})
}

// PostChat sends a message and streams the reply as Server-Sent Events.
// POST /api/v1/projects/:id/chat
//
// Request body:
//
//	{"message": "What happens at the two minute mark?"}
//
// Events:
//
//	event: message  data: {"text": "<fragment>"}     (zero or more)
//	event: done     data: {"message": {...}}          (reply committed)
//	event: error    data: {"error": "...", "message": {...}}
//
// The user message is committed before the model is called. The reply is
// committed once the stream ends; a failed stream commits a placeholder.
func (h *Handler) PostChat(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	if h.Store.Credential() == "" {
		respondError(c, http.StatusPreconditionFailed, "missing_credential", "Set an API key before chatting")
		return
	}

	ctx := c.Request.Context()
	// The prior history goes to the model; the new message is sent separately.
	history := project.ChatHistory

	userMsg := models.ChatMessage{Role: models.RoleUser, Text: req.Message, Timestamp: time.Now().UTC()}
	if err := h.Store.AddChatMessage(ctx, project.ID, userMsg); err != nil {
		h.storeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	reply, streamErr := h.relayChat(c, gemini.ChatRequest{
		Model:    ChatModel,
		History:  history,
		Message:  req.Message,
		VideoURL: project.VideoURL,
	})

	text := reply
	switch {
	case streamErr != nil:
		log.Printf("❌ Chat stream failed for project %s: %v", project.ID, streamErr)
		text = ChatErrorMessage
	case strings.TrimSpace(reply) == "":
		text = EmptyReplyMessage
	}

	// Commit even if the client went away mid-stream.
	modelMsg := models.ChatMessage{Role: models.RoleAssistant, Text: text, Timestamp: time.Now().UTC()}
	if err := h.Store.AddChatMessage(context.WithoutCancel(ctx), project.ID, modelMsg); err != nil {
		log.Printf("❌ Failed to save chat reply for project %s: %v", project.ID, err)
	}

	if streamErr != nil {
		c.SSEvent("error", gin.H{"error": ChatErrorMessage, "detail": streamErr.Error(), "message": modelMsg})
	} else {
		c.SSEvent("done", gin.H{"message": modelMsg})
	}
	c.Writer.Flush()
}

// relayChat forwards each fragment to the client as it arrives and returns
// the concatenated reply.
func (h *Handler) relayChat(c *gin.Context, req gemini.ChatRequest) (string, error) {
	stream, err := h.Chat.StreamChat(c.Request.Context(), req)
	if err != nil {
		return "", err
	}

	var reply strings.Builder
	for evt := range stream {
		if evt.Err != nil {
			return reply.String(), evt.Err
		}
		if evt.Done {
			break
		}
		reply.WriteString(evt.Text)
		c.SSEvent("message", gin.H{"text": evt.Text})
		c.Writer.Flush()
	}
	// A closed stream without a terminal event means the request was cancelled.
	if err := c.Request.Context().Err(); err != nil {
		return reply.String(), err
	}
	return reply.String(), nil
}
