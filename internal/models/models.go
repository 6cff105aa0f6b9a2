// Package models defines the data structures used throughout the application.
//
// Go Pattern: Models are plain structs with JSON tags for serialization.
// The same structs are persisted as JSON documents by the state store and
// returned by the HTTP handlers, so the JSON tags double as the storage layout.
package models

import (
	"encoding/json"
	"time"
)

// GenerationType identifies which kind of AI request produced a Generation.
// Go Pattern: We use string constants instead of enums (Go doesn't have enums).
type GenerationType string

const (
	GenTranscriptSimple   GenerationType = "TRANSCRIPT_SIMPLE"
	GenTranscriptAdvanced GenerationType = "TRANSCRIPT_ADVANCED"
	GenSceneDescription   GenerationType = "SCENE_DESC"
	GenQuiz               GenerationType = "QUIZ"
	GenDescription        GenerationType = "DESC"
	GenFlashcards         GenerationType = "FLASHCARDS"
)

// GenerationTypes lists every supported generation type in display order.
var GenerationTypes = []GenerationType{
	GenDescription,
	GenTranscriptSimple,
	GenTranscriptAdvanced,
	GenSceneDescription,
	GenQuiz,
	GenFlashcards,
}

// Valid reports whether t is one of the known generation types.
func (t GenerationType) Valid() bool {
	for _, known := range GenerationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Tokens holds the usage counts reported by the model provider.
type Tokens struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
}

// Generation is one completed AI request result. It is never mutated after
// creation and only disappears when its parent project is deleted.
type Generation struct {
	ID   string         `json:"id"`
	Type GenerationType `json:"type"`
	// Content is either structured JSON (schema-constrained output) or a JSON
	// string holding raw text.
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	Model     string          `json:"model"`
	Tokens    Tokens          `json:"tokens"`
	Cost      float64         `json:"cost"`
}

// ChatRole is the author of a chat turn. The values match the roles the
// Gemini API expects, so history can be replayed without translation.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "model"
)

// ChatMessage is one immutable turn in a project's conversation.
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Project is a user's unit of work around one video.
// Generations are ordered most-recent-first; ChatHistory is chronological.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	VideoURL    string        `json:"video_url"`
	CreatedAt   time.Time     `json:"created_at"`
	Generations []Generation  `json:"generations"`
	ChatHistory []ChatMessage `json:"chat_history"`
}

// CostEntry is a denormalized audit record of one billed request.
// ProjectName is copied at write time so the entry stays meaningful after
// the project is deleted.
type CostEntry struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	ProjectName string         `json:"project_name"`
	Type        GenerationType `json:"type"`
	Model       string         `json:"model"`
	Tokens      Tokens         `json:"tokens"`
	Cost        float64        `json:"cost"`
	Timestamp   time.Time      `json:"timestamp"`
}

// SpeechSettings controls text-to-speech playback of scene descriptions.
type SpeechSettings struct {
	Voice string  `json:"voice"`
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
}

// Preferences are cross-session user settings. The API credential is kept
// in its own document and never serialized with the rest.
type Preferences struct {
	SelectedModel string         `json:"selected_model"`
	ExchangeRate  float64        `json:"exchange_rate"` // USD → INR
	Speech        SpeechSettings `json:"speech"`
}

// JobStatus represents the processing state of a queued generation.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// GenerationJob tracks one queued generation request.
type GenerationJob struct {
	ID           string         `json:"id"`
	ProjectID    string         `json:"project_id"`
	Type         GenerationType `json:"type"`
	Status       JobStatus      `json:"status"`
	GenerationID string         `json:"generation_id,omitempty"`
	Error        string         `json:"error,omitempty"`
	Detail       string         `json:"detail,omitempty"` // provider message on failure
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// --- Request/Response DTOs (Data Transfer Objects) ---
// Go Pattern: Separate structs for API input/output vs stored documents.

// CreateProjectRequest is the JSON body for POST /api/v1/projects.
type CreateProjectRequest struct {
	Name     string `json:"name"`
	VideoURL string `json:"video_url" binding:"required"`
}

// CreateGenerationRequest is the JSON body for POST /api/v1/projects/:id/generations.
type CreateGenerationRequest struct {
	Type         GenerationType `json:"type" binding:"required"`
	CustomPrompt string         `json:"custom_prompt,omitempty"`
	Model        string         `json:"model,omitempty"` // Optional: override the type's default model
}

// SetCredentialRequest is the JSON body for PUT /api/v1/settings/credential.
type SetCredentialRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// UpdateSettingsRequest is the JSON body for PATCH /api/v1/settings.
// Pointer fields distinguish "not provided" from zero values.
type UpdateSettingsRequest struct {
	SelectedModel *string         `json:"selected_model,omitempty"`
	ExchangeRate  *float64        `json:"exchange_rate,omitempty"`
	Speech        *SpeechSettings `json:"speech,omitempty"`
}

// SettingsResponse is returned by the settings endpoints.
// The credential itself is never echoed back, only a short hint.
type SettingsResponse struct {
	CredentialSet  bool        `json:"credential_set"`
	CredentialHint string      `json:"credential_hint,omitempty"`
	Preferences    Preferences `json:"preferences"`
}

// ChatRequest is the JSON body for POST /api/v1/projects/:id/chat.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// ChatHistoryResponse is returned by GET /api/v1/projects/:id/chat.
type ChatHistoryResponse struct {
	ProjectID string        `json:"project_id"`
	Messages  []ChatMessage `json:"messages"`
}

// QuizSubmissionRequest is the JSON body for scoring a quiz.
// Keys are question ids, values are the chosen option text.
type QuizSubmissionRequest struct {
	Answers map[int]string `json:"answers" binding:"required"`
}

// LoginRequest is the JSON body for POST /api/v1/auth/login.
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProjectSummary is the list view of a project.
type ProjectSummary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	VideoURL        string    `json:"video_url"`
	VideoID         string    `json:"video_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	GenerationCount int       `json:"generation_count"`
	MessageCount    int       `json:"message_count"`
	Active          bool      `json:"active"`
}

// ProjectCost aggregates ledger spend for one project name.
type ProjectCost struct {
	ProjectName string  `json:"project_name"`
	Cost        float64 `json:"cost"`
}

// CostSummaryResponse is returned by GET /api/v1/costs.
type CostSummaryResponse struct {
	TotalCost    float64       `json:"total_cost"`
	TotalDisplay string        `json:"total_display"`
	ExchangeRate float64       `json:"exchange_rate"`
	RequestCount int           `json:"request_count"`
	ProjectCount int           `json:"project_count"`
	ByProject    []ProjectCost `json:"by_project"`
	Entries      []CostEntry   `json:"entries"`
}

// ModelInfo describes one priced model for GET /api/v1/models.
type ModelInfo struct {
	ID          string  `json:"id"`
	InputPer1M  float64 `json:"input_per_1m"`
	OutputPer1M float64 `json:"output_per_1m"`
	Default     bool    `json:"default"`
}

// ErrorResponse is a standard error format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
	Workers  int    `json:"workers"`
	Queued   int    `json:"queued"`
}
