// Package generator turns a generation request into a Gemini call and
// records the result on the project.
//
// Each generation type has a fixed plan: a prompt, an optional response
// schema, and a default model. Schema-constrained types default to the pro
// model.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
	"github.com/Shimizu-Technology/tubeboard-api/internal/pricing"
	"github.com/Shimizu-Technology/tubeboard-api/internal/services/gemini"
	"github.com/Shimizu-Technology/tubeboard-api/internal/state"
)

// FailureMessage is the user-facing text for any failed generation.
const FailureMessage = "Failed to generate content. Please check your API key and try again."

// ErrUnknownType is returned for a generation type without a plan.
var ErrUnknownType = errors.New("unknown generation type")

// Plan is everything needed to issue one generation.
type Plan struct {
	Prompt string
	Schema *genai.Schema
	Model  string
}

type template struct {
	prompt string
	schema *genai.Schema
	// structured types pin the larger model; plain text follows the
	// user's selected model.
	structured bool
}

var templates = map[models.GenerationType]template{
	models.GenDescription: {
		prompt: "Provide a detailed description and summary of this video.",
	},
	models.GenTranscriptSimple: {
		prompt: "Transcribe this video. Provide the full text.",
	},
	models.GenTranscriptAdvanced: {
		prompt:     "Transcribe this video with timestamps, speaker identification, and detailed metadata for each segment.",
		schema:     gemini.TranscriptionAdvanced,
		structured: true,
	},
	models.GenSceneDescription: {
		prompt:     "Analyze the video and provide detailed scene descriptions with timestamps, key objects, and mood.",
		schema:     gemini.SceneDescription,
		structured: true,
	},
	models.GenQuiz: {
		prompt:     "Create a comprehensive quiz based on the video content. Include multiple choice, short answer, and true/false questions.",
		schema:     gemini.Quiz,
		structured: true,
	},
	models.GenFlashcards: {
		prompt:     "Create study flashcards covering the key concepts, terms, and facts presented in this video.",
		schema:     gemini.Flashcards,
		structured: true,
	},
}

// PlanFor resolves the prompt, schema, and model for a request.
// Model precedence: explicit override, then the pro model for structured
// types, then selectedModel, then the default model.
func PlanFor(t models.GenerationType, customPrompt, override, selectedModel string) (Plan, error) {
	tmpl, ok := templates[t]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	prompt := tmpl.prompt
	if custom := strings.TrimSpace(customPrompt); custom != "" {
		prompt += "\n\nAdditional instructions: " + custom
	}

	model := strings.TrimSpace(override)
	switch {
	case model != "":
	case tmpl.structured:
		model = pricing.ModelPro
	case selectedModel != "":
		model = selectedModel
	default:
		model = pricing.DefaultModel
	}

	return Plan{Prompt: prompt, Schema: tmpl.schema, Model: model}, nil
}

// Client is the part of the Gemini client the generator needs.
type Client interface {
	GenerateOnce(ctx context.Context, req gemini.Request) (*gemini.Result, error)
}

// Service runs generations against projects in the state store.
type Service struct {
	client Client
	store  *state.Store
}

// New creates a generator service.
func New(client Client, store *state.Store) *Service {
	return &Service{client: client, store: store}
}

// Run issues one generation for a project and stores the result.
//
// A structured response that is not valid JSON is stored as raw text
// rather than failing the request.
func (s *Service) Run(ctx context.Context, projectID string, req models.CreateGenerationRequest) (models.Generation, error) {
	project, ok := s.store.Project(projectID)
	if !ok {
		return models.Generation{}, state.ErrNotFound
	}

	plan, err := PlanFor(req.Type, req.CustomPrompt, req.Model, s.store.Preferences().SelectedModel)
	if err != nil {
		return models.Generation{}, err
	}

	log.Printf("🎬 Generating %s for project %s with %s", req.Type, project.ID, plan.Model)

	res, err := s.client.GenerateOnce(ctx, gemini.Request{
		Model:    plan.Model,
		Prompt:   plan.Prompt,
		VideoURL: project.VideoURL,
		Schema:   plan.Schema,
	})
	if err != nil {
		return models.Generation{}, fmt.Errorf("generation failed: %w", err)
	}

	content, err := contentFor(plan, res.Text)
	if err != nil {
		return models.Generation{}, err
	}

	gen, err := s.store.AddGeneration(ctx, project.ID, state.NewGeneration{
		Type:    req.Type,
		Content: content,
		Model:   plan.Model,
		Tokens:  res.Tokens,
	})
	if err != nil {
		return models.Generation{}, fmt.Errorf("failed to record generation: %w", err)
	}

	log.Printf("✅ Generation %s stored (%s tokens in, %s out, %s)",
		gen.ID, pricing.FormatTokens(gen.Tokens.Input), pricing.FormatTokens(gen.Tokens.Output), pricing.FormatUSD(gen.Cost))
	return gen, nil
}

// contentFor encodes model output for storage: decoded JSON for structured
// plans, otherwise a JSON string.
func contentFor(plan Plan, text string) (json.RawMessage, error) {
	if plan.Schema != nil {
		decoded, err := gemini.DecodeStructured(text)
		if err == nil {
			return decoded, nil
		}
		var parseErr *gemini.SchemaParseError
		if !errors.As(err, &parseErr) {
			return nil, err
		}
		log.Printf("⚠️  Structured output did not parse, storing raw text: %v", err)
	}

	raw, err := json.Marshal(text)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content: %w", err)
	}
	return raw, nil
}
