// Package render turns stored generations into view models and export files.
//
// Each generation type maps to one fixed layout (Kind). Structured content is
// decoded into typed rows; anything that does not decode degrades to a plain
// text view instead of failing the request.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
)

// Kind is a layout strategy.
type Kind string

const (
	KindText       Kind = "text"
	KindTranscript Kind = "transcript"
	KindScenes     Kind = "scenes"
	KindQuiz       Kind = "quiz"
	KindFlashcards Kind = "flashcards"
)

// InvalidDataMessage is shown in place of content that does not match its
// layout.
const InvalidDataMessage = "Invalid data format"

// KindFor selects the layout for a generation type.
func KindFor(t models.GenerationType) Kind {
	switch t {
	case models.GenTranscriptAdvanced:
		return KindTranscript
	case models.GenSceneDescription:
		return KindScenes
	case models.GenQuiz:
		return KindQuiz
	case models.GenFlashcards:
		return KindFlashcards
	default:
		return KindText
	}
}

// The row types below mirror the response schemas, so their JSON tags follow
// the provider's camelCase field names.

// Segment is one time-coded transcript line.
type Segment struct {
	StartTime             string `json:"startTime"`
	EndTime               string `json:"endTime"`
	Transcript            string `json:"transcript"`
	TranscriptionLanguage string `json:"transcriptionLanguage,omitempty"`
	EnglishEquivalent     string `json:"englishEquivalent,omitempty"`
	Type                  string `json:"type,omitempty"`
	SpeakerGender         string `json:"speakerGender,omitempty"`
	SpeakerInfo           string `json:"speakerInfo,omitempty"`
	SeekSeconds           int    `json:"seekSeconds"`
}

// Scene is one time-coded visual description.
type Scene struct {
	StartTime       string   `json:"startTime"`
	EndTime         string   `json:"endTime"`
	DescriptionText string   `json:"descriptionText"`
	KeyObjects      []string `json:"keyObjects,omitempty"`
	Mood            string   `json:"mood,omitempty"`
	SeekSeconds     int      `json:"seekSeconds"`
}

// Question is one quiz item.
type Question struct {
	ID            int      `json:"id"`
	QuestionType  string   `json:"questionType,omitempty"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// FreeText reports whether the question is answered by typing rather than
// picking an option.
func (q Question) FreeText() bool {
	return q.QuestionType == "short_answer" || q.QuestionType == "long_answer"
}

// Flashcard is one study card.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
	Tag   string `json:"tag,omitempty"`
}

// View is the rendered form of one generation. Exactly one of the content
// fields is populated, matching Kind.
type View struct {
	GenerationID string                `json:"generation_id"`
	Type         models.GenerationType `json:"type"`
	Kind         Kind                  `json:"kind"`
	Text         string                `json:"text,omitempty"`
	Segments     []Segment             `json:"segments,omitempty"`
	Scenes       []Scene               `json:"scenes,omitempty"`
	Questions    []Question            `json:"questions,omitempty"`
	Flashcards   []Flashcard           `json:"flashcards,omitempty"`
	// Error is set when the content could not be shown in its layout.
	Error string `json:"error,omitempty"`
}

// Build renders a generation. It never fails: unusable content produces a
// text view with Error set.
func Build(gen models.Generation) (v View) {
	v = View{GenerationID: gen.ID, Type: gen.Type, Kind: KindFor(gen.Type)}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Render of generation %s panicked: %v", gen.ID, r)
			v = View{GenerationID: gen.ID, Type: gen.Type, Kind: KindText, Text: contentText(gen.Content), Error: InvalidDataMessage}
		}
	}()

	// A JSON string is either plain-text output or the raw-text fallback of
	// a structured request whose output did not parse.
	if text, ok := asString(gen.Content); ok {
		v.Kind = KindText
		v.Text = text
		return v
	}
	if v.Kind == KindText {
		v.Text = contentText(gen.Content)
		return v
	}

	var ok bool
	switch v.Kind {
	case KindTranscript:
		v.Segments, ok = decodeList[Segment](gen.Content, "segments")
		for i := range v.Segments {
			v.Segments[i].SeekSeconds = ParseTimestamp(v.Segments[i].StartTime)
		}
	case KindScenes:
		v.Scenes, ok = decodeList[Scene](gen.Content, "scenes")
		for i := range v.Scenes {
			v.Scenes[i].SeekSeconds = ParseTimestamp(v.Scenes[i].StartTime)
		}
	case KindQuiz:
		v.Questions, ok = decodeList[Question](gen.Content, "questions")
		numberQuestions(v.Questions)
	case KindFlashcards:
		v.Flashcards, ok = decodeList[Flashcard](gen.Content, "flashcards")
	}
	if !ok {
		return View{GenerationID: gen.ID, Type: gen.Type, Kind: KindText, Text: contentText(gen.Content), Error: InvalidDataMessage}
	}
	return v
}

// decodeList extracts content[key] as a list of T. It reports false when the
// key is missing or not an array.
func decodeList[T any](content json.RawMessage, key string) ([]T, bool) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, false
	}
	raw, ok := doc[key]
	if !ok {
		return nil, false
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, false
	}
	if items == nil {
		items = []T{}
	}
	return items, true
}

// Questions decodes the quiz items of a generation.
func Questions(gen models.Generation) ([]Question, error) {
	if KindFor(gen.Type) != KindQuiz {
		return nil, fmt.Errorf("generation %s is %s, not a quiz", gen.ID, gen.Type)
	}
	qs, ok := decodeList[Question](gen.Content, "questions")
	if !ok {
		return nil, fmt.Errorf("generation %s: %s", gen.ID, strings.ToLower(InvalidDataMessage))
	}
	numberQuestions(qs)
	return qs, nil
}

// numberQuestions gives every question its 1-based position as ID unless
// the stored ids are already positive and unique. Answers are keyed by ID.
func numberQuestions(qs []Question) {
	seen := make(map[int]bool, len(qs))
	for _, q := range qs {
		if q.ID <= 0 || seen[q.ID] {
			for i := range qs {
				qs[i].ID = i + 1
			}
			return
		}
		seen[q.ID] = true
	}
}

func asString(content json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", false
	}
	return s, true
}

// contentText is the best plain-text rendering of arbitrary content.
func contentText(content json.RawMessage) string {
	if s, ok := asString(content); ok {
		return s
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, content, "", "  "); err != nil {
		return string(content)
	}
	return buf.String()
}

// ParseTimestamp converts "mm:ss" or "hh:mm:ss" to whole seconds.
// Anything else yields 0.
func ParseTimestamp(ts string) int {
	return int(parseSeconds(ts))
}

func parseSeconds(ts string) float64 {
	parts := strings.Split(strings.TrimSpace(ts), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0
	}
	var total float64
	for _, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		total = total*60 + n
	}
	return total
}
