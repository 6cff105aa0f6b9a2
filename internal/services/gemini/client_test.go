package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
)

// wireRequest is the part of the generateContent body the tests inspect.
type wireRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text     string `json:"text"`
			FileData *struct {
				FileURI  string `json:"fileUri"`
				MimeType string `json:"mimeType"`
			} `json:"fileData"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig *struct {
		Temperature      float64 `json:"temperature"`
		ResponseMimeType string  `json:"responseMimeType"`
		ResponseSchema   *struct {
			Properties map[string]struct {
				Items struct {
					Required []string `json:"required"`
				} `json:"items"`
			} `json:"properties"`
		} `json:"responseSchema"`
	} `json:"generationConfig"`
}

func TestGenerateOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-3.1-pro-preview:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}

		var body wireRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if len(body.Contents) != 1 || len(body.Contents[0].Parts) != 2 {
			t.Errorf("unexpected contents: %+v", body.Contents)
			return
		}
		fd := body.Contents[0].Parts[0].FileData
		if fd == nil || fd.FileURI != "https://youtu.be/abc" || fd.MimeType != "video/mp4" {
			t.Errorf("fileData = %+v", fd)
		}
		gc := body.GenerationConfig
		if gc == nil || gc.ResponseMimeType != "application/json" {
			t.Errorf("generationConfig = %+v", gc)
			return
		}
		if gc.Temperature < 0.69 || gc.Temperature > 0.71 {
			t.Errorf("temperature = %v", gc.Temperature)
		}
		if gc.ResponseSchema == nil {
			t.Error("quiz schema not sent")
			return
		}
		questions, ok := gc.ResponseSchema.Properties["questions"]
		if !ok || !slices.Contains(questions.Items.Required, "id") {
			t.Errorf("quiz schema questions = %+v, want id required", questions)
		}

		payload := map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"role": "model", "parts": []any{
					map[string]any{"text": `{"questions":`},
					map[string]any{"text": `[]}`},
				}}},
			},
			"usageMetadata": map[string]any{"promptTokenCount": 1200, "candidatesTokenCount": 340},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	res, err := client.GenerateOnce(context.Background(), Request{
		Model:    "gemini-3.1-pro-preview",
		Prompt:   "Create a quiz.",
		VideoURL: "https://youtu.be/abc",
		Schema:   Quiz,
	})
	if err != nil {
		t.Fatalf("GenerateOnce: %v", err)
	}
	if res.Text != `{"questions":[]}` {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Tokens != (models.Tokens{Input: 1200, Output: 340}) {
		t.Errorf("Tokens = %+v", res.Tokens)
	}
}

func TestNewClientBaseURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"default", "", DefaultBaseURL},
		{"trailing slash", "http://localhost:9000/", "http://localhost:9000"},
		{"versioned", "https://generativelanguage.googleapis.com/v1beta", "https://generativelanguage.googleapis.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(Config{BaseURL: tt.in})
			if c.cfg.BaseURL != tt.want {
				t.Errorf("BaseURL = %q, want %q", c.cfg.BaseURL, tt.want)
			}
		})
	}
}

func TestGenerateOnceMissingUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"hello"}]}}]}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	res, err := client.GenerateOnce(context.Background(), Request{Model: "m", Prompt: "p", VideoURL: "v"})
	if err != nil {
		t.Fatalf("GenerateOnce: %v", err)
	}
	if res.Tokens.Input != 0 || res.Tokens.Output != 0 {
		t.Errorf("Tokens = %+v, want zeros", res.Tokens)
	}
}

func TestGenerateOnceAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL})
	_, err := client.GenerateOnce(context.Background(), Request{Model: "m", Prompt: "p", VideoURL: "v"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 400 || apiErr.Status != "INVALID_ARGUMENT" || apiErr.Message != "API key not valid." {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestGenerateOnceMissingCredential(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0"}, WithKeyFunc(func() string { return "" }))
	_, err := client.GenerateOnce(context.Background(), Request{Model: "m"})
	if !errors.Is(err, ErrMissingCredential) {
		t.Errorf("error = %v, want ErrMissingCredential", err)
	}
}

func TestKeyFuncOverridesConfig(t *testing.T) {
	var seen string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("x-goog-api-key")
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "static", BaseURL: server.URL}, WithKeyFunc(func() string { return "dynamic" }))
	if _, err := client.GenerateOnce(context.Background(), Request{Model: "m"}); err != nil {
		t.Fatalf("GenerateOnce: %v", err)
	}
	if seen != "dynamic" {
		t.Errorf("api key = %q, want dynamic", seen)
	}
}

func sseChunk(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}}}},
	})
	return "data: " + string(b) + "\r\n\r\n"
}

func TestStreamChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/flash:streamGenerateContent" || r.URL.Query().Get("alt") != "sse" {
			t.Errorf("unexpected url %s", r.URL)
		}

		var body wireRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		// primer, ack, two history turns, new message
		if len(body.Contents) != 5 {
			t.Errorf("len(contents) = %d, want 5", len(body.Contents))
			return
		}
		if body.Contents[0].Parts[1].Text != chatPrimer || body.Contents[1].Role != "model" {
			t.Errorf("missing video context turns: %+v", body.Contents[:2])
		}
		if last := body.Contents[4]; last.Role != "user" || last.Parts[0].Text != "And then?" {
			t.Errorf("last turn = %+v", last)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, frag := range []string{"The video ", "shows ", "a cat."} {
			fmt.Fprint(w, sseChunk(frag))
			w.(http.Flusher).Flush()
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	events, err := client.StreamChat(context.Background(), ChatRequest{
		Model: "flash",
		History: []models.ChatMessage{
			{Role: models.RoleUser, Text: "What is it?"},
			{Role: models.RoleAssistant, Text: "A pet video."},
		},
		Message:  "And then?",
		VideoURL: "https://youtu.be/abc",
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	var sb strings.Builder
	var terminal []StreamEvent
	for evt := range events {
		if evt.Done || evt.Err != nil {
			terminal = append(terminal, evt)
			continue
		}
		sb.WriteString(evt.Text)
	}
	if sb.String() != "The video shows a cat." {
		t.Errorf("text = %q", sb.String())
	}
	if len(terminal) != 1 || !terminal[0].Done {
		t.Errorf("terminal events = %+v, want one Done", terminal)
	}
}

func TestStreamChatErrorChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseChunk("partial "))
		fmt.Fprint(w, "{\"error\":{\"code\":500,\"message\":\"internal\",\"status\":\"INTERNAL\"}}\n\n")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	events, err := client.StreamChat(context.Background(), ChatRequest{Model: "m", Message: "hi", VideoURL: "v"})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	var last StreamEvent
	for evt := range events {
		last = evt
	}
	var apiErr *APIError
	if !errors.As(last.Err, &apiErr) || apiErr.StatusCode != 500 {
		t.Errorf("terminal event = %+v, want APIError 500", last)
	}
}

func TestStreamChatHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	_, err := client.StreamChat(context.Background(), ChatRequest{Model: "m", Message: "hi"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("error = %v, want APIError 429", err)
	}
}

func TestStreamChatCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseChunk("first"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	events, err := client.StreamChat(ctx, ChatRequest{Model: "m", Message: "hi"})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	if evt := <-events; evt.Text != "first" {
		t.Fatalf("first event = %+v", evt)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		for range events {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close after cancel")
	}
}

func TestDecodeStructured(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain object", `{"scenes": []}`, `{"scenes":[]}`, false},
		{"code fence", "```json\n{\"a\": 1}\n```", `{"a":1}`, false},
		{"surrounding prose", "Here you go: {\"a\": 1} enjoy", `{"a":1}`, false},
		{"empty", "   ", "", true},
		{"not json", "I could not watch the video.", "", true},
		{"bare string", `"just text"`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeStructured(tt.input)
			if tt.wantErr {
				var perr *SchemaParseError
				if !errors.As(err, &perr) {
					t.Fatalf("error = %v, want *SchemaParseError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeStructured: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
