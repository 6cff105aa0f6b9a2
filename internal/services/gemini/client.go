// Package gemini wraps the Google GenAI SDK for the two calls TubeBoard makes.
//
// Two request shapes are supported: a one-shot GenerateContent call that
// optionally constrains the output to a JSON schema, and a streamed chat that
// replays the conversation history on every turn. The video itself is passed
// by URL as file data; nothing is uploaded.
package gemini

import (
	"context"
	"errors"
	"iter"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
)

const (
	// DefaultBaseURL is the public Generative Language endpoint. The API
	// version is appended by the SDK.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/"
	apiVersion     = "v1beta"

	defaultTimeout = 5 * time.Minute
	videoMimeType  = "video/mp4"
	temperature    = 0.7

	chatPrimer = "Analyze this video for our conversation."
	chatAck    = "Understood. I have analyzed the video. What would you like to know?"
)

// Config holds the static client settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	cfg        Config
	keyFunc    func() string
	httpClient *http.Client

	mu     sync.Mutex
	sdk    *genai.Client
	sdkKey string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithKeyFunc resolves the API key on every request, so a credential
// changed at runtime takes effect without rebuilding the client.
func WithKeyFunc(fn func() string) Option {
	return func(c *Client) {
		c.keyFunc = fn
	}
}

// NewClient creates a client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	// Older configs carried the version in the URL; the SDK adds it itself.
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/"+apiVersion)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	// Timeouts are applied per request: one-shot calls get cfg.Timeout,
	// streams are bounded by the caller's context.
	c := &Client{cfg: cfg, httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request is a one-shot generation against a video.
type Request struct {
	Model             string
	Prompt            string
	VideoURL          string
	Schema            *genai.Schema // nil for free text
	SystemInstruction string
}

// Result is the model's text plus token usage.
type Result struct {
	Text   string
	Model  string
	Tokens models.Tokens
}

// ChatRequest is one conversational turn. History must not include Message.
type ChatRequest struct {
	Model    string
	History  []models.ChatMessage
	Message  string
	VideoURL string
}

// StreamEvent is either a text fragment or the terminal event.
// Exactly one event with Done or Err set is sent before the channel closes.
type StreamEvent struct {
	Text string
	Done bool
	Err  error
}

// service returns the SDK's model service for the current key. The SDK
// client is rebuilt only when the key changes.
func (c *Client) service(ctx context.Context) (*genai.Models, error) {
	key := c.apiKey()
	if key == "" {
		return nil, ErrMissingCredential
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sdk == nil || c.sdkKey != key {
		sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     key,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: c.httpClient,
			HTTPOptions: genai.HTTPOptions{
				BaseURL:    c.cfg.BaseURL,
				APIVersion: apiVersion,
			},
		})
		if err != nil {
			return nil, &APIError{Message: "failed to create client", Err: err}
		}
		c.sdk, c.sdkKey = sdk, key
	}
	return c.sdk.Models, nil
}

func videoPart(videoURL string) *genai.Part {
	return genai.NewPartFromURI(videoURL, videoMimeType)
}

func tokensOf(resp *genai.GenerateContentResponse) models.Tokens {
	if resp == nil || resp.UsageMetadata == nil {
		return models.Tokens{}
	}
	return models.Tokens{
		Input:  int64(resp.UsageMetadata.PromptTokenCount),
		Output: int64(resp.UsageMetadata.CandidatesTokenCount),
	}
}

// GenerateOnce issues a single GenerateContent call.
func (c *Client) GenerateOnce(ctx context.Context, req Request) (*Result, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		return nil, errors.New("gemini: model required")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{videoPart(req.VideoURL), genai.NewPartFromText(req.Prompt)}, genai.RoleUser),
	}

	timeout := c.cfg.Timeout
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](temperature),
		HTTPOptions: &genai.HTTPOptions{Timeout: &timeout},
	}
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = req.Schema
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	log.Printf("🤖 Generating with %s (structured=%t)", req.Model, req.Schema != nil)

	resp, err := svc.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, wrapError(err)
	}

	return &Result{
		Text:   resp.Text(),
		Model:  req.Model,
		Tokens: tokensOf(resp),
	}, nil
}

// StreamChat starts a streamed chat turn. The returned channel yields text
// fragments in order, then one terminal event, then closes. Cancelling ctx
// aborts the stream and the terminal event carries ctx's error.
//
// A request the provider rejects outright is reported by StreamChat itself,
// before any event is sent.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		return nil, errors.New("gemini: model required")
	}

	contents := make([]*genai.Content, 0, len(req.History)+3)
	contents = append(contents,
		genai.NewContentFromParts([]*genai.Part{videoPart(req.VideoURL), genai.NewPartFromText(chatPrimer)}, genai.RoleUser),
		genai.NewContentFromText(chatAck, genai.RoleModel),
	)
	for _, m := range req.History {
		contents = append(contents, genai.NewContentFromText(m.Text, genai.Role(m.Role)))
	}
	contents = append(contents, genai.NewContentFromText(req.Message, genai.RoleUser))

	next, stop := iter.Pull2(svc.GenerateContentStream(ctx, req.Model, contents, nil))
	first, firstErr, ok := next()
	if ok && firstErr != nil {
		stop()
		return nil, wrapError(firstErr)
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer stop()

		send := func(evt StreamEvent) bool {
			select {
			case events <- evt:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var streamErr error
		for chunk := first; ok; chunk, streamErr, ok = next() {
			if streamErr != nil {
				break
			}
			if chunk == nil {
				continue
			}
			if text := chunk.Text(); text != "" {
				if !send(StreamEvent{Text: text}) {
					break
				}
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			// Best effort: the consumer may already be gone.
			select {
			case events <- StreamEvent{Err: ctxErr}:
			default:
			}
			return
		}
		if streamErr != nil {
			send(StreamEvent{Err: wrapError(streamErr)})
			return
		}
		send(StreamEvent{Done: true})
	}()

	return events, nil
}

// wrapError converts SDK and transport failures into *APIError.
func wrapError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}

	var sdkErr genai.APIError
	if errors.As(err, &sdkErr) {
		msg := strings.TrimSpace(sdkErr.Message)
		if msg == "" {
			msg = http.StatusText(sdkErr.Code)
		}
		return &APIError{StatusCode: sdkErr.Code, Status: sdkErr.Status, Message: msg, Err: err}
	}
	return &APIError{Message: err.Error(), Err: err}
}

func (c *Client) apiKey() string {
	if c.keyFunc != nil {
		if key := strings.TrimSpace(c.keyFunc()); key != "" {
			return key
		}
	}
	return c.cfg.APIKey
}
