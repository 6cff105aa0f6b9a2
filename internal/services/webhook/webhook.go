// Package webhook forwards state store events to configured HTTP endpoints.
//
// Each payload is signed with HMAC-SHA256 when a secret is configured, so
// receivers can verify it came from this server. Failed deliveries are
// retried a few times with increasing delays and then dropped.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Shimizu-Technology/tubeboard-api/internal/state"
)

// SignatureHeader carries the hex HMAC of the request body.
const SignatureHeader = "X-TubeBoard-Signature"

// Payload is the JSON body posted to every endpoint.
type Payload struct {
	Event     state.EventType `json:"event"`
	Data      state.Event     `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Service delivers events to a fixed set of URLs.
type Service struct {
	urls        []string
	secret      string
	client      *http.Client
	retryDelays []time.Duration

	wg         sync.WaitGroup
	shutdownCh chan struct{} // Signals pending deliveries to stop
	once       sync.Once
}

// New creates a webhook service.
func New(urls []string, secret string) *Service {
	return &Service{
		urls:   urls,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		retryDelays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
		shutdownCh:  make(chan struct{}),
	}
}

// Enabled reports whether any endpoint is configured.
func (s *Service) Enabled() bool {
	return len(s.urls) > 0
}

// Run delivers every event from events until the channel closes or
// Shutdown is called.
func (s *Service) Run(events <-chan state.Event) {
	log.Printf("📡 Webhook notifier started for %d endpoint(s)", len(s.urls))
	for {
		select {
		case <-s.shutdownCh:
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			s.Notify(evt)
		}
	}
}

// Notify posts one event to every endpoint asynchronously.
func (s *Service) Notify(evt state.Event) {
	payload, err := json.Marshal(Payload{Event: evt.Type, Data: evt, Timestamp: time.Now().UTC()})
	if err != nil {
		log.Printf("⚠️  Failed to marshal webhook payload: %v", err)
		return
	}
	for _, url := range s.urls {
		s.wg.Add(1)
		go func(url string) {
			defer s.wg.Done()
			s.deliverWithRetry(url, evt.Type, payload)
		}(url)
	}
}

// Shutdown stops retries and waits for in-flight deliveries to return.
func (s *Service) Shutdown() {
	s.once.Do(func() { close(s.shutdownCh) })
	s.wg.Wait()
}

// SignPayload creates an HMAC-SHA256 signature for a payload.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// deliverWithRetry attempts delivery once per retry delay, stopping early on
// success or shutdown.
func (s *Service) deliverWithRetry(url string, event state.EventType, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var lastErr string
	for attempt, delay := range s.retryDelays {
		if attempt > 0 {
			select {
			case <-s.shutdownCh:
				log.Printf("⚠️  Webhook delivery aborted due to shutdown: %s → %s", event, url)
				return
			case <-ctx.Done():
				log.Printf("⚠️  Webhook delivery timed out: %s → %s", event, url)
				return
			case <-time.After(delay):
			}
		}

		statusCode, err := s.deliver(ctx, url, payload)
		if err == nil && statusCode >= 200 && statusCode < 300 {
			log.Printf("✅ Webhook delivered: %s → %s (attempt %d)", event, url, attempt+1)
			return
		}
		if err != nil {
			lastErr = err.Error()
		} else {
			lastErr = fmt.Sprintf("HTTP %d", statusCode)
		}
		log.Printf("⚠️  Webhook delivery failed (attempt %d/%d): %s → %s: %s",
			attempt+1, len(s.retryDelays), event, url, lastErr)
	}
	log.Printf("❌ Webhook delivery failed permanently: %s → %s: %s", event, url, lastErr)
}

func (s *Service) deliver(ctx context.Context, url string, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "TubeBoard-Webhook/1.0")
	if s.secret != "" {
		req.Header.Set(SignatureHeader, SignPayload(payload, s.secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}
