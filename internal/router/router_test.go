package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/tubeboard-api/internal/handlers"
	"github.com/Shimizu-Technology/tubeboard-api/internal/kv"
	"github.com/Shimizu-Technology/tubeboard-api/internal/middleware"
	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
	"github.com/Shimizu-Technology/tubeboard-api/internal/services/worker"
	"github.com/Shimizu-Technology/tubeboard-api/internal/state"
)

type noopRunner struct{}

func (noopRunner) Run(ctx context.Context, projectID string, req models.CreateGenerationRequest) (models.Generation, error) {
	return models.Generation{}, nil
}

func newEngine(t *testing.T, passwordHash string, perHour int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := state.Load(context.Background(), kv.NewMemory(), state.Options{DefaultExchangeRate: 80})
	if err != nil {
		t.Fatalf("state.Load: %v", err)
	}
	auth := middleware.NewAuth("test-secret", passwordHash)
	h := handlers.NewHandler(store, nil, worker.NewPool(1, 10, noopRunner{}), nil, auth, nil)
	h.AllowedOrigins = []string{"http://localhost:5173"}

	rl := middleware.NewRateLimiter(perHour)
	t.Cleanup(rl.Close)
	return Setup(h, rl, []string{"http://localhost:5173"})
}

func request(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutesWithAuth(t *testing.T) {
	hash, err := middleware.HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	r := newEngine(t, hash, 0)

	if w := request(r, http.MethodGet, "/api/v1/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("health = %d, want public 200", w.Code)
	}
	if w := request(r, http.MethodGet, "/api/docs/openapi.yaml", "", nil); w.Code != http.StatusOK {
		t.Errorf("openapi = %d", w.Code)
	}
	if w := request(r, http.MethodGet, "/api/v1/projects", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("projects without token = %d, want 401", w.Code)
	}

	w := request(r, http.MethodPost, "/api/v1/auth/login", "", gin.H{"password": "hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d (%s)", w.Code, w.Body.String())
	}
	var login models.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatal(err)
	}

	if w := request(r, http.MethodGet, "/api/v1/projects", login.Token, nil); w.Code != http.StatusOK {
		t.Errorf("projects with token = %d", w.Code)
	}
	if w := request(r, http.MethodGet, "/api/v1/projects/active", login.Token, nil); w.Code != http.StatusNotFound {
		t.Errorf("active with none selected = %d, want 404", w.Code)
	}

	// Query tokens are only honoured on the WebSocket route. A plain GET
	// there gets past auth and fails the upgrade instead.
	if w := request(r, http.MethodGet, "/api/v1/projects?token="+login.Token, "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("projects with query token = %d, want 401", w.Code)
	}
	if w := request(r, http.MethodGet, "/api/v1/events", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("events without token = %d, want 401", w.Code)
	}
	if w := request(r, http.MethodGet, "/api/v1/events?token="+login.Token, "", nil); w.Code == http.StatusUnauthorized {
		t.Error("events rejected a valid query token")
	}
}

func TestRateLimitOnlyGuardsModelCalls(t *testing.T) {
	r := newEngine(t, "", 1)

	// Listing is never limited.
	for i := 0; i < 3; i++ {
		if w := request(r, http.MethodGet, "/api/v1/projects", "", nil); w.Code != http.StatusOK {
			t.Fatalf("list #%d = %d", i, w.Code)
		}
	}

	// The first chat consumes the only token; it fails later on the missing
	// project, which is fine for counting.
	if w := request(r, http.MethodPost, "/api/v1/projects/nope/chat", "", gin.H{"message": "hi"}); w.Code != http.StatusNotFound {
		t.Errorf("first chat = %d, want 404", w.Code)
	}
	if w := request(r, http.MethodPost, "/api/v1/projects/nope/generations", "", gin.H{"type": "QUIZ"}); w.Code != http.StatusTooManyRequests {
		t.Errorf("second AI call = %d, want 429", w.Code)
	}
}
