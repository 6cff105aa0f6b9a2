// auth_test.go: Unit tests for operator auth and rate limiting.
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newProtectedRouter(auth *Auth) *gin.Engine {
	subject := func(c *gin.Context) {
		sub := ""
		if claims := GetClaims(c); claims != nil {
			sub = claims.Subject
		}
		c.String(http.StatusOK, sub)
	}
	r := gin.New()
	r.GET("/private", auth.Require(), subject)
	r.GET("/socket", auth.RequireWebSocket(), subject)
	return r
}

func TestLogin(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	auth := NewAuth("test-secret", hash)

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"correct password", "hunter2", false},
		{"wrong password", "hunter3", true},
		{"empty password", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := auth.Login(tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Login err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && resp.Token == "" {
				t.Error("Login returned empty token")
			}
		})
	}
}

func TestRequire(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	auth := NewAuth("test-secret", hash)
	login, err := auth.Login("pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	otherToken, _, _ := GenerateJWT("other-secret", time.Now())
	expiredToken, _, _ := GenerateJWT("test-secret", time.Now().Add(-2*SessionTTL))

	r := newProtectedRouter(auth)

	tests := []struct {
		name   string
		path   string
		header string
		query  string
		want   int
	}{
		{"no token", "/private", "", "", http.StatusUnauthorized},
		{"valid bearer", "/private", "Bearer " + login.Token, "", http.StatusOK},
		{"query token rejected on plain route", "/private", "", "?token=" + login.Token, http.StatusUnauthorized},
		{"query token on websocket route", "/socket", "", "?token=" + login.Token, http.StatusOK},
		{"bearer on websocket route", "/socket", "Bearer " + login.Token, "", http.StatusOK},
		{"bad query token on websocket route", "/socket", "", "?token=" + otherToken, http.StatusUnauthorized},
		{"wrong secret", "/private", "Bearer " + otherToken, "", http.StatusUnauthorized},
		{"expired", "/private", "Bearer " + expiredToken, "", http.StatusUnauthorized},
		{"malformed", "/private", "Bearer not-a-jwt", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusOK && w.Body.String() != OperatorSubject {
				t.Errorf("subject = %q", w.Body.String())
			}
		})
	}
}

func TestRequireDisabled(t *testing.T) {
	auth := NewAuth("test-secret", "")
	if auth.Enabled() {
		t.Fatal("auth enabled without password hash")
	}

	w := httptest.NewRecorder()
	newProtectedRouter(auth).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when auth is disabled", w.Code)
	}
	if _, err := auth.Login("anything"); err == nil {
		t.Error("Login succeeded with auth disabled")
	}
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(2)
	defer rl.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/ai", rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusAccepted) })

	call := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ai", nil))
		return w
	}

	for i := 0; i < 2; i++ {
		if w := call(); w.Code != http.StatusAccepted {
			t.Fatalf("request %d status = %d", i+1, w.Code)
		}
	}
	w := call()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", w.Code)
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("remaining header = %q", w.Header().Get("X-RateLimit-Remaining"))
	}

	// Half an hour refills one of the two hourly tokens.
	now = now.Add(30 * time.Minute)
	if w := call(); w.Code != http.StatusAccepted {
		t.Errorf("after refill status = %d, want 202", w.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	defer rl.Close()

	r := gin.New()
	r.POST("/ai", rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusAccepted) })
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ai", nil))
		if w.Code != http.StatusAccepted {
			t.Fatalf("request %d status = %d", i+1, w.Code)
		}
	}
}
