package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// isolate points TUBEBOARD_CONFIG at a temp file holding fileBody and
// clears the variables these tests set.
func isolate(t *testing.T, fileBody string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tubeboard.toml")
	if err := os.WriteFile(path, []byte(fileBody), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TUBEBOARD_CONFIG", path)
	for _, key := range []string{
		"PORT", "GIN_MODE", "DATABASE_DRIVER", "DATABASE_URL", "DEFAULT_MODEL",
		"EXCHANGE_RATE", "WORKER_COUNT", "CORS_ORIGIN", "JWT_SECRET",
		"AUTH_PASSWORD_HASH", "WEBHOOK_URLS", "GEMINI_TIMEOUT_SECONDS",
	} {
		// t.Setenv restores the original value after the test.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DatabaseDriver != "sqlite" || cfg.WorkerCount != 3 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.AuthEnabled() {
		t.Error("auth enabled without a password hash")
	}
	if got := cfg.GeminiTimeout().Minutes(); got != 5 {
		t.Errorf("GeminiTimeout = %vm, want 5m", got)
	}
}

func TestLoadLayering(t *testing.T) {
	isolate(t, `
port = "9000"
worker_count = 5
exchange_rate = 80.0
webhook_urls = ["http://a.example/hook"]
`)
	t.Setenv("WORKER_COUNT", "7")
	t.Setenv("CORS_ORIGIN", "http://a.test, http://b.test,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"file overrides default", cfg.Port, "9000"},
		{"env overrides file", cfg.WorkerCount, 7},
		{"file float", cfg.ExchangeRate, 80.0},
		{"file list", cfg.WebhookURLs, []string{"http://a.example/hook"}},
		{"env list", cfg.AllowedOrigins, []string{"http://a.test", "http://b.test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad driver", map[string]string{"DATABASE_DRIVER": "mysql"}, "DATABASE_DRIVER"},
		{"postgres without url", map[string]string{"DATABASE_DRIVER": "postgres"}, "DATABASE_URL"},
		{"unknown model", map[string]string{"DEFAULT_MODEL": "gpt-4"}, "DEFAULT_MODEL"},
		{"release default secret", map[string]string{"GIN_MODE": "release", "AUTH_PASSWORD_HASH": "$2a$10$x"}, "JWT_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestReleaseWithoutAuthAllowsDefaultSecret(t *testing.T) {
	isolate(t, "")
	t.Setenv("GIN_MODE", "release")

	if _, err := Load(); err != nil {
		t.Errorf("Load: %v", err)
	}
}

func TestMissingExplicitFile(t *testing.T) {
	isolate(t, "")
	t.Setenv("TUBEBOARD_CONFIG", filepath.Join(t.TempDir(), "nope.toml"))

	if _, err := Load(); err == nil {
		t.Error("Load with missing explicit config succeeded")
	}
}
