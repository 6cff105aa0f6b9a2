// Package config handles application configuration.
//
// Go Pattern: Configuration via environment variables with sensible defaults.
// Values are layered: built-in defaults, then an optional TOML file, then
// environment variables. Each layer overrides the one before it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Shimizu-Technology/tubeboard-api/internal/pricing"
)

// DefaultJWTSecret is the development signing secret. Release mode refuses
// to start with it while operator auth is enabled.
const DefaultJWTSecret = "dev-jwt-secret-change-in-production"

// DefaultConfigPath is read when TUBEBOARD_CONFIG is unset.
const DefaultConfigPath = "tubeboard.toml"

// Config holds all application configuration.
// Go Pattern: Exported fields with `toml` tags so the same struct decodes
// the optional config file.
type Config struct {
	// Server settings
	Port    string `toml:"port"`
	GinMode string `toml:"gin_mode"` // "debug", "release", or "test"

	// Persistence
	DatabaseDriver string `toml:"database_driver"` // "sqlite" or "postgres"
	DatabaseURL    string `toml:"database_url"`
	DataDir        string `toml:"data_dir"`

	// Gemini
	GeminiAPIKey         string  `toml:"gemini_api_key"` // default credential
	GeminiBaseURL        string  `toml:"gemini_base_url"`
	GeminiTimeoutSeconds int     `toml:"gemini_timeout_seconds"`
	DefaultModel         string  `toml:"default_model"`
	ExchangeRate         float64 `toml:"exchange_rate"` // INR per USD

	// Worker settings
	WorkerCount  int `toml:"worker_count"`
	JobQueueSize int `toml:"job_queue_size"`

	// Rate limiting: AI requests per hour per client
	GenerationRateLimit int `toml:"generation_rate_limit"`

	// CORS
	AllowedOrigins []string `toml:"cors_origins"`

	// Operator auth. Empty password hash disables auth.
	JWTSecret        string `toml:"jwt_secret"`
	AuthPasswordHash string `toml:"auth_password_hash"`

	// Webhooks
	WebhookURLs   []string `toml:"webhook_urls"`
	WebhookSecret string   `toml:"webhook_secret"`

	// External tools
	YtDlpPath string `toml:"yt_dlp_path"` // optional; enables title lookup
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:                 "8080",
		GinMode:              "debug",
		DatabaseDriver:       "sqlite",
		DataDir:              "data",
		GeminiBaseURL:        "https://generativelanguage.googleapis.com",
		GeminiTimeoutSeconds: 300,
		DefaultModel:         pricing.DefaultModel,
		ExchangeRate:         83.5,
		WorkerCount:          3,
		JobQueueSize:         100,
		GenerationRateLimit:  60,
		AllowedOrigins:       []string{"http://localhost:5173"}, // Vite dev server default
		JWTSecret:            DefaultJWTSecret,
		YtDlpPath:            findYtDlp(),
	}
}

// Load reads configuration with defaults, the TOML file named by
// TUBEBOARD_CONFIG (or ./tubeboard.toml when present), and the environment.
//
// Go Pattern: Functions that can fail return (value, error). This is Go's
// alternative to exceptions: the caller MUST handle the error.
func Load() (*Config, error) {
	cfg := Defaults()

	path, explicit := os.LookupEnv("TUBEBOARD_CONFIG")
	if !explicit {
		path = DefaultConfigPath
	}
	if err := cfg.mergeFile(path, explicit); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile decodes a TOML file over cfg. A missing file is only an error
// when it was named explicitly.
func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.GinMode = getEnv("GIN_MODE", c.GinMode)

	c.DatabaseDriver = getEnv("DATABASE_DRIVER", c.DatabaseDriver)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)

	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiBaseURL = getEnv("GEMINI_BASE_URL", c.GeminiBaseURL)
	c.GeminiTimeoutSeconds = getEnvInt("GEMINI_TIMEOUT_SECONDS", c.GeminiTimeoutSeconds)
	c.DefaultModel = getEnv("DEFAULT_MODEL", c.DefaultModel)
	c.ExchangeRate = getEnvFloat("EXCHANGE_RATE", c.ExchangeRate)

	c.WorkerCount = getEnvInt("WORKER_COUNT", c.WorkerCount)
	c.JobQueueSize = getEnvInt("JOB_QUEUE_SIZE", c.JobQueueSize)
	c.GenerationRateLimit = getEnvInt("GENERATION_RATE_LIMIT", c.GenerationRateLimit)

	c.AllowedOrigins = getEnvList("CORS_ORIGIN", c.AllowedOrigins)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.AuthPasswordHash = getEnv("AUTH_PASSWORD_HASH", c.AuthPasswordHash)

	c.WebhookURLs = getEnvList("WEBHOOK_URLS", c.WebhookURLs)
	c.WebhookSecret = getEnv("WEBHOOK_SECRET", c.WebhookSecret)

	c.YtDlpPath = getEnv("YT_DLP_PATH", c.YtDlpPath)
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if c.DatabaseDriver == "postgres" && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required when DATABASE_DRIVER=postgres")
	}
	if !pricing.Known(c.DefaultModel) {
		return fmt.Errorf("DEFAULT_MODEL %q is not a supported model", c.DefaultModel)
	}
	if c.ExchangeRate <= 0 {
		return fmt.Errorf("EXCHANGE_RATE must be positive, got %v", c.ExchangeRate)
	}
	if c.GeminiTimeoutSeconds <= 0 {
		return fmt.Errorf("GEMINI_TIMEOUT_SECONDS must be positive, got %d", c.GeminiTimeoutSeconds)
	}

	// Security: In release mode, we refuse to start with the default secret
	// while logins are possible.
	if c.GinMode == "release" && c.AuthEnabled() && c.JWTSecret == DefaultJWTSecret {
		return errors.New("JWT_SECRET must be set in production; refusing to start with default secret")
	}
	return nil
}

// AuthEnabled reports whether operator login protects the API.
func (c *Config) AuthEnabled() bool {
	return c.AuthPasswordHash != ""
}

// GeminiTimeout returns the non-streaming request timeout.
func (c *Config) GeminiTimeout() time.Duration {
	return time.Duration(c.GeminiTimeoutSeconds) * time.Second
}

// getEnv reads an environment variable with a fallback default.
// Go Pattern: Small helper functions are idiomatic. Go favors simple,
// composable functions over complex frameworks.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvInt reads an integer environment variable with a fallback.
func getEnvInt(key string, fallback int) int {
	str := getEnv(key, "")
	if str == "" {
		return fallback
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return fallback
	}
	return val
}

func getEnvFloat(key string, fallback float64) float64 {
	str := getEnv(key, "")
	if str == "" {
		return fallback
	}
	val, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fallback
	}
	return val
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	str, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(str, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// findYtDlp checks common locations for the yt-dlp binary.
func findYtDlp() string {
	paths := []string{
		"/usr/local/bin/yt-dlp",
		"/usr/bin/yt-dlp",
		"/opt/homebrew/bin/yt-dlp",
		"/home/linuxbrew/.linuxbrew/bin/yt-dlp",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
