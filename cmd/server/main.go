// Package main is the entry point for the TubeBoard API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/tubeboard-api/internal/config"
	"github.com/Shimizu-Technology/tubeboard-api/internal/database"
	"github.com/Shimizu-Technology/tubeboard-api/internal/handlers"
	"github.com/Shimizu-Technology/tubeboard-api/internal/middleware"
	"github.com/Shimizu-Technology/tubeboard-api/internal/router"
	"github.com/Shimizu-Technology/tubeboard-api/internal/services/gemini"
	"github.com/Shimizu-Technology/tubeboard-api/internal/services/generator"
	"github.com/Shimizu-Technology/tubeboard-api/internal/services/webhook"
	"github.com/Shimizu-Technology/tubeboard-api/internal/services/worker"
	"github.com/Shimizu-Technology/tubeboard-api/internal/services/youtube"
	"github.com/Shimizu-Technology/tubeboard-api/internal/state"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("🚀 TubeBoard API %s starting...", Version)

	// Step 1: Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	log.Printf("📋 Config loaded: port=%s, workers=%d, gin_mode=%s, database=%s", cfg.Port, cfg.WorkerCount, cfg.GinMode, cfg.DatabaseDriver)
	gin.SetMode(cfg.GinMode)

	// Step 2: Open the Database
	db, err := database.New(database.Config{Driver: cfg.DatabaseDriver, URL: cfg.DatabaseURL, DataDir: cfg.DataDir})
	if errors.Is(err, database.ErrLocked) {
		log.Fatalf("❌ %v (is another server already running?)", err)
	}
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Printf("✅ Database connected (%s)", db.Driver())

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	// Step 3: Load State
	store, err := state.Load(context.Background(), db, state.Options{
		DefaultCredential:   cfg.GeminiAPIKey,
		DefaultModel:        cfg.DefaultModel,
		DefaultExchangeRate: cfg.ExchangeRate,
	})
	if err != nil {
		log.Fatalf("❌ Failed to load state: %v", err)
	}
	log.Printf("📦 Loaded %d projects and %d ledger entries", len(store.Projects()), len(store.CostHistory()))
	if store.Credential() == "" {
		log.Println("⚠️  No Gemini API key set (PUT /api/v1/settings/credential or GEMINI_API_KEY)")
	}

	// Step 4: Create Services
	// The key is read from the store on every call so a new credential
	// takes effect immediately.
	client := gemini.NewClient(gemini.Config{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.GeminiTimeout(),
	}, gemini.WithKeyFunc(store.Credential))

	var meta youtube.MetadataLookup
	if ytdlp := youtube.NewYtDlp(cfg.YtDlpPath); cfg.YtDlpPath != "" && ytdlp.Available() {
		meta = ytdlp
		log.Printf("🎬 yt-dlp found at %s (video titles enabled)", cfg.YtDlpPath)
	} else {
		log.Println("⚠️  yt-dlp not found (project names must be given explicitly)")
	}

	webhookService := webhook.New(cfg.WebhookURLs, cfg.WebhookSecret)
	unsubscribe := func() {}
	if webhookService.Enabled() {
		var events <-chan state.Event
		events, unsubscribe = store.Subscribe(256)
		go webhookService.Run(events)
	}

	// Step 5: Create and Start Worker Pool
	wp := worker.NewPool(cfg.WorkerCount, cfg.JobQueueSize, generator.New(client, store))
	wp.Start()

	auth := middleware.NewAuth(cfg.JWTSecret, cfg.AuthPasswordHash)
	if auth.Enabled() {
		log.Println("🔑 Operator auth enabled")
	} else {
		log.Println("⚠️  Operator auth disabled (set AUTH_PASSWORD_HASH before exposing the server)")
	}
	rateLimiter := middleware.NewRateLimiter(cfg.GenerationRateLimit)

	// Step 6: Setup HTTP Router
	h := handlers.NewHandler(store, db, wp, client, auth, meta)
	h.AllowedOrigins = cfg.AllowedOrigins
	r := router.Setup(h, rateLimiter, cfg.AllowedOrigins)

	// Step 7: Start the HTTP Server
	// No WriteTimeout: chat replies stream for as long as the model talks.
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on http://localhost:%s", cfg.Port)
		log.Printf("📖 API docs: http://localhost:%s/api/docs", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	// Step 8: Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("🛑 Received signal %v, shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	wp.Stop()
	rateLimiter.Close()

	unsubscribe()
	webhookService.Shutdown()
	log.Println("⏳ Webhook deliveries finished")

	log.Println("👋 Server stopped. Goodbye!")
}
