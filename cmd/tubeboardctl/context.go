package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Shimizu-Technology/tubeboard-api/internal/config"
	"github.com/Shimizu-Technology/tubeboard-api/internal/database"
	"github.com/Shimizu-Technology/tubeboard-api/internal/state"
)

type commandContext struct {
	jsonOutput bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load()
	})
	return c.config, c.configErr
}

// withDB opens the configured database for the duration of fn.
func (c *commandContext) withDB(fn func(*database.DB) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	db, err := database.New(database.Config{Driver: cfg.DatabaseDriver, URL: cfg.DatabaseURL, DataDir: cfg.DataDir})
	if errors.Is(err, database.ErrLocked) {
		return fmt.Errorf("%w: stop the server first", err)
	}
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

// withStore migrates the database and loads application state for fn.
func (c *commandContext) withStore(ctx context.Context, fn func(*state.Store, *config.Config) error) error {
	return c.withDB(func(db *database.DB) error {
		if err := db.RunMigrations(); err != nil {
			return err
		}
		cfg, _ := c.ensureConfig()
		store, err := state.Load(ctx, db, state.Options{
			DefaultCredential:   cfg.GeminiAPIKey,
			DefaultModel:        cfg.DefaultModel,
			DefaultExchangeRate: cfg.ExchangeRate,
		})
		if err != nil {
			return err
		}
		return fn(store, cfg)
	})
}
