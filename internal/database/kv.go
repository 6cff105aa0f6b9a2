package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Shimizu-Technology/tubeboard-api/internal/kv"
)

// DB satisfies kv.Store so the state store can persist through it.
var _ kv.Store = (*DB)(nil)

// Document is one row of kv_documents.
type Document struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Get returns the value stored under key, or kv.ErrNotFound.
func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := db.GetContext(ctx, &value, db.Rebind(`SELECT value FROM kv_documents WHERE key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return []byte(value), nil
}

// Set inserts or replaces the value under key.
func (db *DB) Set(ctx context.Context, key string, value []byte) error {
	query := db.Rebind(`
		INSERT INTO kv_documents (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)

	if _, err := db.ExecContext(ctx, query, key, string(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (db *DB) Delete(ctx context.Context, key string) error {
	if _, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM kv_documents WHERE key = ?`), key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Documents lists stored keys with their last write time, for operator
// tooling.
func (db *DB) Documents(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := db.SelectContext(ctx, &docs, `SELECT key, value, updated_at FROM kv_documents ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}
