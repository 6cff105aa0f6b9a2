// Package database provides the SQL-backed key-value store.
//
// Go Pattern: We use the `sqlx` package which extends Go's standard `database/sql`
// with convenient features like scanning rows into structs and rebinding
// placeholders per driver. The same queries run on PostgreSQL (hosted) and
// SQLite (local, the default).
//
// Go's database/sql has built-in connection pooling: you create one *sql.DB
// (or *sqlx.DB) at startup and share it across your entire application.
// It's safe for concurrent use by multiple goroutines.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // PostgreSQL driver: the underscore import runs its init()
	_ "modernc.org/sqlite" // Pure-Go SQLite driver, registered as "sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultSQLiteFile is the database file created under the data directory.
const DefaultSQLiteFile = "tubeboard.db"

// ErrLocked is returned when another process already owns the SQLite file.
var ErrLocked = errors.New("database is locked by another tubeboard process")

func init() {
	// sqlx does not know the modernc driver name; it uses ? placeholders.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Config selects and locates the database.
type Config struct {
	Driver  string // "sqlite" or "postgres"
	URL     string // DSN for postgres, file path for sqlite (optional)
	DataDir string // directory for the default sqlite file
}

// DB wraps the sqlx database connection with our application-specific methods.
// Go Pattern: Embedding (*sqlx.DB) gives us all of sqlx's methods automatically,
// plus we can add our own. This is Go's version of inheritance: composition.
type DB struct {
	*sqlx.DB
	driver string
	path   string
	lock   *flock.Flock
}

// New opens the configured database. For SQLite it first takes an exclusive
// file lock so only one server process writes the store.
func New(cfg Config) (*DB, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return openPostgres(cfg.URL)
	case DriverSQLite, "":
		return openSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgres(url string) (*DB, error) {
	if url == "" {
		return nil, errors.New("DATABASE_URL is required for the postgres driver")
	}
	// sqlx.Connect both opens the connection and pings the database
	db, err := sqlx.Connect(DriverPostgres, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Serverless PostgreSQL closes idle connections quickly, so keep the
	// pool small and recycle often.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	return &DB{DB: db, driver: DriverPostgres}, nil
}

func openSQLite(cfg Config) (*DB, error) {
	path := cfg.URL
	if path == "" {
		dir := cfg.DataDir
		if dir == "" {
			dir = "data"
		}
		path = filepath.Join(dir, DefaultSQLiteFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	db, err := sqlx.Connect(DriverSQLite, path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps SQLite writes serialized inside the process.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	return &DB{DB: db, driver: DriverSQLite, path: path, lock: lock}, nil
}

// Driver returns the driver name the connection was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// Path returns the SQLite file path, or "" for postgres.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database connection is alive.
// Go Pattern: context.Context is passed to functions that may be slow or
// need cancellation (like database queries, HTTP requests).
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the connection and releases the file lock.
func (db *DB) Close() error {
	err := db.DB.Close()
	if db.lock != nil {
		if unlockErr := db.lock.Unlock(); unlockErr != nil && err == nil {
			err = fmt.Errorf("release lock: %w", unlockErr)
		}
	}
	return err
}
