package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/roundtrip/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - documents table keyed by (collection, doc_id)
const currentSchemaVersion = 1

var (
	_ store.Dialer = Dialer{}
	_ store.Conn   = (*Conn)(nil)
	_ store.Cursor = (*Cursor)(nil)
)

// Dialer opens SQLite-backed connections for "sqlite:" targets.
type Dialer struct{}

// Dial implements store.Dialer.
func (Dialer) Dial(ctx context.Context, cfg store.Config) (store.Conn, error) {
	return Open(ctx, cfg)
}

// Conn is a document store kept in a SQLite database.
//
// Targets take two forms:
//   - "sqlite::memory:" opens a fresh private in-memory database per dial
//   - "sqlite:path/to/file.db" opens (or creates) a database file
//
// Read preferences are accepted and ignored; there is only one copy of the data.
type Conn struct {
	db     *sql.DB
	closed atomic.Bool
}

// Open creates or opens the database named by cfg.URI.
// Applies the schema automatically and is safe to call repeatedly on the same file.
//
// The database is configured with:
//   - WAL mode for file databases
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - a connection pool capped at cfg.MaxPoolSize
func Open(ctx context.Context, cfg store.Config) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dsn, err := dataSourceName(cfg.URI)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(int(cfg.MaxPoolSize))
	// In-memory databases vanish with their last connection, so keep the
	// whole pool idle rather than letting database/sql reap it.
	db.SetMaxIdleConns(int(cfg.MaxPoolSize))

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", classify(err))
	}

	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", classify(err))
	}

	return &Conn{db: db}, nil
}

// Close closes the database. A second call returns store.ErrClosed.
func (c *Conn) Close(_ context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return store.ErrClosed
	}
	return c.db.Close()
}

// DB returns the underlying sql.DB. Tests use it to inspect stored rows.
func (c *Conn) DB() *sql.DB {
	return c.db
}

func (c *Conn) checkOpen() error {
	if c.closed.Load() {
		return store.ErrClosed
	}
	return nil
}

// dataSourceName translates a sqlite target into a go-sqlite3 DSN with the
// pragmas encoded as connection parameters, so every pooled connection
// carries them.
func dataSourceName(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, "sqlite:")
	if !ok {
		return "", fmt.Errorf("not a sqlite target: %q", uri)
	}
	rest = strings.TrimPrefix(rest, "//")
	if i := strings.Index(rest, "?"); i >= 0 {
		rest = rest[:i]
	}

	params := "_busy_timeout=5000&_foreign_keys=on&_synchronous=NORMAL"
	switch rest {
	case "":
		return "", fmt.Errorf("sqlite target %q names no database", uri)
	case ":memory:":
		// cache=shared lets every pooled connection see the same private database
		return fmt.Sprintf("file:rt-%s?mode=memory&cache=shared&%s", uuid.NewString(), params), nil
	default:
		return fmt.Sprintf("file:%s?_journal_mode=WAL&%s", rest, params), nil
	}
}

// applySchema creates tables if they don't exist and records the schema version.
// This function is idempotent.
func applySchema(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// classify wraps driver errors with the store sentinels callers match on.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", store.ErrTimeout, err)
	case errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %w", store.ErrClosed, err)
	case strings.Contains(err.Error(), "database is closed"):
		return fmt.Errorf("%w: %w", store.ErrClosed, err)
	default:
		return err
	}
}
