package mirrorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// SQLStore keeps snapshots in a SQL table. It works with any database/sql
// driver for PostgreSQL, MySQL or SQLite. Expiry times are stored as Unix
// milliseconds so queries never depend on the database clock.
//
//	CREATE TABLE burp_snapshots (
//	    name VARCHAR(255) PRIMARY KEY,
//	    data BYTEA NOT NULL,
//	    expires_at BIGINT NOT NULL,
//	    updated_at BIGINT NOT NULL
//	);
//	CREATE INDEX idx_burp_snapshots_expires ON burp_snapshots(expires_at);
type SQLStore struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	logger    *slog.Logger
	closed    atomic.Bool
	done      chan struct{}
}

// SQLDialect selects placeholder and upsert syntax.
type SQLDialect int

const (
	// DialectPostgreSQL uses PostgreSQL syntax ($1, $2 placeholders).
	DialectPostgreSQL SQLDialect = iota
	// DialectMySQL uses MySQL syntax (? placeholders).
	DialectMySQL
	// DialectSQLite uses SQLite syntax (? placeholders).
	DialectSQLite
)

// ParseDialect maps a driver or dialect name to a SQLDialect.
func ParseDialect(s string) (SQLDialect, error) {
	switch s {
	case "postgres", "postgresql", "pgx":
		return DialectPostgreSQL, nil
	case "mysql":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return 0, fmt.Errorf("mirrorstore: unknown SQL dialect %q", s)
	}
}

// SQLStoreOption configures SQLStore behavior.
type SQLStoreOption func(*sqlStoreConfig)

type sqlStoreConfig struct {
	tableName       string
	dialect         SQLDialect
	cleanupInterval time.Duration
	logger          *slog.Logger
}

// WithSQLTableName sets the table name.
// Default: "burp_snapshots".
func WithSQLTableName(name string) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect for query generation.
// Default: DialectPostgreSQL.
func WithSQLDialect(dialect SQLDialect) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.dialect = dialect
	}
}

// WithSQLCleanupInterval sets how often expired rows are deleted. Zero
// disables the cleanup loop.
// Default: 5 minutes.
func WithSQLCleanupInterval(d time.Duration) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.cleanupInterval = d
	}
}

// WithSQLLogger sets the logger for background cleanup failures.
func WithSQLLogger(l *slog.Logger) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.logger = l
	}
}

// NewSQLStore creates a store over db. It does not create the table; call
// CreateTable for that.
func NewSQLStore(db *sql.DB, opts ...SQLStoreOption) *SQLStore {
	cfg := &sqlStoreConfig{
		tableName:       "burp_snapshots",
		dialect:         DialectPostgreSQL,
		cleanupInterval: 5 * time.Minute,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := &SQLStore{
		db:        db,
		tableName: cfg.tableName,
		dialect:   cfg.dialect,
		logger:    cfg.logger,
		done:      make(chan struct{}),
	}
	if cfg.cleanupInterval > 0 {
		go store.cleanupLoop(cfg.cleanupInterval)
	}
	return store
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) upsertQuery() string {
	switch s.dialect {
	case DialectMySQL:
		return fmt.Sprintf(`
			INSERT INTO %s (name, data, expires_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				data = VALUES(data),
				expires_at = VALUES(expires_at),
				updated_at = VALUES(updated_at)
		`, s.tableName)
	case DialectSQLite:
		return fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (name, data, expires_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, s.tableName)
	default:
		return fmt.Sprintf(`
			INSERT INTO %s (name, data, expires_at, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO UPDATE SET
				data = EXCLUDED.data,
				expires_at = EXCLUDED.expires_at,
				updated_at = EXCLUDED.updated_at
		`, s.tableName)
	}
}

// Save upserts the snapshot row.
func (s *SQLStore) Save(ctx context.Context, name string, data []byte, expiresAt time.Time) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	_, err := s.db.ExecContext(ctx, s.upsertQuery(), name, data, expiresAt.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("mirrorstore: save %q: %w", name, err)
	}
	return nil
}

// Load returns the row's data if it has not expired.
func (s *SQLStore) Load(ctx context.Context, name string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	query := fmt.Sprintf(`SELECT data FROM %s WHERE name = %s AND expires_at > %s`,
		s.tableName, s.placeholder(1), s.placeholder(2))

	var data []byte
	err := s.db.QueryRowContext(ctx, query, name, time.Now().UnixMilli()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mirrorstore: load %q: %w", name, err)
	}
	return data, nil
}

// Delete removes the row.
func (s *SQLStore) Delete(ctx context.Context, name string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE name = %s`, s.tableName, s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, name); err != nil {
		return fmt.Errorf("mirrorstore: delete %q: %w", name, err)
	}
	return nil
}

// Close stops the cleanup loop. The database handle is left open, as it
// may be shared.
func (s *SQLStore) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		close(s.done)
	}
	return nil
}

func (s *SQLStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := s.Cleanup(ctx); err != nil {
				s.logger.Warn("snapshot cleanup failed", "table", s.tableName, "error", err)
			}
			cancel()
		case <-s.done:
			return
		}
	}
}

// Cleanup deletes expired rows and returns how many were removed.
func (s *SQLStore) Cleanup(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= %s`, s.tableName, s.placeholder(1))
	res, err := s.db.ExecContext(ctx, query, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreateTable creates the snapshot table and its expiry index if missing.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	var query string
	switch s.dialect {
	case DialectMySQL:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				name VARCHAR(255) PRIMARY KEY,
				data LONGBLOB NOT NULL,
				expires_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL
			)
		`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				name TEXT PRIMARY KEY,
				data BLOB NOT NULL,
				expires_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)
		`, s.tableName)
	default:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				name VARCHAR(255) PRIMARY KEY,
				data BYTEA NOT NULL,
				expires_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL
			)
		`, s.tableName)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("mirrorstore: create table: %w", err)
	}

	index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(expires_at)`, s.tableName, s.tableName)
	if s.dialect == DialectMySQL {
		// MySQL has no IF NOT EXISTS for indexes; a duplicate is harmless.
		index = fmt.Sprintf(`CREATE INDEX idx_%s_expires ON %s(expires_at)`, s.tableName, s.tableName)
		_, _ = s.db.ExecContext(ctx, index)
		return nil
	}
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("mirrorstore: create index: %w", err)
	}
	return nil
}
