package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
)

// SQLArea is a SQL-backed storage area.
// It works with any database/sql driver (PostgreSQL, MySQL, SQLite).
// Requires a table with schema:
//
//	CREATE TABLE storesync_items (
//	    item_key VARCHAR(255) PRIMARY KEY,
//	    item_value TEXT NOT NULL,
//	    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
//	);
//
// EnsureSchema creates it for development and tests.
type SQLArea struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	closed    atomic.Bool
}

// SQLDialect represents the SQL dialect for query generation.
type SQLDialect int

const (
	// DialectPostgreSQL uses PostgreSQL syntax ($1, $2 placeholders).
	DialectPostgreSQL SQLDialect = iota
	// DialectMySQL uses MySQL syntax (? placeholders).
	DialectMySQL
	// DialectSQLite uses SQLite syntax (? placeholders).
	DialectSQLite
)

// SQLAreaOption configures SQLArea behavior.
type SQLAreaOption func(*sqlAreaConfig)

type sqlAreaConfig struct {
	tableName string
	dialect   SQLDialect
}

// WithSQLTableName sets the table name.
// Default: "storesync_items".
func WithSQLTableName(name string) SQLAreaOption {
	return func(c *sqlAreaConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect for query generation.
// Default: DialectPostgreSQL.
func WithSQLDialect(dialect SQLDialect) SQLAreaOption {
	return func(c *sqlAreaConfig) {
		c.dialect = dialect
	}
}

// NewSQLArea creates a new SQL-backed storage area.
func NewSQLArea(db *sql.DB, opts ...SQLAreaOption) *SQLArea {
	cfg := &sqlAreaConfig{
		tableName: "storesync_items",
		dialect:   DialectPostgreSQL,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &SQLArea{
		db:        db,
		tableName: cfg.tableName,
		dialect:   cfg.dialect,
	}
}

// placeholder returns the placeholder syntax for the dialect.
func (s *SQLArea) placeholder(n int) string {
	if s.dialect == DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// GetItem implements Area.
func (s *SQLArea) GetItem(ctx context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrAreaClosed{}
	}

	query := fmt.Sprintf(`SELECT item_value FROM %s WHERE item_key = %s`, s.tableName, s.placeholder(1))

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get item %q: %w", key, err)
	}
	return value, true, nil
}

// SetItem implements Area.
func (s *SQLArea) SetItem(ctx context.Context, key, value string) error {
	if s.closed.Load() {
		return ErrAreaClosed{}
	}

	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (item_key, item_value, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (item_key) DO UPDATE SET
				item_value = EXCLUDED.item_value,
				updated_at = NOW()
		`, s.tableName)
	case DialectMySQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (item_key, item_value, updated_at)
			VALUES (?, ?, NOW())
			ON DUPLICATE KEY UPDATE
				item_value = VALUES(item_value),
				updated_at = NOW()
		`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (item_key, item_value, updated_at)
			VALUES (?, ?, datetime('now'))
		`, s.tableName)
	}

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set item %q: %w", key, err)
	}
	return nil
}

// RemoveItem implements Area.
func (s *SQLArea) RemoveItem(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrAreaClosed{}
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE item_key = %s`, s.tableName, s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("remove item %q: %w", key, err)
	}
	return nil
}

// Keys implements Lister.
func (s *SQLArea) Keys(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrAreaClosed{}
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT item_key FROM %s ORDER BY item_key`, s.tableName))
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close marks the area closed.
// Note: This does not close the underlying database connection,
// as it may be shared with other components.
func (s *SQLArea) Close() error {
	s.closed.Store(true)
	return nil
}

// EnsureSchema creates the item table if it doesn't exist.
// This is a convenience method for development/testing.
func (s *SQLArea) EnsureSchema(ctx context.Context) error {
	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				item_key VARCHAR(255) PRIMARY KEY,
				item_value TEXT NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)
		`, s.tableName)
	case DialectMySQL:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				item_key VARCHAR(255) PRIMARY KEY,
				item_value LONGTEXT NOT NULL,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
			)
		`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				item_key TEXT PRIMARY KEY,
				item_value TEXT NOT NULL,
				updated_at TEXT DEFAULT (datetime('now'))
			)
		`, s.tableName)
	}

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.tableName, err)
	}
	return nil
}

// TableName returns the configured table name.
func (s *SQLArea) TableName() string {
	return s.tableName
}
