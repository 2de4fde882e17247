package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "github.com/mattn/go-sqlite3"

	stretcherrors "github.com/mirkobrombin/go-stretch/v1/errors"
)

const (
	defaultSQLiteTableName = "stretch_kv"
	defaultSQLiteOpTimeout = 5 * time.Second
	defaultSQLiteBusy      = 5 * time.Second
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore implements Store on a SQLite database file. Several processes
// on the same machine may open the same file; each Get and Set is a single
// statement and therefore atomic on its own.
type SQLiteStore[T any] struct {
	db        *sql.DB
	tableName string
	timeout   time.Duration
	codec     Codec
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*sqliteStoreOptions)

type sqliteStoreOptions struct {
	tableName string
	timeout   time.Duration
	codec     Codec
}

// WithSQLiteTableName sets the table holding the key-value rows.
func WithSQLiteTableName(name string) SQLiteOption {
	return func(o *sqliteStoreOptions) {
		o.tableName = name
	}
}

// WithSQLiteTimeout sets the operation timeout for SQLite calls.
func WithSQLiteTimeout(d time.Duration) SQLiteOption {
	return func(o *sqliteStoreOptions) {
		o.timeout = d
	}
}

// WithSQLiteCodec sets the codec used to serialize values.
func WithSQLiteCodec(c Codec) SQLiteOption {
	return func(o *sqliteStoreOptions) {
		o.codec = c
	}
}

// OpenSQLite opens (creating if needed) the database file at path with WAL
// journaling and a busy timeout suited to several concurrent processes.
func OpenSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d", path, defaultSQLiteBusy.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// NewSQLiteStore returns a SQLiteStore using db and creates its table when
// missing.
func NewSQLiteStore[T any](ctx context.Context, db *sql.DB, opts ...SQLiteOption) (*SQLiteStore[T], error) {
	o := sqliteStoreOptions{
		tableName: defaultSQLiteTableName,
		timeout:   defaultSQLiteOpTimeout,
		codec:     JSONCodec{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !tableNamePattern.MatchString(o.tableName) {
		return nil, fmt.Errorf("adapter: invalid table name %q", o.tableName)
	}

	s := &SQLiteStore[T]{db: db, tableName: o.tableName, timeout: o.timeout, codec: o.codec}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`, s.tableName)
	if _, err := db.ExecContext(cctx, ddl); err != nil {
		return nil, fmt.Errorf("create table %s: %w", s.tableName, mapSQLErr(err))
	}
	return s, nil
}

// Get implements Store.Get.
func (s *SQLiteStore[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if err := ctxErr(ctx); err != nil {
		return zero, false, err
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var data []byte
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = ?", s.tableName)
	err := s.db.QueryRowContext(cctx, query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, mapSQLErr(err)
	}
	var v T
	if err := s.codec.Unmarshal(data, &v); err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Set implements Store.Set.
func (s *SQLiteStore[T]) Set(ctx context.Context, key string, value T) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	data, err := s.codec.Marshal(value)
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stmt := fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, s.tableName)
	if _, err := s.db.ExecContext(cctx, stmt, key, data, time.Now().UnixMilli()); err != nil {
		return mapSQLErr(err)
	}
	return nil
}

// Keys implements Store.Keys.
func (s *SQLiteStore[T]) Keys(ctx context.Context) ([]string, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(cctx, fmt.Sprintf("SELECT key FROM %s ORDER BY key", s.tableName))
	if err != nil {
		return nil, mapSQLErr(err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, mapSQLErr(err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLErr(err)
	}
	return keys, nil
}

func mapSQLErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return stretcherrors.ErrTimeout
	}
	if errors.Is(err, sql.ErrConnDone) || err.Error() == "sql: database is closed" {
		return stretcherrors.ErrConnectionClosed
	}
	return err
}
