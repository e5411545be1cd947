package imagecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS blobs (
	key  TEXT PRIMARY KEY,
	data BLOB NOT NULL
)`

// SQLiteBackend stores blobs in a single SQLite table. It is the embedded
// store alternative to the diskv directory tree.
type SQLiteBackend struct {
	db *sql.DB

	// OnError receives scan failures from Keys, which has no error return.
	// They are logged when nil.
	OnError func(error)
}

// OpenSQLiteBackend opens (or creates) the database at path with WAL
// journaling. Use ":memory:" for a throwaway store.
func OpenSQLiteBackend(path string) (*SQLiteBackend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("imagecache: sqlite mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("imagecache: sqlite open: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own database.
		db.SetMaxOpenConns(1)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("imagecache: sqlite %s: %w", p, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("imagecache: sqlite schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Read(key string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRow(`SELECT data FROM blobs WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("imagecache: sqlite read %s: %w", key, err)
	}
	return data, nil
}

func (b *SQLiteBackend) Write(key string, val []byte) error {
	_, err := b.db.Exec(`INSERT INTO blobs (key, data) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data`, key, val)
	if err != nil {
		return fmt.Errorf("imagecache: sqlite write %s: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Erase(key string) error {
	res, err := b.db.Exec(`DELETE FROM blobs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("imagecache: sqlite erase %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *SQLiteBackend) EraseAll() error {
	if _, err := b.db.Exec(`DELETE FROM blobs`); err != nil {
		return fmt.Errorf("imagecache: sqlite erase all: %w", err)
	}
	return nil
}

// Keys loads the key column up front so no connection is held while the
// caller drains the channel.
func (b *SQLiteBackend) Keys(cancel <-chan struct{}) <-chan string {
	ctx, stop := context.WithCancel(context.Background())
	go func() {
		select {
		case <-cancel:
			stop()
		case <-ctx.Done():
		}
	}()
	defer stop()

	var keys []string
	rows, err := b.db.QueryContext(ctx, `SELECT key FROM blobs ORDER BY key`)
	if err != nil {
		b.report(cancel, fmt.Errorf("imagecache: sqlite keys: %w", err))
		return streamKeys(nil, cancel)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			b.report(cancel, fmt.Errorf("imagecache: sqlite scan key: %w", err))
			break
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		b.report(cancel, fmt.Errorf("imagecache: sqlite keys: %w", err))
	}
	return streamKeys(keys, cancel)
}

func (b *SQLiteBackend) report(cancel <-chan struct{}, err error) {
	select {
	case <-cancel:
		return
	default:
	}
	if b.OnError != nil {
		b.OnError(err)
		return
	}
	slog.Warn("sqlite cache scan failed", "error", err)
}

// Close releases the database handle.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
