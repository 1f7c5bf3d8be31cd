// Package sqlitestore keeps an item collection in a local SQLite database.
//
// Documents are stored as JSON bodies in a single table shared by all
// collections. The database runs in WAL mode so several itemsync processes can
// read while one writes; each process watches the database files and
// republishes the collection when another process changed it.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/idilsaglam/itemsync/internal/model"
	"github.com/idilsaglam/itemsync/internal/store"
	"github.com/idilsaglam/itemsync/internal/store/watch"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

// Store implements store.Collection for one collection of a SQLite database.
type Store struct {
	conn       *sql.DB
	path       string
	collection string
	logger     *logrus.Entry

	mu          sync.Mutex
	fingerprint string

	bc      *store.Broadcaster
	watcher *watch.Watcher
}

// Open opens (creating if needed) the database at path and returns the named
// collection.
//
// The caller MUST call Close() when done.
func Open(path, collection string, logger *logrus.Entry) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &Store{
		conn:       conn,
		path:       path,
		collection: collection,
		logger:     logger,
		bc:         store.NewBroadcaster(),
	}

	w, err := watch.Files([]string{path, path + "-wal"}, watch.DefaultDebounce, logger, s.reload)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.watcher = w
	return s, nil
}

func (s *Store) Create(ctx context.Context, item model.Item) (string, error) {
	body, err := store.EncodeBody(item)
	if err != nil {
		return "", fmt.Errorf("encode item: %w", err)
	}
	id := ulid.Make().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	err = s.write(ctx, func(ctx context.Context) error {
		_, err := s.conn.ExecContext(ctx,
			`INSERT INTO documents (collection, id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			s.collection, id, string(body), now, now)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.write(ctx, func(ctx context.Context) error {
		_, err := s.conn.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND id = ?`, s.collection, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *Store) Replace(ctx context.Context, id string, item model.Item) error {
	body, err := store.EncodeBody(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	err = s.write(ctx, func(ctx context.Context) error {
		_, err := s.conn.ExecContext(ctx, `
			INSERT INTO documents (collection, id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET
				body = excluded.body,
				updated_at = excluded.updated_at`,
			s.collection, id, string(body), now, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	return nil
}

func (s *Store) Subscribe(fn func(store.Notification)) store.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, fp, err := s.query(context.Background())
	if err != nil {
		return s.bc.Subscribe(fn, store.Notification{Err: err})
	}
	s.fingerprint = fp
	return s.bc.Subscribe(fn, store.Notification{Docs: docs})
}

// Close stops the file watch and closes the database.
func (s *Store) Close() error {
	werr := s.watcher.Close()
	s.bc.Close()
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return werr
}

// write runs fn and publishes the resulting collection.
func (s *Store) write(ctx context.Context, fn func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(ctx); err != nil {
		return err
	}
	s.publishLocked(ctx)
	return nil
}

// reload runs after the database files changed on disk.
func (s *Store) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(context.Background())
}

func (s *Store) publishLocked(ctx context.Context) {
	docs, fp, err := s.query(ctx)
	if err != nil {
		s.bc.Publish(store.Notification{Err: err})
		return
	}
	if fp == s.fingerprint {
		return
	}
	s.fingerprint = fp
	s.bc.Publish(store.Notification{Docs: docs})
}

// query loads the collection in insertion order. The fingerprint identifies
// the contents so unchanged reloads are not republished.
func (s *Store) query(ctx context.Context) ([]store.Document, string, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, body FROM documents WHERE collection = ? ORDER BY rowid`, s.collection)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var (
		docs []store.Document
		fp   strings.Builder
	)
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, "", fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, store.RawDocument{DocID: id, Body: []byte(body)})
		fp.WriteString(id)
		fp.WriteByte(0)
		fp.WriteString(body)
		fp.WriteByte(0)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, fp.String(), nil
}
