package jsonstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/idilsaglam/itemsync/internal/model"
	"github.com/idilsaglam/itemsync/internal/store"
	"github.com/idilsaglam/itemsync/internal/store/watch"
)

// JSON-backed collection. Single file, human-readable, portable: an array of
// {"id", "title", "description"} objects in insertion order.
// Writes made by other processes are picked up through a file watch; there is
// no cross-process locking, the last writer wins.

// Store implements store.Collection over one JSON file.
type Store struct {
	path   string
	logger *logrus.Entry

	mu       sync.Mutex
	lastSeen []byte

	bc      *store.Broadcaster
	watcher *watch.Watcher
}

// Open returns a Store for path, creating parent directories as needed.
// The file itself is created on the first write.
func Open(path string, logger *logrus.Entry) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	s := &Store{
		path:   path,
		logger: logger,
		bc:     store.NewBroadcaster(),
	}

	w, err := watch.Files([]string{path}, watch.DefaultDebounce, logger, s.reload)
	if err != nil {
		return nil, err
	}
	s.watcher = w
	return s, nil
}

func (s *Store) Create(ctx context.Context, item model.Item) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := ulid.Make().String()
	item.ID = id
	err := s.update(func(docs []store.RawDocument) ([]store.RawDocument, error) {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("json marshal: %w", err)
		}
		return append(docs, store.RawDocument{DocID: id, Body: raw}), nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(docs []store.RawDocument) ([]store.RawDocument, error) {
		out := docs[:0]
		for _, d := range docs {
			if d.DocID != id {
				out = append(out, d)
			}
		}
		return out, nil
	})
}

func (s *Store) Replace(ctx context.Context, id string, item model.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	item.ID = id
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return s.update(func(docs []store.RawDocument) ([]store.RawDocument, error) {
		for i, d := range docs {
			if d.DocID == id {
				docs[i].Body = raw
				return docs, nil
			}
		}
		return append(docs, store.RawDocument{DocID: id, Body: raw}), nil
	})
}

func (s *Store) Subscribe(fn func(store.Notification)) store.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.path)
	if err != nil {
		return s.bc.Subscribe(fn, store.Notification{Err: err})
	}
	s.lastSeen = b
	docs, assigned, err := parse(b)
	if err != nil {
		return s.bc.Subscribe(fn, store.Notification{Err: err})
	}
	if assigned {
		s.persistIDs(docs)
	}
	return s.bc.Subscribe(fn, store.Notification{Docs: asDocuments(docs)})
}

func (s *Store) Close() error {
	err := s.watcher.Close()
	s.bc.Close()
	return err
}

// update applies fn to the current file contents and saves the result.
func (s *Store) update(fn func([]store.RawDocument) ([]store.RawDocument, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.path)
	if err != nil {
		return err
	}
	docs, _, err := parse(b)
	if err != nil {
		return err
	}
	docs, err = fn(docs)
	if err != nil {
		return err
	}
	out, err := encode(docs)
	if err != nil {
		return err
	}
	if err := writeFile(s.path, out); err != nil {
		return err
	}
	s.lastSeen = out
	s.bc.Publish(store.Notification{Docs: asDocuments(docs)})
	return nil
}

// reload runs after the file changed on disk. Our own writes are recognized
// by content and not published twice.
func (s *Store) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.path)
	if err != nil {
		s.bc.Publish(store.Notification{Err: err})
		return
	}
	if bytes.Equal(b, s.lastSeen) {
		return
	}
	s.lastSeen = b
	docs, assigned, err := parse(b)
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Warn("external change is not a valid collection")
		}
		s.bc.Publish(store.Notification{Err: err})
		return
	}
	if assigned {
		s.persistIDs(docs)
	}
	if s.logger != nil {
		s.logger.WithField("documents", len(docs)).Debug("reloaded after external change")
	}
	s.bc.Publish(store.Notification{Docs: asDocuments(docs)})
}

func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []byte{}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return b, nil
}

// persistIDs writes back a file whose id-less objects were just given ids,
// so the ids stay stable across reloads. Callers hold s.mu.
func (s *Store) persistIDs(docs []store.RawDocument) {
	out, err := encode(docs)
	if err == nil {
		err = writeFile(s.path, out)
	}
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Warn("could not save assigned ids")
		}
		return
	}
	s.lastSeen = out
}

// parse splits the file into documents. Objects without an "id" key get a
// fresh one, reported through assigned. Other elements are kept with an empty
// id so they survive rewrites.
func parse(b []byte) (docs []store.RawDocument, assigned bool, err error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, false, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return nil, false, fmt.Errorf("json unmarshal: %w", err)
	}
	docs = make([]store.RawDocument, 0, len(raws))
	for _, raw := range raws {
		var fields map[string]json.RawMessage
		if json.Unmarshal(raw, &fields) == nil && fields != nil {
			if _, ok := fields["id"]; !ok {
				id := ulid.Make().String()
				docs = append(docs, store.RawDocument{DocID: id, Body: withID(raw, id)})
				assigned = true
				continue
			}
		}
		var head struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(raw, &head)
		docs = append(docs, store.RawDocument{DocID: head.ID, Body: raw})
	}
	return docs, assigned, nil
}

// withID puts "id" first in the JSON object raw, keeping its other fields as written.
func withID(raw json.RawMessage, id string) json.RawMessage {
	quoted, _ := json.Marshal(id)
	rest := bytes.TrimSpace(bytes.TrimSpace(raw)[1:])
	out := append([]byte(`{"id":`), quoted...)
	if rest[0] != '}' {
		out = append(out, ',')
	}
	return append(out, rest...)
}

func encode(docs []store.RawDocument) ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		raws = append(raws, d.Body)
	}
	b, err := json.MarshalIndent(raws, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	return b, nil
}

// writeFile replaces path atomically so readers never see a partial file.
func writeFile(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".items-*.json")
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func asDocuments(docs []store.RawDocument) []store.Document {
	out := make([]store.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, d)
	}
	return out
}
