// Package memstore is an in-memory item collection.
// Contents live as long as the process; documents keep insertion order.
package memstore

import (
	"context"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"

	"github.com/idilsaglam/itemsync/internal/model"
	"github.com/idilsaglam/itemsync/internal/store"
)

// Store implements store.Collection in memory.
type Store struct {
	mu    sync.Mutex
	order []string
	docs  map[string]json.RawMessage
	bc    *store.Broadcaster
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		docs: make(map[string]json.RawMessage),
		bc:   store.NewBroadcaster(),
	}
}

// Put stores a raw document body under id, bypassing item encoding.
// It exists to seed documents that may not decode as items.
func (s *Store) Put(id string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		s.order = append(s.order, id)
	}
	s.docs[id] = json.RawMessage(body)
	s.publishLocked()
}

// Fail delivers a failure notification to every subscriber.
func (s *Store) Fail(err error) {
	s.bc.Publish(store.Notification{Err: err})
}

func (s *Store) Create(ctx context.Context, item model.Item) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := store.EncodeBody(item)
	if err != nil {
		return "", fmt.Errorf("encode item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := ulid.Make().String()
	s.order = append(s.order, id)
	s.docs[id] = body
	s.publishLocked()
	return id, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return nil
	}
	delete(s.docs, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.publishLocked()
	return nil
}

func (s *Store) Replace(ctx context.Context, id string, item model.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := store.EncodeBody(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		s.order = append(s.order, id)
	}
	s.docs[id] = body
	s.publishLocked()
	return nil
}

func (s *Store) Subscribe(fn func(store.Notification)) store.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bc.Subscribe(fn, store.Notification{Docs: s.documentsLocked()})
}

func (s *Store) Close() error {
	s.bc.Close()
	return nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *Store) publishLocked() {
	s.bc.Publish(store.Notification{Docs: s.documentsLocked()})
}

func (s *Store) documentsLocked() []store.Document {
	docs := make([]store.Document, 0, len(s.order))
	for _, id := range s.order {
		docs = append(docs, store.RawDocument{DocID: id, Body: s.docs[id]})
	}
	return docs
}
