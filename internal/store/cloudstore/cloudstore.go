// Package cloudstore binds an item collection to Google Cloud Firestore.
//
// Documents carry only title and description; the item id is the Firestore
// document name. Snapshots are served by the SDK's watch stream, so every
// subscription gets the full collection on each change, in document-name order.
// Setting FIRESTORE_EMULATOR_HOST points the SDK at a local emulator.
package cloudstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/idilsaglam/itemsync/internal/model"
	"github.com/idilsaglam/itemsync/internal/store"
)

// Config selects the project, collection and credentials.
type Config struct {
	Project    string
	Collection string
	// Credentials is a service account JSON file. Empty means application
	// default credentials.
	Credentials string
}

// Store implements store.Collection over a Firestore collection.
type Store struct {
	client *firestore.Client
	coll   *firestore.CollectionRef
	logger *logrus.Entry
}

// Open connects to Firestore.
func Open(ctx context.Context, cfg Config, logger *logrus.Entry) (*Store, error) {
	var opts []option.ClientOption
	if cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}
	client, err := firestore.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &Store{
		client: client,
		coll:   client.Collection(cfg.Collection),
		logger: logger,
	}, nil
}

func (s *Store) Create(ctx context.Context, item model.Item) (string, error) {
	ref, _, err := s.coll.Add(ctx, item)
	if err != nil {
		return "", fmt.Errorf("failed to add document: %w", err)
	}
	return ref.ID, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.coll.Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

func (s *Store) Replace(ctx context.Context, id string, item model.Item) error {
	if _, err := s.coll.Doc(id).Set(ctx, item); err != nil {
		return fmt.Errorf("failed to set document %s: %w", id, err)
	}
	return nil
}

// Subscribe opens a snapshot listener. A stream error is delivered once as a
// failure notification and ends the listener; Firestore does not resume it.
func (s *Store) Subscribe(fn func(store.Notification)) store.Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	it := s.coll.Snapshots(ctx)
	sub := &subscription{cancel: cancel, it: it, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		for {
			qs, err := it.Next()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
					return
				}
				if s.logger != nil {
					s.logger.WithError(err).Warn("snapshot listener failed")
				}
				fn(store.Notification{Err: err})
				return
			}

			snaps, err := qs.Documents.GetAll()
			if err != nil {
				fn(store.Notification{Err: fmt.Errorf("failed to read snapshot: %w", err)})
				continue
			}
			docs := make([]store.Document, 0, len(snaps))
			for _, snap := range snaps {
				docs = append(docs, document{snap})
			}
			if ctx.Err() != nil {
				return
			}
			fn(store.Notification{Docs: docs})
		}
	}()
	return sub
}

func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close firestore client: %w", err)
	}
	return nil
}

type subscription struct {
	cancel context.CancelFunc
	it     *firestore.QuerySnapshotIterator
	once   sync.Once
	done   chan struct{}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		s.it.Stop()
	})
}

type document struct {
	snap *firestore.DocumentSnapshot
}

func (d document) ID() string { return d.snap.Ref.ID }

func (d document) DataTo(v any) error { return d.snap.DataTo(v) }
