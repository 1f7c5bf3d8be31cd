// Package store defines the item collection contract consumed by the
// synchronization layer, plus plumbing shared by the backends.
package store

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/idilsaglam/itemsync/internal/model"
)

// Collection is a live document collection of items.
//
// Mutations report their outcome through the returned error; whether the
// caller waits for it is the caller's business. Subscribe never blocks: the
// first notification carries the current contents and later ones follow
// every change, delivered on a goroutine owned by the collection.
type Collection interface {
	// Create stores item under a new store-assigned id and returns that id.
	// item.ID is ignored.
	Create(ctx context.Context, item model.Item) (string, error)

	// Delete removes the document with id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Replace overwrites the whole document with id.
	Replace(ctx context.Context, id string, item model.Item) error

	// Subscribe registers fn for change notifications until the returned
	// subscription is cancelled.
	Subscribe(fn func(Notification)) Subscription

	// Close releases the collection's resources.
	Close() error
}

// Subscription is the handle of an active Subscribe call.
type Subscription interface {
	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe()
}

// Document is a raw stored document as delivered by a notification.
type Document interface {
	ID() string
	// DataTo decodes the document body into v.
	DataTo(v any) error
}

// Notification carries either the full ordered document set or a failure.
type Notification struct {
	Docs []Document
	Err  error
}

// Failed reports whether the notification carries a failure condition.
func (n Notification) Failed() bool { return n.Err != nil }

// RawDocument is a Document with a JSON body, used by the local backends.
type RawDocument struct {
	DocID string
	Body  json.RawMessage
}

func (d RawDocument) ID() string { return d.DocID }

func (d RawDocument) DataTo(v any) error { return json.Unmarshal(d.Body, v) }

// EncodeBody marshals the stored fields of item; the id lives beside the body.
func EncodeBody(item model.Item) (json.RawMessage, error) {
	return json.Marshal(struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}{item.Title, item.Description})
}
