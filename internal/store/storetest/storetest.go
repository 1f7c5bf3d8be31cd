// Package storetest holds the behavior every store.Collection backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/itemsync/internal/model"
	"github.com/idilsaglam/itemsync/internal/store"
)

// Recorder captures notifications from a subscription.
type Recorder struct {
	ch chan store.Notification
}

// NewRecorder returns a Recorder whose Func can be passed to Subscribe.
func NewRecorder() *Recorder {
	return &Recorder{ch: make(chan store.Notification, 64)}
}

func (r *Recorder) Func(n store.Notification) { r.ch <- n }

// Next waits for the next notification.
func (r *Recorder) Next(t *testing.T) store.Notification {
	t.Helper()
	select {
	case n := <-r.ch:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
		return store.Notification{}
	}
}

// WaitFor returns the first notification for which match is true.
func (r *Recorder) WaitFor(t *testing.T, match func(store.Notification) bool) store.Notification {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-r.ch:
			if match(n) {
				return n
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching notification")
			return store.Notification{}
		}
	}
}

// Decode maps documents to items, failing the test on undecodable ones.
func Decode(t *testing.T, docs []store.Document) []model.Item {
	t.Helper()
	items := make([]model.Item, 0, len(docs))
	for _, d := range docs {
		var it model.Item
		require.NoError(t, d.DataTo(&it), "decode %s", d.ID())
		it.ID = d.ID()
		items = append(items, it)
	}
	return items
}

// HasLen matches notifications with exactly n documents.
func HasLen(n int) func(store.Notification) bool {
	return func(note store.Notification) bool { return !note.Failed() && len(note.Docs) == n }
}

// Options relax the contract for backends with different guarantees.
type Options struct {
	// Unordered skips the insertion order check, for stores that order by
	// random document ids.
	Unordered bool
}

// Run exercises the store.Collection contract against collections built by open.
func Run(t *testing.T, open func(t *testing.T) store.Collection, opts ...Options) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	t.Run("InitialNotification", func(t *testing.T) {
		c := open(t)
		rec := NewRecorder()
		sub := c.Subscribe(rec.Func)
		defer sub.Unsubscribe()

		n := rec.Next(t)
		require.False(t, n.Failed())
		assert.Empty(t, n.Docs)
	})

	t.Run("CreateAssignsID", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		rec := NewRecorder()
		sub := c.Subscribe(rec.Func)
		defer sub.Unsubscribe()
		rec.Next(t)

		id, err := c.Create(ctx, model.Item{ID: "client-chosen", Title: "A", Description: "B"})
		require.NoError(t, err)
		require.NotEmpty(t, id)
		assert.NotEqual(t, "client-chosen", id)

		n := rec.WaitFor(t, HasLen(1))
		assert.Equal(t, []model.Item{{ID: id, Title: "A", Description: "B"}}, Decode(t, n.Docs))
	})

	t.Run("InsertionOrder", func(t *testing.T) {
		if o.Unordered {
			t.Skip("backend does not keep insertion order")
		}
		c := open(t)
		ctx := context.Background()
		rec := NewRecorder()
		sub := c.Subscribe(rec.Func)
		defer sub.Unsubscribe()

		var ids []string
		for _, title := range []string{"one", "two", "three"} {
			id, err := c.Create(ctx, model.Item{Title: title, Description: "d"})
			require.NoError(t, err)
			ids = append(ids, id)
		}

		n := rec.WaitFor(t, HasLen(3))
		items := Decode(t, n.Docs)
		for i, id := range ids {
			assert.Equal(t, id, items[i].ID)
		}
	})

	t.Run("ReplaceIsFullDocument", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		id, err := c.Create(ctx, model.Item{Title: "A", Description: "B"})
		require.NoError(t, err)

		require.NoError(t, c.Replace(ctx, id, model.Item{ID: id, Title: "C", Description: ""}))

		rec := NewRecorder()
		sub := c.Subscribe(rec.Func)
		defer sub.Unsubscribe()
		items := Decode(t, rec.Next(t).Docs)
		assert.Equal(t, []model.Item{{ID: id, Title: "C", Description: ""}}, items)
	})

	t.Run("DeleteAndDeleteMissing", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		id, err := c.Create(ctx, model.Item{Title: "A", Description: "B"})
		require.NoError(t, err)

		rec := NewRecorder()
		sub := c.Subscribe(rec.Func)
		defer sub.Unsubscribe()
		rec.WaitFor(t, HasLen(1))

		require.NoError(t, c.Delete(ctx, id))
		rec.WaitFor(t, HasLen(0))

		assert.NoError(t, c.Delete(ctx, "does-not-exist"))
	})

	t.Run("UnsubscribeStopsDelivery", func(t *testing.T) {
		c := open(t)
		rec := NewRecorder()
		sub := c.Subscribe(rec.Func)
		rec.Next(t)
		sub.Unsubscribe()

		_, err := c.Create(context.Background(), model.Item{Title: "A", Description: "B"})
		require.NoError(t, err)

		select {
		case n := <-rec.ch:
			t.Fatalf("notification after unsubscribe: %+v", n)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		c := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.Create(ctx, model.Item{Title: "A", Description: "B"})
		assert.Error(t, err)
	})
}
