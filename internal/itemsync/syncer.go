// Package itemsync keeps a local, observable list of items in step with a live
// store collection and forwards user mutations to it.
//
// The list is only ever replaced by store notifications: mutations are
// submitted and return at once, and their effect shows up in a later
// snapshot. Operation failures are not retried and do not reach the caller
// unless it holds on to the returned Result or installs an error handler.
package itemsync

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"github.com/idilsaglam/itemsync/internal/errs"
	"github.com/idilsaglam/itemsync/internal/logging"
	"github.com/idilsaglam/itemsync/internal/model"
	"github.com/idilsaglam/itemsync/internal/store"
)

// DefaultTimeout bounds each submitted mutation.
const DefaultTimeout = 10 * time.Second

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger replaces the component logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Syncer) { s.logger = logger }
}

// WithTimeout sets the per-mutation deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithErrorHandler installs fn to receive operation and subscription failures.
// fn runs on store or mutation goroutines and must not block.
func WithErrorHandler(fn func(Op, error)) Option {
	return func(s *Syncer) { s.onError = fn }
}

// Syncer owns one subscription to a collection and the snapshot it feeds.
type Syncer struct {
	coll    store.Collection
	logger  *logrus.Entry
	timeout time.Duration
	onError func(Op, error)

	mu        sync.Mutex
	snapshot  []model.Item
	sub       store.Subscription
	starting  bool
	gen       uint64
	observers map[chan []model.Item]struct{}
	ready     chan struct{}
	synced    bool

	inflight conc.WaitGroup
}

// New creates a Syncer over coll. It does not subscribe until Start.
func New(coll store.Collection, opts ...Option) *Syncer {
	s := &Syncer{
		coll:      coll,
		timeout:   DefaultTimeout,
		snapshot:  []model.Item{},
		observers: make(map[chan []model.Item]struct{}),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger("itemsync")
	}
	return s
}

// Start subscribes to the collection. It is a no-op while subscribed.
func (s *Syncer) Start() {
	s.mu.Lock()
	if s.sub != nil || s.starting {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.starting = true
	s.mu.Unlock()

	// Subscribe outside the lock: a collection may deliver the first
	// notification before returning.
	sub := s.coll.Subscribe(func(n store.Notification) { s.apply(gen, n) })

	s.mu.Lock()
	s.starting = false
	if gen != s.gen {
		// Stop ran while subscribing.
		s.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	s.sub = sub
	s.mu.Unlock()
	s.logger.Debug("subscribed")
}

// Stop cancels the subscription. It is idempotent, and once it returns no
// notification changes the snapshot, even one already being delivered.
// Submitted mutations keep running.
func (s *Syncer) Stop() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.gen++
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
		s.logger.Debug("unsubscribed")
	}
}

// Subscribed reports whether Start is in effect.
func (s *Syncer) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

// Snapshot returns a copy of the items of the last successful notification.
func (s *Syncer) Snapshot() []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.snapshot)
}

// Ready is closed once the first successful notification has replaced the
// snapshot.
func (s *Syncer) Ready() <-chan struct{} { return s.ready }

// Lookup finds an item of the current snapshot by id.
func (s *Syncer) Lookup(id string) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.snapshot {
		if it.ID == id {
			return it, true
		}
	}
	return model.Item{}, false
}

// Observe returns a channel that always holds the most recent snapshot, and a
// function that ends the observation and closes the channel. The current
// snapshot is queued immediately.
func (s *Syncer) Observe() (<-chan []model.Item, func()) {
	ch := make(chan []model.Item, 1)

	s.mu.Lock()
	s.observers[ch] = struct{}{}
	ch <- clone(s.snapshot)
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, ch)
			close(ch)
			s.mu.Unlock()
		})
	}
}

// AddItem submits a new item. The item appears with its store-assigned id in
// a later snapshot; the current snapshot is left alone.
func (s *Syncer) AddItem(title, description string) *Result {
	item := model.Item{Title: title, Description: description}
	res := newResult(OpCreate, "")
	s.submit(res, func(ctx context.Context) (string, error) {
		return s.coll.Create(ctx, item)
	})
	return res
}

// DeleteItem submits the removal of id, whether or not the snapshot holds it.
func (s *Syncer) DeleteItem(id string) *Result {
	res := newResult(OpDelete, id)
	s.submit(res, func(ctx context.Context) (string, error) {
		return id, s.coll.Delete(ctx, id)
	})
	return res
}

// UpdateItem submits a full replacement of the document keyed by item.ID.
// An item without an id fails at once and never reaches the store.
func (s *Syncer) UpdateItem(item model.Item) *Result {
	res := newResult(OpReplace, item.ID)
	if !item.Persisted() {
		err := errs.MissingID(string(OpReplace))
		s.report(OpReplace, err)
		res.complete("", err)
		return res
	}
	s.submit(res, func(ctx context.Context) (string, error) {
		return item.ID, s.coll.Replace(ctx, item.ID, item)
	})
	return res
}

// Wait blocks until every submitted mutation has completed.
func (s *Syncer) Wait() {
	s.inflight.Wait()
}

func (s *Syncer) submit(res *Result, call func(context.Context) (string, error)) {
	s.inflight.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		id, err := call(ctx)
		if err != nil {
			err = errs.Store(string(res.op), err).WithDetail("id", res.ID())
			s.report(res.op, err)
		} else {
			s.logger.WithFields(logrus.Fields{"op": res.op, "id": id}).Debug("operation succeeded")
		}
		res.complete(id, err)
	})
}

// apply handles one notification from subscription generation gen.
func (s *Syncer) apply(gen uint64, n store.Notification) {
	if n.Failed() {
		s.mu.Lock()
		current := gen == s.gen
		s.mu.Unlock()
		if current {
			s.report(OpSubscribe, errs.Wrap(n.Err, errs.ErrCodeSubscribeFailed, "snapshot listener failed"))
		}
		return
	}

	items := decode(n.Docs, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.snapshot = items
	if !s.synced {
		s.synced = true
		close(s.ready)
	}
	for ch := range s.observers {
		publish(ch, clone(items))
	}
	s.logger.WithField("items", len(items)).Debug("snapshot replaced")
}

func (s *Syncer) report(op Op, err error) {
	s.logger.WithError(err).WithField("op", op).Warn("operation failed")
	if s.onError != nil {
		s.onError(op, err)
	}
}

// decode maps documents to items in order, dropping any that do not decode.
func decode(docs []store.Document, logger *logrus.Entry) []model.Item {
	items := make([]model.Item, 0, len(docs))
	for _, d := range docs {
		var it model.Item
		if err := d.DataTo(&it); err != nil {
			logger.WithError(errs.Decode(d.ID(), err)).Debug("dropping document")
			continue
		}
		it.ID = d.ID()
		items = append(items, it)
	}
	return items
}

// publish replaces whatever is buffered in ch with items.
func publish(ch chan []model.Item, items []model.Item) {
	select {
	case <-ch:
	default:
	}
	ch <- items
}

func clone(items []model.Item) []model.Item {
	out := make([]model.Item, len(items))
	copy(out, items)
	return out
}
