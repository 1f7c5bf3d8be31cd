package store

import "sync"

// Broadcaster fans notifications out to subscribers.
//
// Each subscription is served by its own goroutine and holds at most one
// undelivered document set and one undelivered failure, so Publish never
// blocks on a slow subscriber. Every successful notification carries the full
// document set, which makes dropping an older one safe; a failure never
// replaces pending documents.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*subscription]struct{})}
}

// Subscribe registers fn and queues initial as its first notification.
func (b *Broadcaster) Subscribe(fn func(Notification), initial Notification) Subscription {
	s := &subscription{
		b:    b,
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	s.offer(initial)

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.run()
	return s
}

// Publish queues n for every current subscriber.
func (b *Broadcaster) Publish(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		s.offer(n)
	}
}

// Len returns the number of active subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close cancels every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := make([]*subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

type subscription struct {
	b  *Broadcaster
	fn func(Notification)

	mu      sync.Mutex
	docs    *Notification
	failure *Notification

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *subscription) offer(n Notification) {
	s.mu.Lock()
	if n.Failed() {
		s.failure = &n
	} else {
		s.docs = &n
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		failure, docs := s.failure, s.docs
		s.failure, s.docs = nil, nil
		s.mu.Unlock()

		// The failure goes first so the subscriber ends on the newest documents.
		for _, n := range []*Notification{failure, docs} {
			if n == nil {
				continue
			}
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(*n)
		}
	}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.b.mu.Lock()
		delete(s.b.subs, s)
		s.b.mu.Unlock()
	})
}
