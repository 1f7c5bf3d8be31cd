package itemsync

import (
	"context"
	"sync"
)

// Op names a collection operation in results and error reports.
type Op string

const (
	OpCreate    Op = "create"
	OpDelete    Op = "delete"
	OpReplace   Op = "replace"
	OpSubscribe Op = "subscribe"
)

// Result is the handle of a submitted mutation. Callers may drop it, wait
// for it, or inspect it later.
type Result struct {
	op   Op
	done chan struct{}

	mu  sync.Mutex
	id  string
	err error
}

func newResult(op Op, id string) *Result {
	return &Result{op: op, id: id, done: make(chan struct{})}
}

func (r *Result) complete(id string, err error) {
	r.mu.Lock()
	if id != "" {
		r.id = id
	}
	r.err = err
	r.mu.Unlock()
	close(r.done)
}

// Op reports which operation the result belongs to.
func (r *Result) Op() Op { return r.op }

// Done is closed once the store has answered.
func (r *Result) Done() <-chan struct{} { return r.done }

// Wait blocks until the operation completes or ctx is done.
func (r *Result) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the operation's error, or nil while it is still running.
func (r *Result) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// ID returns the item id: assigned by the store for creates (empty until
// done), the key for deletes and replaces.
func (r *Result) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}
