package service

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
)

// Snapshot is one observed state of a watched document.
type Snapshot struct {
	Expense model.Expense
	Exists  bool
}

// Watch is a live subscription to one document. C delivers snapshots and is
// closed when the watch ends; Err then reports why.
type Watch struct {
	C <-chan Snapshot

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Close stops the watch and waits for it to wind down. Safe to call repeatedly.
func (w *Watch) Close() {
	w.cancel()
	<-w.done
}

// Err returns errs.ErrPermissionDenied if access was revoked mid-watch, nil otherwise.
func (w *Watch) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Watch) fail(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

// Watch delivers the current document immediately and a new snapshot after
// every change. Each snapshot is re-authorized; losing read access ends the
// watch with errs.ErrPermissionDenied. Deletion yields one Exists=false
// snapshot and ends the watch.
func (s *ExpenseServiceImpl) Watch(ctx context.Context, caller model.Caller, id string) (*Watch, error) {
	if s.hub == nil {
		return nil, errors.New("watch: no realtime hub configured")
	}
	// subscribe first so no change slips between the load and the registration
	signals, unsubscribe := s.hub.Subscribe(id)
	first, err := s.Get(ctx, caller, id)
	if err != nil {
		unsubscribe()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Snapshot, 1)
	w := &Watch{C: out, cancel: cancel, done: make(chan struct{})}
	out <- Snapshot{Expense: first, Exists: true}

	go func() {
		defer close(w.done)
		defer close(out)
		defer unsubscribe()

		last := first
		send := func(snap Snapshot) bool {
			select {
			case out <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
			}
			e, err := s.repo.Get(ctx, id)
			switch {
			case errors.Is(err, errs.ErrNotFound):
				send(Snapshot{Exists: false})
				return
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				s.log.Warn("watch reload", zap.String("doc_id", id), zap.Error(err))
				continue
			}
			if !s.canRead(caller, *e) {
				w.fail(errs.ErrPermissionDenied)
				return
			}
			if reflect.DeepEqual(last, *e) {
				continue
			}
			last = *e
			if !send(Snapshot{Expense: *e, Exists: true}) {
				return
			}
		}
	}()
	return w, nil
}
