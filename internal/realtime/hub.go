// Package realtime fans document change notifications out to watchers.
//
// A Hub delivers "document changed" signals to in-process subscribers.
// Relays connect hubs on different nodes through Redis pub/sub or Postgres
// LISTEN/NOTIFY. Notifications carry only the document id; watchers reload
// and re-authorize the document themselves.
package realtime

import (
	"context"
	"sync"
)

// Publisher announces that a document changed.
type Publisher interface {
	Publish(ctx context.Context, docID string) error
}

type listener struct {
	ch chan struct{}
}

// Hub is an in-process subscription registry.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*listener]struct{}
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*listener]struct{})}
}

// Subscribe registers interest in docID. The returned channel receives a
// value after each change; bursts coalesce into one pending signal.
// The cancel func is idempotent and closes the channel.
func (h *Hub) Subscribe(docID string) (<-chan struct{}, func()) {
	l := &listener{ch: make(chan struct{}, 1)}
	h.mu.Lock()
	set, ok := h.subs[docID]
	if !ok {
		set = make(map[*listener]struct{})
		h.subs[docID] = set
	}
	set[l] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return l.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[docID]; ok {
				delete(set, l)
				if len(set) == 0 {
					delete(h.subs, docID)
				}
			}
			close(l.ch)
		})
	}
}

// Notify signals every subscriber of docID without blocking.
func (h *Hub) Notify(docID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for l := range h.subs[docID] {
		select {
		case l.ch <- struct{}{}:
		default:
		}
	}
}

// NotifyAll signals every subscriber, used after a relay reconnect may have
// dropped notifications.
func (h *Hub) NotifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for l := range set {
			select {
			case l.ch <- struct{}{}:
			default:
			}
		}
	}
}

// Subscribers returns the number of live subscriptions for docID.
func (h *Hub) Subscribers(docID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[docID])
}

// Publish implements Publisher for single-node deployments.
func (h *Hub) Publish(_ context.Context, docID string) error {
	h.Notify(docID)
	return nil
}
