package limiter

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter for single-node development mode.
type Memory struct {
	Settings
	mu      sync.Mutex
	entries map[string]*memEntry
	now     func() time.Time
}

// NewMemory constructs an in-process limiter.
func NewMemory(s Settings) *Memory {
	return &Memory{Settings: s, entries: make(map[string]*memEntry), now: time.Now}
}

func memKey(email string, ipHash []byte) string { return email + "\x00" + string(ipHash) }

// Allow reports whether login is currently allowed and a retry-after duration.
func (m *Memory) Allow(_ context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[memKey(email, ipHash)]
	if now := m.now(); ok && e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success forgets the (email, ip) entry.
func (m *Memory) Success(_ context.Context, email string, ipHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memKey(email, ipHash))
	return nil
}

// Failure records a failed attempt; may set a block until a future time.
func (m *Memory) Failure(_ context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	k := memKey(email, ipHash)
	e, ok := m.entries[k]
	if !ok || now.Sub(e.updatedAt) > m.Window {
		e = &memEntry{}
		m.entries[k] = e
	}
	e.fails++
	e.updatedAt = now
	if e.fails >= m.MaxFails {
		e.blockedUntil = now.Add(m.BlockFor)
		return true, m.BlockFor, nil
	}
	return false, 0, nil
}
