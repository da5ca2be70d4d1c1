package dedupe

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	expireAt int64 // unix nano
}

// Memory is a single-process TTL deduper. Suitable for one instance; use the
// Redis deduper when multiple instances share the stream.
type Memory struct {
	ttl     time.Duration
	mu      sync.Mutex
	items   map[string]memEntry
	stopCh  chan struct{}
	stopped bool
}

// NewMemory creates a TTL deduper. janitorEvery > 0 starts a background
// sweep of expired keys; 0 disables it.
func NewMemory(ttl, janitorEvery time.Duration) *Memory {
	m := &Memory{
		ttl:    ttl,
		items:  make(map[string]memEntry, 1024),
		stopCh: make(chan struct{}),
	}

	if janitorEvery > 0 {
		go m.janitor(janitorEvery)
	}

	return m
}

// Seen reports and records the key under the configured TTL.
func (m *Memory) Seen(_ context.Context, key string) (bool, error) {
	now := time.Now().UnixNano()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.items[key]; ok && e.expireAt > now {
		return true, nil
	}

	m.items[key] = memEntry{expireAt: now + m.ttl.Nanoseconds()}
	return false, nil
}

func (m *Memory) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			now := time.Now().UnixNano()
			m.mu.Lock()
			for k, e := range m.items {
				if e.expireAt <= now {
					delete(m.items, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Close stops the janitor if it is running.
func (m *Memory) Close() {
	m.mu.Lock()
	if !m.stopped {
		close(m.stopCh)
		m.stopped = true
	}
	m.mu.Unlock()
}

// Compile-time interface check.
var _ Deduper = (*Memory)(nil)
