package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rpggio/focusstake/internal/domain/ledger"
)

// Memory is an in-process ReceiptCache bounded by entry count and TTL.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	receipt   ledger.Receipt
	expiresAt time.Time
}

// NewMemory creates a memory cache. max <= 0 means unbounded.
func NewMemory(ttl time.Duration, max int) *Memory {
	return &Memory{ttl: ttl, max: max, entries: map[string]memoryEntry{}, now: time.Now}
}

func (m *Memory) Get(_ context.Context, signature string) (*ledger.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[signature]
	if !ok {
		return nil, nil
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, signature)
		return nil, nil
	}
	r := e.receipt
	return &r, nil
}

func (m *Memory) Put(_ context.Context, receipt *ledger.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if m.max > 0 && len(m.entries) >= m.max {
		m.evict(now)
	}
	m.entries[receipt.Signature] = memoryEntry{receipt: *receipt, expiresAt: now.Add(m.ttl)}
	return nil
}

// evict drops expired entries, then the one closest to expiry if the
// cache is still full.
func (m *Memory) evict(now time.Time) {
	var oldest string
	var oldestAt time.Time
	for sig, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, sig)
			continue
		}
		if oldest == "" || e.expiresAt.Before(oldestAt) {
			oldest, oldestAt = sig, e.expiresAt
		}
	}
	if len(m.entries) >= m.max && oldest != "" {
		delete(m.entries, oldest)
	}
}

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
