package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type entry struct {
	data     []byte
	storedAt time.Time
	tag      string
}

// Memory is an in-process Cache. Construct one per process and hand it to
// the components that need it.
type Memory struct {
	mu   sync.RWMutex
	data map[string]entry
	ttl  time.Duration
	now  func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		data: make(map[string]entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		cacheMissCounter.Inc()
		return nil, false
	}
	if m.now().Sub(e.storedAt) >= m.ttl {
		m.mu.Lock()
		// re-check, a concurrent Set may have refreshed the entry
		if cur, ok := m.data[key]; ok && m.now().Sub(cur.storedAt) >= m.ttl {
			delete(m.data, key)
		}
		m.mu.Unlock()
		cacheMissCounter.Inc()
		return nil, false
	}
	cacheHitCounter.Inc()
	return e.data, true
}

func (m *Memory) Set(_ context.Context, key, tag string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry{data: value, storedAt: m.now(), tag: tag}
}

func (m *Memory) InvalidateMatching(_ context.Context, substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key := range m.data {
		if strings.Contains(key, substr) {
			delete(m.data, key)
			removed++
		}
	}
	cacheInvalidatedCounter.Add(removed)
	return removed
}

func (m *Memory) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]entry)
}

// Tag returns the namespace tag of a live entry.
func (m *Memory) Tag(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[key]
	if !ok || m.now().Sub(e.storedAt) >= m.ttl {
		return "", false
	}
	return e.tag, true
}
