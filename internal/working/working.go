// Package working implements the bounded in-process working memory tier.
package working

import (
	"sort"
	"sync"
	"time"

	"github.com/rcliao/tiered-memory/internal/model"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 10

// Memory is a bounded key/value store of short-lived facts. It is safe for
// concurrent use.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	items    map[string]*model.WorkingItem
	now      func() time.Time
}

// New creates a Memory holding at most capacity items.
func New(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		capacity: capacity,
		items:    make(map[string]*model.WorkingItem, capacity),
		now:      time.Now,
	}
}

// Capacity returns the configured item limit.
func (m *Memory) Capacity() int { return m.capacity }

// Add stores value under key. A repeated key keeps the higher of the two
// priorities and never evicts. A new key at capacity evicts the item with the
// lowest priority, oldest access first.
func (m *Memory) Add(key, value string, priority int, source string) {
	if source == "" {
		source = model.SourceContext
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if it, ok := m.items[key]; ok {
		it.Value = value
		it.Priority = max(it.Priority, priority)
		it.LastAccess = now
		it.AccessCount++
		it.Source = source
		return
	}

	if len(m.items) >= m.capacity {
		m.evictLocked()
	}
	m.items[key] = &model.WorkingItem{
		Key:        key,
		Value:      value,
		Priority:   priority,
		CreatedAt:  now,
		LastAccess: now,
		Source:     source,
	}
}

func (m *Memory) evictLocked() {
	var victim *model.WorkingItem
	for _, it := range m.items {
		if victim == nil || less(it, victim) {
			victim = it
		}
	}
	if victim != nil {
		delete(m.items, victim.Key)
	}
}

// less orders eviction candidates: lower priority first, then older access,
// then key so that the choice is deterministic.
func less(a, b *model.WorkingItem) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.LastAccess.Equal(b.LastAccess) {
		return a.LastAccess.Before(b.LastAccess)
	}
	return a.Key < b.Key
}

// Get returns the value for key and records the access.
func (m *Memory) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[key]
	if !ok {
		return "", false
	}
	it.LastAccess = m.now()
	it.AccessCount++
	return it.Value, true
}

// Remove deletes key and reports whether it was present.
func (m *Memory) Remove(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[key]; !ok {
		return false
	}
	delete(m.items, key)
	return true
}

// Context returns up to maxItems items ordered by priority, then access count,
// both descending. maxItems <= 0 returns everything.
func (m *Memory) Context(maxItems int) []model.WorkingItem {
	items := m.Snapshot()
	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		if items[i].AccessCount != items[j].AccessCount {
			return items[i].AccessCount > items[j].AccessCount
		}
		return items[i].Key < items[j].Key
	})
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

// Decay lowers by one the priority of every item not accessed within
// threshold. Priorities never drop below zero. It returns the number of
// items whose priority changed.
func (m *Memory) Decay(threshold time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for _, it := range m.items {
		if now.Sub(it.LastAccess) > threshold && it.Priority > 0 {
			it.Priority--
			n++
		}
	}
	return n
}

// Clear removes every item.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.items)
}

// Len returns the number of items held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Snapshot returns a copy of every item in key order.
func (m *Memory) Snapshot() []model.WorkingItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.WorkingItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
