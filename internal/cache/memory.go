package cache

import (
	"container/list"
	"sync"
	"time"
)

// Memory is the first cache level: an in-process LRU bounded by bytes.
type Memory struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	items    map[string]*list.Element
	order    *list.List
	stats    Stats
}

type memoryEntry struct {
	key     string
	value   []byte
	addedAt time.Time
}

// NewMemory builds a memory cache holding at most capacity bytes.
func NewMemory(capacity int64) *Memory {
	return &Memory{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		stats:    Stats{Capacity: capacity},
	}
}

// Get returns the cached value and marks it most recently used.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		m.stats.Misses++
		return nil, false
	}
	m.order.MoveToFront(elem)
	m.stats.Hits++
	return elem.Value.(*memoryEntry).value, true
}

// Put stores value, evicting from the cold end until it fits.
func (m *Memory) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := int64(len(value))
	if size > m.capacity {
		return ErrTooLarge
	}

	if elem, ok := m.items[key]; ok {
		entry := elem.Value.(*memoryEntry)
		m.size += size - int64(len(entry.value))
		entry.value = value
		entry.addedAt = time.Now()
		m.order.MoveToFront(elem)
	} else {
		for m.size+size > m.capacity && m.order.Len() > 0 {
			m.evictOldest()
		}
		elem := m.order.PushFront(&memoryEntry{key: key, value: value, addedAt: time.Now()})
		m.items[key] = elem
		m.size += size
	}

	// Updating an entry can also overflow the capacity.
	for m.size > m.capacity && m.order.Len() > 0 {
		m.evictOldest()
	}
	return nil
}

// Delete removes key if present.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.items[key]; ok {
		m.remove(elem)
	}
}

// Clear drops everything.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*list.Element)
	m.order.Init()
	m.size = 0
}

// Sweep drops entries older than maxAge and reports how many went.
func (m *Memory) Sweep(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	swept := 0
	for elem := m.order.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).addedAt.Before(cutoff) {
			m.remove(elem)
			swept++
		}
		elem = prev
	}
	return swept
}

// Stats returns a snapshot of the counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Size = m.size
	s.Items = len(m.items)
	return s
}

// evictOldest and remove require the lock.

func (m *Memory) evictOldest() {
	if elem := m.order.Back(); elem != nil {
		m.remove(elem)
		m.stats.Evictions++
	}
}

func (m *Memory) remove(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	m.order.Remove(elem)
	delete(m.items, entry.key)
	m.size -= int64(len(entry.value))
}
