package cache

import (
	"sync"
	"time"
)

// entry is one cached value plus its position in the recency list.
type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time

	// prev points toward the most recently used end, next toward the oldest.
	prev *entry[K, V]
	next *entry[K, V]
}

// Option configures a Store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Store is a bounded key/value cache with a fixed TTL per entry and
// least-recently-used eviction. Expired entries are removed lazily on Get
// or in bulk by EvictExpired. It is safe for concurrent use.
type Store[K comparable, V any] struct {
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	mu    sync.Mutex
	items map[K]*entry[K, V]
	head  *entry[K, V] // most recently used
	tail  *entry[K, V] // least recently used
}

// New creates a Store holding at most maxEntries values for ttl each.
func New[K comparable, V any](maxEntries int, ttl time.Duration, opts ...Option) *Store[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Store[K, V]{
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        o.now,
		items:      make(map[K]*entry[K, V], maxEntries),
	}
}

// Get returns the value for key if it has not expired and marks it as
// most recently used. An expired entry is deleted.
func (s *Store[K, V]) Get(key K) (V, bool) {
	var zero V

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return zero, false
	}
	if !s.now().Before(e.expiresAt) {
		s.removeLocked(e)
		return zero, false
	}
	s.unlink(e)
	s.pushFront(e)
	return e.value, true
}

// Set stores value under key, resetting its expiry and recency. When key
// is new and the store is full, the least recently used entry is evicted.
func (s *Store[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.items[key]; ok {
		s.removeLocked(old)
	}
	if len(s.items) >= s.maxEntries && s.tail != nil {
		s.removeLocked(s.tail)
	}
	e := &entry[K, V]{key: key, value: value, expiresAt: s.now().Add(s.ttl)}
	s.items[key] = e
	s.pushFront(e)
}

// Delete removes key and reports whether it was present.
func (s *Store[K, V]) Delete(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return false
	}
	s.removeLocked(e)
	return true
}

// Clear drops every entry.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[K]*entry[K, V], s.maxEntries)
	s.head, s.tail = nil, nil
}

// Len returns the number of stored entries, expired ones included until
// they are observed or swept.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// EvictExpired removes all expired entries and returns how many it removed.
func (s *Store[K, V]) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for e := s.tail; e != nil; {
		prev := e.prev
		if !now.Before(e.expiresAt) {
			s.removeLocked(e)
			removed++
		}
		e = prev
	}
	return removed
}

// Keys returns the stored keys from least to most recently used.
func (s *Store[K, V]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]K, 0, len(s.items))
	for e := s.tail; e != nil; e = e.prev {
		keys = append(keys, e.key)
	}
	return keys
}

func (s *Store[K, V]) removeLocked(e *entry[K, V]) {
	s.unlink(e)
	delete(s.items, e.key)
}

func (s *Store[K, V]) pushFront(e *entry[K, V]) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *Store[K, V]) unlink(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
}
