// Package cache implements the concurrent, URL-keyed LRU response cache
// described in spec.md §3-§4.1: a hard total-byte budget, a hard
// per-entry size limit, and least-recently-used eviction when the
// budget would otherwise be exceeded.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thushan/forwardproxy/internal/core/domain"
)

// entry is a single cached response. fingerprint is kept alongside the
// list element so eviction can find the map key without a reverse index.
type entry struct {
	fingerprint string
	payload     []byte
	lastUsed    time.Time
}

// Store is a concurrent LRU cache keyed by request fingerprint. All
// mutation and lookup happens under a single mutex (spec.md §5: "the
// cache store is protected by a single mutex held for the full duration
// of lookup and insert"). The recency list gives O(1) touch/evict,
// which is a stronger bound than the "linear scan acceptable" allowance
// in spec.md §4.1 — either satisfies the contract.
type Store struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	byteSize atomic.Int64

	maxSizeBytes        int64
	maxElementSizeBytes int64

	onEvict func(fingerprint string, bytes int)
}

// StoreStats is a point-in-time snapshot of store occupancy.
type StoreStats struct {
	Entries  int
	ByteSize int64
}

// NewStore builds an empty store enforcing maxSizeBytes total and
// maxElementSizeBytes per entry. onEvict, if non-nil, is invoked
// synchronously, while the store lock is still held, whenever insert
// evicts an entry to make room.
func NewStore(maxSizeBytes, maxElementSizeBytes int64, onEvict func(fingerprint string, bytes int)) *Store {
	return &Store{
		items:               make(map[string]*list.Element),
		order:               list.New(),
		maxSizeBytes:        maxSizeBytes,
		maxElementSizeBytes: maxElementSizeBytes,
		onEvict:             onEvict,
	}
}

// Lookup returns a copy of the cached payload for fp and refreshes its
// recency, or (nil, false) on a miss. The returned slice is a copy so
// callers can write it to a client socket without holding the store
// lock across the write.
func (s *Store) Lookup(fp string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[fp]
	if !ok {
		return nil, false
	}

	e := el.Value.(*entry)
	e.lastUsed = time.Now()
	s.order.MoveToFront(el)

	out := make([]byte, len(e.payload))
	copy(out, e.payload)
	return out, true
}

// Insert stores payload under fp, replacing any existing entry with the
// same key. It evicts least-recently-used entries, tie-broken by
// traversal order from the back of the list, until the new entry fits
// within maxSizeBytes; a replacement that grows an existing entry evicts
// other entries the same way. Returns a *domain.Error wrapping KindTooLarge if
// payload alone exceeds maxElementSizeBytes; the store is left
// unchanged in that case.
func (s *Store) Insert(fp string, payload []byte) error {
	if int64(len(payload)) > s.maxElementSizeBytes {
		return domain.NewError(domain.KindTooLarge, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(payload))
	copy(stored, payload)

	if el, ok := s.items[fp]; ok {
		e := el.Value.(*entry)
		oldLen := int64(len(e.payload))
		e.payload = stored
		e.lastUsed = time.Now()
		s.order.MoveToFront(el)
		s.byteSize.Add(int64(len(stored)) - oldLen)
		for s.byteSize.Load() > s.maxSizeBytes && s.order.Len() > 1 {
			s.evictOldestLocked()
		}
		return nil
	}

	for s.byteSize.Load()+int64(len(stored)) > s.maxSizeBytes && s.order.Len() > 0 {
		s.evictOldestLocked()
	}

	e := &entry{fingerprint: fp, payload: stored, lastUsed: time.Now()}
	el := s.order.PushFront(e)
	s.items[fp] = el
	s.byteSize.Add(int64(len(stored)))

	return nil
}

// evictOldestLocked removes the entry with the smallest lastUsed. Every
// touch (lookup hit, insert, replace) moves its element to the front, so
// the list is always kept in strict recency order end-to-end; the back
// element is therefore always the least-recently-used one, with ties
// (simultaneous inserts in the same instant) broken in favour of
// whichever was pushed first, matching spec.md's "first-found during
// scan" rule without an actual scan. Caller must hold s.mu.
func (s *Store) evictOldestLocked() {
	victim := s.order.Back()
	if victim == nil {
		return
	}

	e := victim.Value.(*entry)
	s.order.Remove(victim)
	delete(s.items, e.fingerprint)
	s.byteSize.Add(-int64(len(e.payload)))

	if s.onEvict != nil {
		s.onEvict(e.fingerprint, len(e.payload))
	}
}

// Drain removes every entry; byte_size becomes 0.
func (s *Store) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*list.Element)
	s.order.Init()
	s.byteSize.Store(0)
}

// Stats returns a snapshot of current occupancy.
func (s *Store) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StoreStats{
		Entries:  len(s.items),
		ByteSize: s.byteSize.Load(),
	}
}
