// Package session provides SessionStore implementations: a bounded in-process
// store for single-replica deployments and a Redis-backed store for
// multi-replica ones.
package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

type memoryEntry struct {
	id        string
	mem       domain.SessionMemory
	expiresAt time.Time
}

// MemoryStore is a bounded TTL session store with LRU eviction. It never
// relies on process lifetime alone: entries age out, and the store holds at
// most maxCount sessions.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	ttl      time.Duration
	maxCount int
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs the store and starts its janitor goroutine.
// Call Close to stop the janitor.
func NewMemoryStore(ttl time.Duration, maxCount int) *MemoryStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if maxCount <= 0 {
		maxCount = 1024
	}
	s := &MemoryStore{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		ttl:      ttl,
		maxCount: maxCount,
		stop:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) janitor() {
	interval := s.ttl / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.evictExpired(time.Now())
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) evictExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, el := range s.entries {
		if now.After(el.Value.(*memoryEntry).expiresAt) {
			s.order.Remove(el)
			delete(s.entries, id)
		}
	}
}

// Get returns the session memory and refreshes its LRU position.
func (s *MemoryStore) Get(_ domain.Context, sessionID string) (domain.SessionMemory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.entries[sessionID]
	if !ok {
		return domain.SessionMemory{}, false
	}
	e := el.Value.(*memoryEntry)
	if time.Now().After(e.expiresAt) {
		s.order.Remove(el)
		delete(s.entries, sessionID)
		return domain.SessionMemory{}, false
	}
	s.order.MoveToFront(el)
	return e.mem, true
}

// Put stores the session memory, resetting its TTL. When the store is full the
// least recently used session is evicted.
func (s *MemoryStore) Put(_ domain.Context, sessionID string, mem domain.SessionMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if el, ok := s.entries[sessionID]; ok {
		e := el.Value.(*memoryEntry)
		e.mem = mem
		e.expiresAt = now.Add(s.ttl)
		s.order.MoveToFront(el)
		return nil
	}
	for len(s.entries) >= s.maxCount {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*memoryEntry).id)
	}
	el := s.order.PushFront(&memoryEntry{id: sessionID, mem: mem, expiresAt: now.Add(s.ttl)})
	s.entries[sessionID] = el
	return nil
}

// Delete removes one session.
func (s *MemoryStore) Delete(_ domain.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[sessionID]; ok {
		s.order.Remove(el)
		delete(s.entries, sessionID)
	}
	return nil
}

// Len reports the number of stored sessions, expired entries included until
// the janitor's next sweep.
func (s *MemoryStore) Len(_ domain.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the janitor goroutine.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

var _ domain.SessionStore = (*MemoryStore)(nil)
