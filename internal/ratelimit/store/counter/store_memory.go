package counter

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// sweepChance is the denominator of the opportunistic sweep: roughly one in
// this many increments walks the map and drops expired entries. Bounded slop
// in memory is traded for keeping the hot path sweep-free.
const sweepChance = 64

// MemoryStore is the in-process fallback counter store. It is only coherent
// within a single process; a horizontally scaled deployment gets one counter
// per instance under fallback, which the stricter fallback thresholds
// partially compensate.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

type entry struct {
	count   int64
	resetAt time.Time
}

// NewMemoryStore creates an empty in-process counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Incr increments the fixed-window counter for key, creating or resetting
// the window when absent or elapsed.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || !e.resetAt.After(now) {
		e = &entry{resetAt: now.Add(window)}
		s.entries[key] = e
	}
	e.count++

	if rand.IntN(sweepChance) == 0 {
		s.sweepLocked(now)
	}

	return e.count, e.resetAt, nil
}

// Len reports the number of live entries. Test hook.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops expired entries immediately. Exposed for tests; production
// relies on the opportunistic sweep inside Incr.
func (s *MemoryStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now())
}

// sweepLocked must be called while holding s.mu, so an entry can never be
// removed while another goroutine is incrementing it.
func (s *MemoryStore) sweepLocked(now time.Time) {
	for key, e := range s.entries {
		if !e.resetAt.After(now) {
			delete(s.entries, key)
		}
	}
}
