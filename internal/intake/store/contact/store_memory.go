package contact

import (
	"context"
	"sort"
	"sync"

	"paydesk/internal/intake/models"
)

// MemoryStore keeps contacts in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	contacts map[string]*models.Contact
}

// NewMemoryStore creates an empty in-memory contact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contacts: make(map[string]*models.Contact)}
}

func (s *MemoryStore) Create(_ context.Context, c *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *c
	s.contacts[c.ID] = &stored
	return nil
}

func (s *MemoryStore) FindByEmailHash(_ context.Context, emailHash string) ([]*models.Contact, error) {
	if emailHash == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Contact
	for _, c := range s.contacts {
		if c.EmailHash == emailHash {
			copied := *c
			out = append(out, &copied)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		copied := *c
		out = append(out, &copied)
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNewestFirst(contacts []*models.Contact) {
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].CreatedAt.After(contacts[j].CreatedAt)
	})
}
