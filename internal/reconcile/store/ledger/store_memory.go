package ledger

import (
	"context"
	"sort"
	"sync"

	"paydesk/internal/reconcile/models"
	dErrors "paydesk/pkg/domain-errors"
)

// MemoryStore keeps the ledger in process memory. It enforces the same
// event-id uniqueness contract as the Postgres store so tests exercise the
// real duplicate-delivery behavior.
type MemoryStore struct {
	mu      sync.RWMutex
	byEvent map[string]*models.ReconciliationRecord
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byEvent: make(map[string]*models.ReconciliationRecord)}
}

func (s *MemoryStore) Exists(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEvent[eventID]
	return ok, nil
}

func (s *MemoryStore) Record(_ context.Context, rec *models.ReconciliationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEvent[rec.EventID]; ok {
		return ErrDuplicateEvent
	}
	stored := *rec
	s.byEvent[rec.EventID] = &stored
	return nil
}

func (s *MemoryStore) FindByEventID(_ context.Context, eventID string) (*models.ReconciliationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byEvent[eventID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "record not found")
	}
	copied := *rec
	return &copied, nil
}

func (s *MemoryStore) ListUnmatched(_ context.Context, limit int) ([]*models.ReconciliationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ReconciliationRecord
	for _, rec := range s.byEvent {
		if rec.Status == models.RecordUnmatched {
			copied := *rec
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
