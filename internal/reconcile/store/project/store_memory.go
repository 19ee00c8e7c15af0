package project

import (
	"context"
	"slices"
	"sync"
	"time"

	"paydesk/internal/reconcile/models"
	dErrors "paydesk/pkg/domain-errors"
)

// MemoryStore keeps projects in process memory with the same conditional
// update semantics as the Postgres store.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]*models.Project
}

// NewMemoryStore creates an empty in-memory project store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string]*models.Project)}
}

// Seed inserts a project. Test and bootstrap helper.
func (s *MemoryStore) Seed(p models.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.PaymentStatus == "" {
		p.PaymentStatus = models.PaymentUnpaid
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.projects[p.ID] = &p
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "project not found")
	}
	copied := *p
	return &copied, nil
}

func (s *MemoryStore) FindByPaymentIntent(_ context.Context, paymentIntentID string) (*models.Project, error) {
	if paymentIntentID == "" {
		return nil, dErrors.New(dErrors.CodeNotFound, "project not found")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.PaymentIntentID == paymentIntentID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "project not found")
}

func (s *MemoryStore) MarkPaid(_ context.Context, id, paymentIntentID, checkoutSessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok || p.PaymentStatus != models.PaymentUnpaid {
		return false, nil
	}
	p.PaymentStatus = models.PaymentPaid
	p.PaymentIntentID = paymentIntentID
	p.CheckoutSessionID = checkoutSessionID
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) Transition(_ context.Context, id string, from []models.PaymentStatus, to models.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok || !slices.Contains(from, p.PaymentStatus) {
		return false, nil
	}
	p.PaymentStatus = to
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}
