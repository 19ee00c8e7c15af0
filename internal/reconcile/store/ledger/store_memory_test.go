package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"paydesk/internal/reconcile/models"
	dErrors "paydesk/pkg/domain-errors"
)

type MemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *MemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemoryStore()
}

func (s *MemoryStoreSuite) record(eventID string, status models.RecordStatus) *models.ReconciliationRecord {
	rec, err := models.NewRecord(eventID, "stripe", "checkout.session.completed", status)
	s.Require().NoError(err)
	return rec
}

func (s *MemoryStoreSuite) TestRecordAndFind() {
	rec := s.record("evt_1", models.RecordSuccess)
	rec.ProjectID = "proj_1"

	s.Require().NoError(s.store.Record(s.ctx, rec))

	found, err := s.store.FindByEventID(s.ctx, "evt_1")
	s.Require().NoError(err)
	s.Equal(rec.ID, found.ID)
	s.Equal("proj_1", found.ProjectID)
	s.Equal(models.RecordSuccess, found.Status)
}

func (s *MemoryStoreSuite) TestFindUnknownEvent() {
	_, err := s.store.FindByEventID(s.ctx, "evt_missing")
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *MemoryStoreSuite) TestExists() {
	exists, err := s.store.Exists(s.ctx, "evt_1")
	s.Require().NoError(err)
	s.False(exists)

	s.Require().NoError(s.store.Record(s.ctx, s.record("evt_1", models.RecordSuccess)))

	exists, err = s.store.Exists(s.ctx, "evt_1")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *MemoryStoreSuite) TestDuplicateEventRejected() {
	s.Require().NoError(s.store.Record(s.ctx, s.record("evt_1", models.RecordSuccess)))

	err := s.store.Record(s.ctx, s.record("evt_1", models.RecordFailed))
	s.Require().ErrorIs(err, ErrDuplicateEvent)

	// The first write wins; the duplicate must not overwrite it.
	found, err := s.store.FindByEventID(s.ctx, "evt_1")
	s.Require().NoError(err)
	s.Equal(models.RecordSuccess, found.Status)
}

func (s *MemoryStoreSuite) TestConcurrentDuplicateYieldsOneRow() {
	const writers = 20

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.store.Record(s.ctx, s.record("evt_race", models.RecordSuccess))
		}()
	}
	wg.Wait()
	close(errs)

	var accepted, rejected int
	for err := range errs {
		switch {
		case err == nil:
			accepted++
		case dErrors.Is(err, dErrors.CodeDuplicateEvent):
			rejected++
		default:
			s.FailNow("unexpected error", err)
		}
	}
	s.Equal(1, accepted)
	s.Equal(writers-1, rejected)
}

func (s *MemoryStoreSuite) TestListUnmatchedNewestFirst() {
	older := s.record("evt_old", models.RecordUnmatched)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := s.record("evt_new", models.RecordUnmatched)
	matched := s.record("evt_ok", models.RecordSuccess)

	s.Require().NoError(s.store.Record(s.ctx, older))
	s.Require().NoError(s.store.Record(s.ctx, newer))
	s.Require().NoError(s.store.Record(s.ctx, matched))

	out, err := s.store.ListUnmatched(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Equal("evt_new", out[0].EventID)
	s.Equal("evt_old", out[1].EventID)

	limited, err := s.store.ListUnmatched(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(limited, 1)
}
