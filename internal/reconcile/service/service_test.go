package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"paydesk/internal/notify"
	"paydesk/internal/reconcile/models"
	"paydesk/internal/reconcile/store/ledger"
	"paydesk/internal/reconcile/store/project"
	wmodels "paydesk/internal/webhook/models"
	dErrors "paydesk/pkg/domain-errors"
)

type captureNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (c *captureNotifier) Dispatch(msg notify.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *captureNotifier) messages() []notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Message(nil), c.msgs...)
}

// failingLedger simulates a durable store outage.
type failingLedger struct {
	existsErr bool
}

func (f *failingLedger) Exists(context.Context, string) (bool, error) {
	if f.existsErr {
		return false, dErrors.New(dErrors.CodeTransient, "ledger unavailable")
	}
	return false, nil
}

func (f *failingLedger) Record(context.Context, *models.ReconciliationRecord) error {
	return dErrors.New(dErrors.CodeTransient, "ledger unavailable")
}

func (f *failingLedger) FindByEventID(context.Context, string) (*models.ReconciliationRecord, error) {
	return nil, dErrors.New(dErrors.CodeTransient, "ledger unavailable")
}

func (f *failingLedger) ListUnmatched(context.Context, int) ([]*models.ReconciliationRecord, error) {
	return nil, dErrors.New(dErrors.CodeTransient, "ledger unavailable")
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	ledger   *ledger.MemoryStore
	projects *project.MemoryStore
	notifier *captureNotifier
	svc      *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ledger = ledger.NewMemoryStore()
	s.projects = project.NewMemoryStore()
	s.notifier = &captureNotifier{}

	s.projects.Seed(models.Project{ID: "proj_1", Name: "Landing page"})

	var err error
	s.svc, err = New(s.ledger, s.projects,
		WithNotifier(s.notifier),
		WithLogger(slog.New(slog.DiscardHandler)))
	s.Require().NoError(err)
}

func (s *ServiceSuite) checkoutEvent(eventID, projectID string) *wmodels.PaymentEvent {
	e := &wmodels.PaymentEvent{
		ID:                eventID,
		Type:              wmodels.EventCheckoutCompleted,
		OccurredAt:        time.Now().UTC(),
		CheckoutSessionID: "cs_1",
		PaymentIntentID:   "pi_1",
		Amount:            250000,
		Currency:          "USD",
		Metadata:          map[string]string{},
	}
	if projectID != "" {
		e.Metadata[wmodels.MetadataProjectKey] = projectID
	}
	return e
}

func (s *ServiceSuite) refundEvent(eventID string, full bool) *wmodels.PaymentEvent {
	return &wmodels.PaymentEvent{
		ID:              eventID,
		Type:            wmodels.EventChargeRefunded,
		PaymentIntentID: "pi_1",
		Amount:          250000,
		AmountRefunded:  100000,
		Currency:        "USD",
		FullRefund:      full,
		Metadata:        map[string]string{},
	}
}

func (s *ServiceSuite) markPaid(eventID string) {
	out, err := s.svc.Process(s.ctx, s.checkoutEvent(eventID, "proj_1"))
	s.Require().NoError(err)
	s.Require().Equal(OutcomeApplied, out.Kind)
}

func (s *ServiceSuite) projectStatus(id string) models.PaymentStatus {
	p, err := s.projects.FindByID(s.ctx, id)
	s.Require().NoError(err)
	return p.PaymentStatus
}

func (s *ServiceSuite) TestCheckoutCompletedMarksPaid() {
	out, err := s.svc.Process(s.ctx, s.checkoutEvent("evt_1", "proj_1"))
	s.Require().NoError(err)
	s.Equal(OutcomeApplied, out.Kind)
	s.Equal("proj_1", out.ProjectID)

	p, err := s.projects.FindByID(s.ctx, "proj_1")
	s.Require().NoError(err)
	s.Equal(models.PaymentPaid, p.PaymentStatus)
	s.Equal("pi_1", p.PaymentIntentID)
	s.Equal("cs_1", p.CheckoutSessionID)

	rec, err := s.ledger.FindByEventID(s.ctx, "evt_1")
	s.Require().NoError(err)
	s.Equal(models.RecordSuccess, rec.Status)
	s.Equal("proj_1", rec.ProjectID)

	msgs := s.notifier.messages()
	s.Require().Len(msgs, 1)
	s.Equal("Payment received", msgs[0].Title)
	s.Contains(msgs[0].Body, "2500.00 USD")
}

func (s *ServiceSuite) TestDuplicateDeliveryIsAcknowledgedOnce() {
	s.markPaid("evt_1")

	out, err := s.svc.Process(s.ctx, s.checkoutEvent("evt_1", "proj_1"))
	s.Require().NoError(err)
	s.Equal(OutcomeDuplicate, out.Kind)

	s.Equal(models.PaymentPaid, s.projectStatus("proj_1"))
	s.Len(s.notifier.messages(), 1, "no second notification on redelivery")
}

func (s *ServiceSuite) TestMissingCorrelationKeyIsUnmatched() {
	out, err := s.svc.Process(s.ctx, s.checkoutEvent("evt_1", ""))
	s.Require().NoError(err)
	s.Equal(OutcomeUnmatched, out.Kind)

	rec, err := s.ledger.FindByEventID(s.ctx, "evt_1")
	s.Require().NoError(err)
	s.Equal(models.RecordUnmatched, rec.Status)
	s.Empty(rec.ProjectID)

	s.Equal(models.PaymentUnpaid, s.projectStatus("proj_1"))
	s.Empty(s.notifier.messages())
}

func (s *ServiceSuite) TestUnknownProjectIsUnmatched() {
	out, err := s.svc.Process(s.ctx, s.checkoutEvent("evt_1", "proj_ghost"))
	s.Require().NoError(err)
	s.Equal(OutcomeUnmatched, out.Kind)

	rec, err := s.ledger.FindByEventID(s.ctx, "evt_1")
	s.Require().NoError(err)
	s.Equal(models.RecordUnmatched, rec.Status)
}

func (s *ServiceSuite) TestSecondConfirmationForPaidProjectSkips() {
	s.markPaid("evt_1")

	out, err := s.svc.Process(s.ctx, s.checkoutEvent("evt_2", "proj_1"))
	s.Require().NoError(err)
	s.Equal(OutcomeSkipped, out.Kind)

	rec, err := s.ledger.FindByEventID(s.ctx, "evt_2")
	s.Require().NoError(err)
	s.Equal(models.RecordSuccess, rec.Status)
	s.Equal("already paid", rec.Metadata["skipped"])

	// Correlation keys from the first confirmation survive.
	p, err := s.projects.FindByID(s.ctx, "proj_1")
	s.Require().NoError(err)
	s.Equal("pi_1", p.PaymentIntentID)
	s.Len(s.notifier.messages(), 1, "no notification for the skipped confirmation")
}

func (s *ServiceSuite) TestTerminalEventsAreRecordOnly() {
	for _, tc := range []struct {
		eventID string
		typ     wmodels.EventType
	}{
		{"evt_exp", wmodels.EventCheckoutExpired},
		{"evt_fail", wmodels.EventPaymentFailed},
	} {
		out, err := s.svc.Process(s.ctx, &wmodels.PaymentEvent{
			ID:       tc.eventID,
			Type:     tc.typ,
			Metadata: map[string]string{wmodels.MetadataProjectKey: "proj_1"},
		})
		s.Require().NoError(err)
		s.Equal(OutcomeApplied, out.Kind)

		rec, err := s.ledger.FindByEventID(s.ctx, tc.eventID)
		s.Require().NoError(err)
		s.Equal(models.RecordFailed, rec.Status)
	}

	s.Equal(models.PaymentUnpaid, s.projectStatus("proj_1"))
	s.Empty(s.notifier.messages())
}

func (s *ServiceSuite) TestPartialThenFullRefund() {
	s.markPaid("evt_1")

	out, err := s.svc.Process(s.ctx, s.refundEvent("evt_2", false))
	s.Require().NoError(err)
	s.Equal(OutcomeApplied, out.Kind)
	s.Equal(models.PaymentPartiallyRefunded, s.projectStatus("proj_1"))

	out, err = s.svc.Process(s.ctx, s.refundEvent("evt_3", true))
	s.Require().NoError(err)
	s.Equal(OutcomeApplied, out.Kind)
	s.Equal(models.PaymentRefunded, s.projectStatus("proj_1"))

	msgs := s.notifier.messages()
	s.Require().Len(msgs, 3)
	s.Contains(msgs[1].Body, "Partial refund")
	s.Contains(msgs[1].Body, "1000.00 USD")
	s.Contains(msgs[2].Body, "Full refund")
}

func (s *ServiceSuite) TestUnmatchedRefundStillNotifies() {
	e := s.refundEvent("evt_1", false)
	e.PaymentIntentID = "pi_unknown"

	out, err := s.svc.Process(s.ctx, e)
	s.Require().NoError(err)
	s.Equal(OutcomeUnmatched, out.Kind)

	rec, err := s.ledger.FindByEventID(s.ctx, "evt_1")
	s.Require().NoError(err)
	s.Equal(models.RecordUnmatched, rec.Status)

	msgs := s.notifier.messages()
	s.Require().Len(msgs, 1)
	s.Equal("Refund issued", msgs[0].Title)
	s.Contains(msgs[0].Body, "No matching project")
}

func (s *ServiceSuite) TestRefundOnUnrefundableStateSkips() {
	s.markPaid("evt_1")
	_, err := s.svc.Process(s.ctx, s.refundEvent("evt_2", true))
	s.Require().NoError(err)

	out, err := s.svc.Process(s.ctx, s.refundEvent("evt_3", true))
	s.Require().NoError(err)
	s.Equal(OutcomeSkipped, out.Kind)
	s.Equal(models.PaymentRefunded, s.projectStatus("proj_1"))
}

func (s *ServiceSuite) TestDisputeFlagsPaidProject() {
	s.markPaid("evt_1")

	out, err := s.svc.Process(s.ctx, &wmodels.PaymentEvent{
		ID:              "evt_2",
		Type:            wmodels.EventDisputeCreated,
		PaymentIntentID: "pi_1",
		Amount:          250000,
		Currency:        "USD",
		DisputeID:       "dp_1",
		DisputeReason:   "fraudulent",
		Metadata:        map[string]string{},
	})
	s.Require().NoError(err)
	s.Equal(OutcomeDispute, out.Kind)
	s.Equal(models.PaymentDisputed, s.projectStatus("proj_1"))

	rec, err := s.ledger.FindByEventID(s.ctx, "evt_2")
	s.Require().NoError(err)
	s.Equal(models.RecordDispute, rec.Status)
	s.Equal("dp_1", rec.Metadata["dispute_id"])

	msgs := s.notifier.messages()
	s.Require().Len(msgs, 2)
	s.True(msgs[1].Emergency)
}

func (s *ServiceSuite) TestDisputeWithoutResolutionStillRecordsAndNotifies() {
	out, err := s.svc.Process(s.ctx, &wmodels.PaymentEvent{
		ID:              "evt_1",
		Type:            wmodels.EventDisputeCreated,
		PaymentIntentID: "pi_unknown",
		DisputeID:       "dp_1",
		Metadata:        map[string]string{},
	})
	s.Require().NoError(err)
	s.Equal(OutcomeDispute, out.Kind)
	s.Empty(out.ProjectID)

	rec, err := s.ledger.FindByEventID(s.ctx, "evt_1")
	s.Require().NoError(err)
	s.Equal(models.RecordDispute, rec.Status)

	msgs := s.notifier.messages()
	s.Require().Len(msgs, 1)
	s.True(msgs[0].Emergency)
	s.Contains(msgs[0].Body, "No matching project")
}

func (s *ServiceSuite) TestTransientLedgerFailurePropagates() {
	svc, err := New(&failingLedger{}, s.projects, WithLogger(slog.New(slog.DiscardHandler)))
	s.Require().NoError(err)

	_, err = svc.Process(s.ctx, s.checkoutEvent("evt_1", "proj_1"))
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeTransient))
}

func (s *ServiceSuite) TestUnhandledEventTypeRejected() {
	_, err := s.svc.Process(s.ctx, &wmodels.PaymentEvent{
		ID:       "evt_1",
		Type:     wmodels.EventType("invoice.created"),
		Metadata: map[string]string{},
	})
	s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestConcurrentSameEventAppliesOnce() {
	const deliveries = 20

	var wg sync.WaitGroup
	outcomes := make(chan OutcomeKind, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.svc.Process(s.ctx, s.checkoutEvent("evt_race", "proj_1"))
			s.NoError(err)
			outcomes <- out.Kind
		}()
	}
	wg.Wait()
	close(outcomes)

	var applied int
	for kind := range outcomes {
		switch kind {
		case OutcomeApplied:
			applied++
		case OutcomeDuplicate, OutcomeSkipped:
		default:
			s.Failf("unexpected outcome", "%s", kind)
		}
	}
	s.LessOrEqual(applied, 1, "the paid transition must not be reported applied twice")
	s.Equal(models.PaymentPaid, s.projectStatus("proj_1"))

	// Exactly one ledger row regardless of interleaving.
	rec, err := s.ledger.FindByEventID(s.ctx, "evt_race")
	s.Require().NoError(err)
	s.Equal(models.RecordSuccess, rec.Status)

	s.LessOrEqual(len(s.notifier.messages()), 1, "at most one notification under racing deliveries")
}
