// Package service implements the payment reconciliation state machine. It
// maps verified provider events onto project payment state, writes exactly
// one ledger record per event, and emits best-effort notifications after the
// durable work is committed.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"paydesk/internal/notify"
	"paydesk/internal/reconcile/metrics"
	"paydesk/internal/reconcile/models"
	"paydesk/internal/reconcile/store/ledger"
	"paydesk/internal/reconcile/store/project"
	wmodels "paydesk/internal/webhook/models"
	dErrors "paydesk/pkg/domain-errors"
)

const provider = "stripe"

// OutcomeKind classifies what processing an event did.
type OutcomeKind string

const (
	// OutcomeApplied means the event changed project state or completed its
	// record-only purpose.
	OutcomeApplied OutcomeKind = "applied"
	// OutcomeDuplicate means the event was already in the ledger.
	OutcomeDuplicate OutcomeKind = "duplicate"
	// OutcomeUnmatched means the event was recorded but could not be
	// attributed to a project.
	OutcomeUnmatched OutcomeKind = "unmatched"
	// OutcomeSkipped means the event matched a project already in the target
	// state; nothing was reapplied.
	OutcomeSkipped OutcomeKind = "skipped"
	// OutcomeDispute means a dispute record was written.
	OutcomeDispute OutcomeKind = "dispute"
)

// Outcome reports what processing an event did. All outcomes acknowledge the
// delivery; only an error return asks the provider to retry.
type Outcome struct {
	Kind      OutcomeKind
	Status    models.RecordStatus
	ProjectID string
}

// Notifier is the best-effort notification sink. Dispatch must not block.
type Notifier interface {
	Dispatch(msg notify.Message)
}

// Service is the reconciler. Stateless per event; safe for concurrent use.
type Service struct {
	ledger   ledger.Store
	projects project.Store
	notifier Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier sets the notification sink. Absent, notifications are skipped.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// New creates a reconciler over the given stores.
func New(ledgerStore ledger.Store, projectStore project.Store, opts ...Option) (*Service, error) {
	if ledgerStore == nil {
		return nil, errors.New("reconcile: ledger store is required")
	}
	if projectStore == nil {
		return nil, errors.New("reconcile: project store is required")
	}
	s := &Service{
		ledger:   ledgerStore,
		projects: projectStore,
		logger:   slog.Default(),
		tracer:   otel.Tracer("paydesk/reconcile"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Process applies one verified event. A nil error means the delivery is
// acknowledged, duplicates and unmatched events included. A non-nil error is
// always transient: the provider's redelivery is the retry mechanism, and
// redelivery is safe because every state change is conditional and the
// ledger insert is unique per event.
func (s *Service) Process(ctx context.Context, event *wmodels.PaymentEvent) (*Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "reconcile.process",
		trace.WithAttributes(
			attribute.String("event.id", event.ID),
			attribute.String("event.type", string(event.Type)),
		))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.ObserveDuration(string(event.Type), float64(time.Since(start).Milliseconds()))
	}()

	exists, err := s.ledger.Exists(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info("duplicate event acknowledged", "event_id", event.ID, "event_type", event.Type)
		return s.finish(event, &Outcome{Kind: OutcomeDuplicate}), nil
	}

	var out *Outcome
	switch event.Type {
	case wmodels.EventCheckoutCompleted:
		out, err = s.applyCheckoutCompleted(ctx, event)
	case wmodels.EventCheckoutExpired:
		out, err = s.recordTerminal(ctx, event, "checkout session expired")
	case wmodels.EventPaymentFailed:
		out, err = s.recordTerminal(ctx, event, "payment attempt failed")
	case wmodels.EventChargeRefunded:
		out, err = s.applyRefund(ctx, event)
	case wmodels.EventDisputeCreated:
		out, err = s.applyDispute(ctx, event)
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unhandled event type %q", event.Type)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.finish(event, out), nil
}

func (s *Service) finish(event *wmodels.PaymentEvent, out *Outcome) *Outcome {
	metrics.RecordEvent(string(event.Type), string(out.Kind))
	if out.Kind == OutcomeUnmatched {
		metrics.RecordUnmatched(string(event.Type))
	}
	return out
}

func (s *Service) applyCheckoutCompleted(ctx context.Context, event *wmodels.PaymentEvent) (*Outcome, error) {
	projectID := event.ProjectID()
	if projectID == "" {
		s.logger.Warn("payment received without correlation key",
			"event_id", event.ID, "session_id", event.CheckoutSessionID)
		return s.recordUnmatched(ctx, event, "no correlation key in metadata")
	}

	if _, err := s.projects.FindByID(ctx, projectID); err != nil {
		if dErrors.Is(err, dErrors.CodeNotFound) {
			s.logger.Warn("payment received for unknown project",
				"event_id", event.ID, "project_id", projectID)
			return s.recordUnmatched(ctx, event, fmt.Sprintf("no project %q", projectID))
		}
		return nil, err
	}

	changed, err := s.projects.MarkPaid(ctx, projectID, event.PaymentIntentID, event.CheckoutSessionID)
	if err != nil {
		return nil, err
	}

	if !changed {
		// A different confirmation for an already-paid project must not
		// double-count revenue or re-fire the notification.
		rec, dup, err := s.writeRecord(ctx, event, models.RecordSuccess, projectID,
			map[string]string{"skipped": "already paid"}, "")
		if err != nil {
			return nil, err
		}
		if dup {
			return &Outcome{Kind: OutcomeDuplicate}, nil
		}
		s.logger.Info("payment confirmation skipped, project already paid",
			"event_id", event.ID, "project_id", projectID)
		return &Outcome{Kind: OutcomeSkipped, Status: rec.Status, ProjectID: projectID}, nil
	}

	rec, dup, err := s.writeRecord(ctx, event, models.RecordSuccess, projectID, nil, "")
	if err != nil {
		return nil, err
	}
	if dup {
		return &Outcome{Kind: OutcomeDuplicate}, nil
	}

	s.logger.Info("project marked paid",
		"event_id", event.ID, "project_id", projectID, "amount", event.Amount, "currency", event.Currency)
	s.dispatch(notify.Message{
		Title:     "Payment received",
		Body:      fmt.Sprintf("Project %s paid %s.", projectID, formatAmount(event.Amount, event.Currency)),
		ProjectID: projectID,
		EventType: string(event.Type),
	})
	return &Outcome{Kind: OutcomeApplied, Status: rec.Status, ProjectID: projectID}, nil
}

// recordTerminal handles the log-only event types. They complete the audit
// trail without touching project state.
func (s *Service) recordTerminal(ctx context.Context, event *wmodels.PaymentEvent, reason string) (*Outcome, error) {
	rec, dup, err := s.writeRecord(ctx, event, models.RecordFailed, event.ProjectID(), nil, reason)
	if err != nil {
		return nil, err
	}
	if dup {
		return &Outcome{Kind: OutcomeDuplicate}, nil
	}
	s.logger.Info("terminal payment event recorded",
		"event_id", event.ID, "event_type", event.Type, "project_id", event.ProjectID())
	return &Outcome{Kind: OutcomeApplied, Status: rec.Status, ProjectID: event.ProjectID()}, nil
}

func (s *Service) applyRefund(ctx context.Context, event *wmodels.PaymentEvent) (*Outcome, error) {
	target := models.RefundTarget(event.FullRefund)

	proj, err := s.resolveProject(ctx, event)
	if err != nil {
		return nil, err
	}

	if proj == nil {
		s.logger.Warn("refund could not be attributed",
			"event_id", event.ID, "payment_intent_id", event.PaymentIntentID)
		out, err := s.recordUnmatched(ctx, event, "no project for payment intent")
		if err != nil {
			return nil, err
		}
		// The operator still needs to know money moved.
		if out.Kind != OutcomeDuplicate {
			s.dispatch(refundMessage(event, ""))
		}
		return out, nil
	}

	changed, err := s.projects.Transition(ctx, proj.ID, models.RefundableStatuses, target)
	if err != nil {
		return nil, err
	}

	md := map[string]string{"full_refund": fmt.Sprintf("%t", event.FullRefund)}
	if !changed {
		md["skipped"] = "not in a refundable state"
	}
	rec, dup, err := s.writeRecord(ctx, event, models.RecordSuccess, proj.ID, md, "")
	if err != nil {
		return nil, err
	}
	if dup {
		return &Outcome{Kind: OutcomeDuplicate}, nil
	}

	s.logger.Info("refund reconciled",
		"event_id", event.ID, "project_id", proj.ID,
		"full_refund", event.FullRefund, "amount_refunded", event.AmountRefunded)
	s.dispatch(refundMessage(event, proj.ID))

	kind := OutcomeApplied
	if !changed {
		kind = OutcomeSkipped
	}
	return &Outcome{Kind: kind, Status: rec.Status, ProjectID: proj.ID}, nil
}

// applyDispute is the highest-severity path. Project resolution is context
// only: its failure never gates the record or the notification.
func (s *Service) applyDispute(ctx context.Context, event *wmodels.PaymentEvent) (*Outcome, error) {
	var projectID string
	proj, err := s.resolveProject(ctx, event)
	if err != nil {
		s.logger.Error("project resolution failed during dispute", "event_id", event.ID, "error", err)
	}
	if proj != nil {
		projectID = proj.ID
		if _, err := s.projects.Transition(ctx, proj.ID, models.DisputableStatuses, models.PaymentDisputed); err != nil {
			s.logger.Error("dispute status flag failed", "event_id", event.ID, "project_id", proj.ID, "error", err)
		}
	}

	md := map[string]string{"dispute_id": event.DisputeID}
	if event.DisputeReason != "" {
		md["dispute_reason"] = event.DisputeReason
	}
	rec, dup, err := s.writeRecord(ctx, event, models.RecordDispute, projectID, md, "")
	if err != nil {
		return nil, err
	}
	if dup {
		return &Outcome{Kind: OutcomeDuplicate}, nil
	}

	s.logger.Error("payment dispute opened",
		"event_id", event.ID, "project_id", projectID,
		"dispute_id", event.DisputeID, "reason", event.DisputeReason)
	body := fmt.Sprintf("Dispute %s (%s) on %s.",
		event.DisputeID, event.DisputeReason, formatAmount(event.Amount, event.Currency))
	if projectID == "" {
		body += " No matching project."
	}
	s.dispatch(notify.Message{
		Title:     "Payment dispute opened",
		Body:      body,
		Emergency: true,
		ProjectID: projectID,
		EventType: string(event.Type),
	})
	return &Outcome{Kind: OutcomeDispute, Status: rec.Status, ProjectID: projectID}, nil
}

// resolveProject attributes an event through the persisted payment-intent
// correlation, falling back to the metadata key. A nil project with nil
// error means unresolved.
func (s *Service) resolveProject(ctx context.Context, event *wmodels.PaymentEvent) (*models.Project, error) {
	proj, err := s.projects.FindByPaymentIntent(ctx, event.PaymentIntentID)
	if err == nil {
		return proj, nil
	}
	if !dErrors.Is(err, dErrors.CodeNotFound) {
		return nil, err
	}

	if projectID := event.ProjectID(); projectID != "" {
		proj, err = s.projects.FindByID(ctx, projectID)
		if err == nil {
			return proj, nil
		}
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func (s *Service) recordUnmatched(ctx context.Context, event *wmodels.PaymentEvent, reason string) (*Outcome, error) {
	rec, dup, err := s.writeRecord(ctx, event, models.RecordUnmatched, "",
		map[string]string{"reason": reason}, "")
	if err != nil {
		return nil, err
	}
	if dup {
		return &Outcome{Kind: OutcomeDuplicate}, nil
	}
	return &Outcome{Kind: OutcomeUnmatched, Status: rec.Status}, nil
}

// writeRecord inserts the ledger row. The returned bool reports a lost
// duplicate race: another delivery of the same event inserted first, so this
// one is acknowledged without further effect.
func (s *Service) writeRecord(ctx context.Context, event *wmodels.PaymentEvent,
	status models.RecordStatus, projectID string, md map[string]string, errMsg string,
) (*models.ReconciliationRecord, bool, error) {
	rec, err := models.NewRecord(event.ID, provider, string(event.Type), status)
	if err != nil {
		return nil, false, err
	}
	rec.ProjectID = projectID
	rec.ErrorMessage = errMsg
	for k, v := range md {
		rec.Metadata[k] = v
	}

	if err := s.ledger.Record(ctx, rec); err != nil {
		if dErrors.Is(err, dErrors.CodeDuplicateEvent) {
			s.logger.Info("duplicate event lost insert race", "event_id", event.ID)
			return nil, true, nil
		}
		return nil, false, err
	}
	return rec, false, nil
}

func (s *Service) dispatch(msg notify.Message) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(msg)
}

func refundMessage(event *wmodels.PaymentEvent, projectID string) notify.Message {
	scope := "Full"
	if !event.FullRefund {
		scope = "Partial"
	}
	body := fmt.Sprintf("%s refund of %s.", scope, formatAmount(event.AmountRefunded, event.Currency))
	if projectID == "" {
		body += " No matching project."
	}
	return notify.Message{
		Title:     "Refund issued",
		Body:      body,
		ProjectID: projectID,
		EventType: string(event.Type),
	}
}

// formatAmount renders a minor-unit amount for notification text.
func formatAmount(amount int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(amount)/100, currency)
}
