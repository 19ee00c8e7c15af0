package models

import (
	"errors"
	"time"
)

// ErrEventIgnored marks a well-formed event of a type this system does not
// process. Ignored events are acknowledged to the provider, never retried.
var ErrEventIgnored = errors.New("event type ignored")

// EventType enumerates the provider notifications the reconciler handles.
type EventType string

const (
	EventCheckoutCompleted EventType = "checkout.session.completed"
	EventCheckoutExpired   EventType = "checkout.session.expired"
	EventPaymentFailed     EventType = "payment_intent.payment_failed"
	EventChargeRefunded    EventType = "charge.refunded"
	EventDisputeCreated    EventType = "charge.dispute.created"
)

// IsValid checks if the event type is one of the handled values.
func (t EventType) IsValid() bool {
	switch t {
	case EventCheckoutCompleted, EventCheckoutExpired, EventPaymentFailed,
		EventChargeRefunded, EventDisputeCreated:
		return true
	}
	return false
}

// MetadataProjectKey is the correlation contract: outbound checkout requests
// embed the project's public id under this metadata key, and the echoed
// value is the only path from an inbound event back to a resource.
const MetadataProjectKey = "projectID"

// PaymentEvent is a verified, decoded provider notification. Immutable once
// parsed; the raw payload is retained for the audit trail.
type PaymentEvent struct {
	ID         string
	Type       EventType
	OccurredAt time.Time

	// Correlation identifiers, populated per event type.
	CheckoutSessionID string
	PaymentIntentID   string
	Metadata          map[string]string

	// Money fields in the provider's smallest currency unit.
	Amount         int64
	AmountRefunded int64
	Currency       string

	// FullRefund mirrors the provider's own refunded flag; the amount is
	// never compared against the original charge to infer it.
	FullRefund bool

	DisputeID     string
	DisputeReason string

	RawPayload []byte
}

// ProjectID returns the correlation key echoed through provider metadata,
// or "" when the event carries none.
func (e *PaymentEvent) ProjectID() string {
	return e.Metadata[MetadataProjectKey]
}
