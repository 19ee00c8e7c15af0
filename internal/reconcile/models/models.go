package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "paydesk/pkg/domain-errors"
)

// RecordStatus classifies the outcome stored on a reconciliation record.
type RecordStatus string

const (
	RecordSuccess   RecordStatus = "SUCCESS"
	RecordFailed    RecordStatus = "FAILED"
	RecordUnmatched RecordStatus = "UNMATCHED"
	RecordDispute   RecordStatus = "DISPUTE"
)

// IsValid checks if the record status is one of the supported enum values.
func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordSuccess, RecordFailed, RecordUnmatched, RecordDispute:
		return true
	}
	return false
}

// PaymentStatus is the payment state of a payable project.
type PaymentStatus string

const (
	PaymentUnpaid            PaymentStatus = "UNPAID"
	PaymentPaid              PaymentStatus = "PAID"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentDisputed          PaymentStatus = "DISPUTED"
)

// IsValid checks if the payment status is one of the supported enum values.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentUnpaid, PaymentPaid, PaymentPartiallyRefunded, PaymentRefunded, PaymentDisputed:
		return true
	}
	return false
}

// ReconciliationRecord is the audit and idempotency row written exactly once
// per inbound event. EventID carries a storage-level uniqueness constraint:
// that constraint, not the pre-check, is what prevents double application
// under concurrent redelivery. Records are never updated or deleted.
type ReconciliationRecord struct {
	ID           string            `json:"id"`
	EventID      string            `json:"event_id"`
	Provider     string            `json:"provider"`
	EventType    string            `json:"event_type"`
	Status       RecordStatus      `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	// ProjectID is empty for unmatched events.
	ProjectID string    `json:"project_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRecord creates a ReconciliationRecord with domain invariant validation.
func NewRecord(eventID, provider, eventType string, status RecordStatus) (*ReconciliationRecord, error) {
	if eventID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "event id cannot be empty")
	}
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid record status")
	}
	return &ReconciliationRecord{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Provider:  provider,
		EventType: eventType,
		Status:    status,
		Metadata:  map[string]string{},
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Project is the payable resource owned by the wider application. Only the
// reconciler mutates PaymentStatus, and only through conditional updates.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	PaymentStatus PaymentStatus `json:"payment_status"`

	// Correlation keys persisted on first successful payment so later
	// refund/dispute events can be attributed.
	PaymentIntentID   string `json:"payment_intent_id,omitempty"`
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RefundTarget maps the provider's full-refund flag to the resulting status.
func RefundTarget(fullRefund bool) PaymentStatus {
	if fullRefund {
		return PaymentRefunded
	}
	return PaymentPartiallyRefunded
}

// RefundableStatuses are the states a refund event may transition from. A
// second partial refund keeps the project PARTIALLY_REFUNDED; a full refund
// moves either state to REFUNDED.
var RefundableStatuses = []PaymentStatus{PaymentPaid, PaymentPartiallyRefunded}

// DisputableStatuses are the states the dispute overlay may be applied from.
// A dispute flags the project for operator attention; it does not reverse
// refund accounting.
var DisputableStatuses = []PaymentStatus{PaymentPaid, PaymentPartiallyRefunded, PaymentRefunded}
