// Package ledger persists reconciliation records and answers the
// idempotency question: has this event been processed before?
package ledger

import (
	"context"

	"paydesk/internal/reconcile/models"
	dErrors "paydesk/pkg/domain-errors"
)

// ErrDuplicateEvent is returned by Record when a row for the same event id
// already exists. It is a control-flow signal, not a failure: the caller
// reports the event as already processed.
var ErrDuplicateEvent = dErrors.New(dErrors.CodeDuplicateEvent, "event already recorded")

// Store is the append-only reconciliation ledger.
type Store interface {
	// Exists is the fast pre-check run before any state-mutating work. It is
	// an optimization only; Record's uniqueness guarantee is authoritative.
	Exists(ctx context.Context, eventID string) (bool, error)

	// Record inserts exactly one row per event. A uniqueness violation on
	// the event id yields ErrDuplicateEvent.
	Record(ctx context.Context, rec *models.ReconciliationRecord) error

	// FindByEventID returns the recorded outcome for an event.
	FindByEventID(ctx context.Context, eventID string) (*models.ReconciliationRecord, error)

	// ListUnmatched returns records awaiting manual attribution, newest first.
	ListUnmatched(ctx context.Context, limit int) ([]*models.ReconciliationRecord, error)
}
