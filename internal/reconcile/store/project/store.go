// Package project persists payable projects. Status transitions are
// expressed as conditional updates so racing deliveries converge without
// application-level locks: the loser observes a no-op and reports the
// already-applied outcome.
package project

import (
	"context"

	"paydesk/internal/reconcile/models"
)

// Store is what the reconciler needs from project persistence.
type Store interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)

	// FindByPaymentIntent resolves a project through the correlation key
	// persisted at payment time.
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Project, error)

	// MarkPaid transitions UNPAID → PAID and persists the provider's
	// correlation identifiers in the same conditional update. Returns false
	// when the project was not UNPAID (no row changed).
	MarkPaid(ctx context.Context, id, paymentIntentID, checkoutSessionID string) (bool, error)

	// Transition moves the project to the target status only if its current
	// status is one of from. Returns false when no row changed.
	Transition(ctx context.Context, id string, from []models.PaymentStatus, to models.PaymentStatus) (bool, error)
}
