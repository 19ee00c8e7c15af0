// Package contact persists intake contacts.
package contact

import (
	"context"

	"paydesk/internal/intake/models"
)

// Store is what the intake service needs from contact persistence.
type Store interface {
	Create(ctx context.Context, c *models.Contact) error

	// FindByEmailHash returns contacts sharing a keyed email hash, newest
	// first. Lookup never requires decrypting stored values.
	FindByEmailHash(ctx context.Context, emailHash string) ([]*models.Contact, error)

	// List returns contacts newest first.
	List(ctx context.Context, limit int) ([]*models.Contact, error)
}
