// Package service owns intake submissions: sanitized input comes in, PII is
// encrypted at the storage boundary, and the operator read path tolerates
// rows written before encryption was enabled.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"paydesk/internal/intake/models"
	"paydesk/internal/intake/store/contact"
	"paydesk/internal/notify"
	"paydesk/internal/vault"
	dErrors "paydesk/pkg/domain-errors"
)

// Notifier is the best-effort notification sink.
type Notifier interface {
	Dispatch(msg notify.Message)
}

// Service handles contact-form submissions.
type Service struct {
	contacts contact.Store
	// vault is optional; nil stores plaintext and skips the email hash.
	vault    *vault.Vault
	notifier Notifier
	logger   *slog.Logger
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

// WithVault enables field encryption for stored PII.
func WithVault(v *vault.Vault) Option {
	return func(s *Service) { s.vault = v }
}

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// New creates an intake service over the contact store.
func New(contacts contact.Store, opts ...Option) (*Service, error) {
	if contacts == nil {
		return nil, errors.New("intake: contact store is required")
	}
	s := &Service{contacts: contacts, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit validates, encrypts, and stores one submission, then notifies.
func (s *Service) Submit(ctx context.Context, sub models.Submission) (*models.Contact, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	c := models.NewContact(sub)
	if err := s.seal(c); err != nil {
		return nil, err
	}
	if err := s.contacts.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("intake submission stored", "contact_id", c.ID, "has_email", sub.Email != "")
	if s.notifier != nil {
		s.notifier.Dispatch(notify.Message{
			Title: "New inquiry",
			Body:  inquirySummary(sub),
		})
	}
	return c, nil
}

// List returns stored contacts with PII opened for operator display. Rows
// written before encryption was enabled pass through unchanged.
func (s *Service) List(ctx context.Context, limit int) ([]*models.Contact, error) {
	contacts, err := s.contacts.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, c := range contacts {
		s.open(c)
	}
	return contacts, nil
}

// FindByEmail looks up previous submissions from the same address via the
// keyed hash. Without a vault there is no hash to search.
func (s *Service) FindByEmail(ctx context.Context, email string) ([]*models.Contact, error) {
	if s.vault == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email lookup requires a configured vault")
	}
	contacts, err := s.contacts.FindByEmailHash(ctx, s.vault.SecureHash(email))
	if err != nil {
		return nil, err
	}
	for _, c := range contacts {
		s.open(c)
	}
	return contacts, nil
}

// seal encrypts the PII fields in place.
func (s *Service) seal(c *models.Contact) error {
	if s.vault == nil {
		return nil
	}
	// Message-only submissions have no email; hashing the empty string would
	// lump them all into one lookup bucket.
	if c.Email != "" {
		c.EmailHash = s.vault.SecureHash(c.Email)
	}
	for _, field := range []*string{&c.Name, &c.Email, &c.Phone, &c.Company, &c.Message, &c.Budget} {
		if *field == "" {
			continue
		}
		sealed, err := s.vault.Encrypt(*field)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encrypt contact field")
		}
		*field = sealed
	}
	return nil
}

// open decrypts the PII fields in place, tolerantly.
func (s *Service) open(c *models.Contact) {
	if s.vault == nil {
		return
	}
	for _, field := range []*string{&c.Name, &c.Email, &c.Phone, &c.Company, &c.Message, &c.Budget} {
		*field = s.vault.SafeDecrypt(*field)
	}
}

func inquirySummary(sub models.Submission) string {
	who := sub.Name
	if who == "" {
		who = sub.Email
	}
	if who == "" {
		who = "someone"
	}
	if sub.Budget != "" {
		return fmt.Sprintf("From %s, budget %s.", who, sub.Budget)
	}
	return fmt.Sprintf("From %s.", who)
}
