// Package models holds the intake domain types.
package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "paydesk/pkg/domain-errors"
)

// Submission is a sanitized contact-form submission. Field values are
// plaintext here; encryption happens at the storage boundary.
type Submission struct {
	Name    string
	Email   string
	Phone   string
	Company string
	Message string
	Budget  string
}

// Validate enforces the minimum a submission must carry.
func (s Submission) Validate() error {
	if s.Email == "" && s.Message == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "submission needs an email or a message")
	}
	return nil
}

// Contact is a stored intake submission. PII fields hold vault blobs when
// encryption is configured; EmailHash is a keyed hash kept alongside so
// lookups never require decryption.
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	EmailHash string    `json:"-"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	Message   string    `json:"message,omitempty"`
	Budget    string    `json:"budget,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewContact creates a Contact from a validated submission.
func NewContact(sub Submission) *Contact {
	return &Contact{
		ID:        uuid.NewString(),
		Name:      sub.Name,
		Email:     sub.Email,
		Phone:     sub.Phone,
		Company:   sub.Company,
		Message:   sub.Message,
		Budget:    sub.Budget,
		CreatedAt: time.Now().UTC(),
	}
}
