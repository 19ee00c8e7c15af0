// Package form extracts a submission from the many historical spellings of
// the public contact form. Each logical field has an explicit ordered list of
// candidate keys, tried in priority order; the first non-empty value wins and
// goes through one sanitize-and-truncate step.
package form

import (
	"net/url"
	"strings"
	"unicode"

	"paydesk/internal/intake/models"
)

// Candidate keys in priority order. Earlier entries are the current form
// field names; later ones cover older site revisions and third-party form
// relays still pointed at this endpoint.
var (
	nameKeys    = []string{"name", "Name", "full_name", "fullname", "your-name"}
	emailKeys   = []string{"email", "Email", "email_address", "contact_email", "_replyto"}
	phoneKeys   = []string{"phone", "Phone", "phone_number", "tel"}
	companyKeys = []string{"company", "Company", "organization", "org"}
	messageKeys = []string{"message", "Message", "body", "comments", "description"}
	budgetKeys  = []string{"budget", "Budget", "budget_range"}
)

// Field length caps applied during sanitization.
const (
	maxShortField = 200
	maxEmailLen   = 320
	maxPhoneLen   = 50
	maxMessageLen = 5000
)

// ParseSubmission maps raw form values onto a sanitized Submission.
func ParseSubmission(values url.Values) models.Submission {
	return models.Submission{
		Name:    pick(values, nameKeys, maxShortField),
		Email:   pick(values, emailKeys, maxEmailLen),
		Phone:   pick(values, phoneKeys, maxPhoneLen),
		Company: pick(values, companyKeys, maxShortField),
		Message: pick(values, messageKeys, maxMessageLen),
		Budget:  pick(values, budgetKeys, maxShortField),
	}
}

func pick(values url.Values, keys []string, maxLen int) string {
	for _, key := range keys {
		if v := sanitize(values.Get(key), maxLen); v != "" {
			return v
		}
	}
	return ""
}

// sanitize trims, collapses whitespace control characters to spaces, drops
// the rest, and truncates on a rune boundary.
func sanitize(value string, maxLen int) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(' ')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	value = strings.TrimSpace(b.String())

	runes := []rune(value)
	if len(runes) > maxLen {
		value = string(runes[:maxLen])
	}
	return value
}
