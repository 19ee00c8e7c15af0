package form

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSubmission_CurrentFieldNames(t *testing.T) {
	sub := ParseSubmission(url.Values{
		"name":    {"Ada Lovelace"},
		"email":   {"ada@example.com"},
		"phone":   {"+1 555 0100"},
		"company": {"Analytical Engines"},
		"message": {"Need a site."},
		"budget":  {"5k-10k"},
	})

	assert.Equal(t, "Ada Lovelace", sub.Name)
	assert.Equal(t, "ada@example.com", sub.Email)
	assert.Equal(t, "+1 555 0100", sub.Phone)
	assert.Equal(t, "Analytical Engines", sub.Company)
	assert.Equal(t, "Need a site.", sub.Message)
	assert.Equal(t, "5k-10k", sub.Budget)
}

func TestParseSubmission_LegacyFieldNames(t *testing.T) {
	sub := ParseSubmission(url.Values{
		"your-name": {"Ada"},
		"_replyto":  {"ada@example.com"},
		"tel":       {"555-0100"},
		"org":       {"AE Ltd"},
		"comments":  {"Old form relay."},
	})

	assert.Equal(t, "Ada", sub.Name)
	assert.Equal(t, "ada@example.com", sub.Email)
	assert.Equal(t, "555-0100", sub.Phone)
	assert.Equal(t, "AE Ltd", sub.Company)
	assert.Equal(t, "Old form relay.", sub.Message)
}

func TestParseSubmission_PriorityOrder(t *testing.T) {
	sub := ParseSubmission(url.Values{
		"email":         {"current@example.com"},
		"email_address": {"legacy@example.com"},
	})
	assert.Equal(t, "current@example.com", sub.Email)
}

func TestParseSubmission_SkipsEmptyCandidates(t *testing.T) {
	sub := ParseSubmission(url.Values{
		"email":    {"   "},
		"_replyto": {"fallback@example.com"},
	})
	assert.Equal(t, "fallback@example.com", sub.Email)
}

func TestSanitize_StripsControlCharacters(t *testing.T) {
	sub := ParseSubmission(url.Values{
		"name":    {"Ada\x00Lovelace"},
		"message": {"line one\nline two\ttabbed"},
	})
	assert.Equal(t, "AdaLovelace", sub.Name)
	assert.Equal(t, "line one line two tabbed", sub.Message)
}

func TestSanitize_TruncatesLongValues(t *testing.T) {
	sub := ParseSubmission(url.Values{
		"message": {strings.Repeat("x", 6000)},
	})
	assert.Len(t, sub.Message, 5000)
}

func TestParseSubmission_EmptyForm(t *testing.T) {
	sub := ParseSubmission(url.Values{})
	assert.Error(t, sub.Validate())
}
