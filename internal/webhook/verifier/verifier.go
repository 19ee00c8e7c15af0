// Package verifier authenticates inbound payment-provider notifications
// before any payload field is trusted, and decodes them into typed events.
package verifier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"paydesk/internal/webhook/models"
	dErrors "paydesk/pkg/domain-errors"
)

// Verifier checks provider signatures over raw request bodies. Signatures
// are computed over the exact bytes received; re-serialized payloads would
// not verify.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithTolerance overrides the signed-timestamp tolerance window.
func WithTolerance(d time.Duration) Option {
	return func(v *Verifier) { v.tolerance = d }
}

// New builds a Verifier for the shared webhook secret.
func New(secret string, opts ...Option) (*Verifier, error) {
	if secret == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "webhook secret is required")
	}
	v := &Verifier{
		secret:    []byte(secret),
		tolerance: 5 * time.Minute,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify authenticates payload against a `t=<unix>,v1=<hex>[,v1=...]`
// signature header. The timestamp is bound into the signed bytes, so a
// replayed payload with a shifted timestamp fails verification outright and
// an honest-but-old delivery is rejected by the tolerance window.
func (v *Verifier) Verify(payload []byte, sigHeader string) error {
	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return err
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return dErrors.New(dErrors.CodeSignatureInvalid, "malformed signature timestamp")
	}
	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.tolerance || age < -v.tolerance {
		return dErrors.New(dErrors.CodeSignatureInvalid, "signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%s.%s", timestamp, payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeSignatureInvalid, "no matching signature")
}

// Parse decodes a verified payload into a typed event. Call only after
// Verify has succeeded. Unhandled event types return models.ErrEventIgnored.
func Parse(payload []byte) (*models.PaymentEvent, error) {
	var envelope providerEvent
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed event payload")
	}
	if strings.TrimSpace(envelope.ID) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event is missing an id")
	}

	eventType := models.EventType(strings.TrimSpace(envelope.Type))
	if !eventType.IsValid() {
		return nil, models.ErrEventIgnored
	}

	event := &models.PaymentEvent{
		ID:         envelope.ID,
		Type:       eventType,
		OccurredAt: occurredAt(envelope.Created),
		RawPayload: payload,
	}

	switch eventType {
	case models.EventCheckoutCompleted, models.EventCheckoutExpired:
		var session checkoutSession
		if err := json.Unmarshal(envelope.Data.Object, &session); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed checkout session")
		}
		event.CheckoutSessionID = session.ID
		event.PaymentIntentID = session.PaymentIntent
		event.Metadata = session.Metadata
		event.Amount = session.AmountTotal
		event.Currency = normalizeCurrency(session.Currency)

	case models.EventPaymentFailed:
		var intent paymentIntent
		if err := json.Unmarshal(envelope.Data.Object, &intent); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed payment intent")
		}
		event.PaymentIntentID = intent.ID
		event.Metadata = intent.Metadata
		event.Amount = intent.Amount
		event.Currency = normalizeCurrency(intent.Currency)

	case models.EventChargeRefunded:
		var ch charge
		if err := json.Unmarshal(envelope.Data.Object, &ch); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed charge")
		}
		event.PaymentIntentID = ch.PaymentIntent
		event.Metadata = ch.Metadata
		event.Amount = ch.Amount
		event.AmountRefunded = ch.AmountRefunded
		event.FullRefund = ch.Refunded
		event.Currency = normalizeCurrency(ch.Currency)

	case models.EventDisputeCreated:
		var d dispute
		if err := json.Unmarshal(envelope.Data.Object, &d); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed dispute")
		}
		event.DisputeID = d.ID
		event.DisputeReason = d.Reason
		event.PaymentIntentID = d.PaymentIntent
		event.Metadata = d.Metadata
		event.Amount = d.Amount
		event.Currency = normalizeCurrency(d.Currency)
	}

	return event, nil
}

// parseSignatureHeader splits `t=...,v1=...` into the timestamp and the
// candidate signatures. Multiple v1 entries occur during secret rotation.
func parseSignatureHeader(header string) (string, []string, error) {
	if strings.TrimSpace(header) == "" {
		return "", nil, dErrors.New(dErrors.CodeSignatureInvalid, "missing signature header")
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		key, value, ok := strings.Cut(piece, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "t":
			timestamp = strings.TrimSpace(value)
		case "v1":
			signatures = append(signatures, strings.TrimSpace(value))
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, dErrors.New(dErrors.CodeSignatureInvalid, "malformed signature header")
	}
	return timestamp, signatures, nil
}

func occurredAt(unix int64) time.Time {
	if unix == 0 {
		return time.Now().UTC()
	}
	return time.Unix(unix, 0).UTC()
}

func normalizeCurrency(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}

type providerEvent struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    eventData `json:"data"`
}

type eventData struct {
	Object json.RawMessage `json:"object"`
}

type checkoutSession struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

type paymentIntent struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

type charge struct {
	ID             string            `json:"id"`
	PaymentIntent  string            `json:"payment_intent"`
	Amount         int64             `json:"amount"`
	AmountRefunded int64             `json:"amount_refunded"`
	Refunded       bool              `json:"refunded"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata"`
}

type dispute struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Reason        string            `json:"reason"`
	Metadata      map[string]string `json:"metadata"`
}
