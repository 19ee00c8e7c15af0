// Package handler exposes the inbound payment webhook endpoint. It owns the
// boundary concerns only: body limits, signature verification, parse, and
// status mapping. Everything stateful lives behind the reconciler.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	rsvc "paydesk/internal/reconcile/service"
	wmodels "paydesk/internal/webhook/models"
	"paydesk/internal/webhook/verifier"
	dErrors "paydesk/pkg/domain-errors"
	"paydesk/pkg/httputil"
)

// SignatureHeader carries the provider's timestamped HMAC signature.
const SignatureHeader = "Stripe-Signature"

// maxBodyBytes bounds the raw payload read from the provider.
const maxBodyBytes = 1 << 20

// Verifier authenticates a raw payload against its signature header.
type Verifier interface {
	Verify(payload []byte, sigHeader string) error
}

// Reconciler applies a verified event.
type Reconciler interface {
	Process(ctx context.Context, event *wmodels.PaymentEvent) (*rsvc.Outcome, error)
}

// WebhookHandler terminates provider deliveries.
type WebhookHandler struct {
	verifier     Verifier
	reconciler   Reconciler
	logger       *slog.Logger
	storeTimeout time.Duration
}

// Option configures a WebhookHandler.
type Option func(*WebhookHandler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *WebhookHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithStoreTimeout bounds the reconciliation call per delivery.
func WithStoreTimeout(d time.Duration) Option {
	return func(h *WebhookHandler) {
		if d > 0 {
			h.storeTimeout = d
		}
	}
}

// New creates the webhook handler.
func New(v Verifier, r Reconciler, opts ...Option) (*WebhookHandler, error) {
	if v == nil {
		return nil, errors.New("webhook: verifier is required")
	}
	if r == nil {
		return nil, errors.New("webhook: reconciler is required")
	}
	h := &WebhookHandler{
		verifier:     v,
		reconciler:   r,
		logger:       slog.Default(),
		storeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the endpoint on the router.
func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhooks/payments", h.handleDelivery)
}

// handleDelivery acknowledges with 200 everything that is durably recorded,
// duplicates and unmatched events included. Only transient persistence
// failures return 500; the provider's redelivery schedule is the retry loop.
func (h *WebhookHandler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unreadable body"))
		return
	}

	if err := h.verifier.Verify(payload, r.Header.Get(SignatureHeader)); err != nil {
		h.logger.Warn("webhook signature rejected", "error", err, "remote", r.RemoteAddr)
		httputil.WriteError(w, err)
		return
	}

	event, err := verifier.Parse(payload)
	if err != nil {
		if errors.Is(err, wmodels.ErrEventIgnored) {
			// Acknowledge types this system does not process so the
			// provider stops redelivering them.
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		h.logger.Warn("webhook payload rejected", "error", err)
		httputil.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.storeTimeout)
	defer cancel()

	out, err := h.reconciler.Process(ctx, event)
	if err != nil {
		h.logger.Error("reconciliation failed",
			"event_id", event.ID, "event_type", event.Type, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeTransient, "reconciliation failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": string(out.Kind),
	})
}
