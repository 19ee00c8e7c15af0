// Package handler exposes the public contact-form endpoint.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"paydesk/internal/intake/form"
	"paydesk/internal/intake/service"
	dErrors "paydesk/pkg/domain-errors"
	"paydesk/pkg/httputil"
)

const maxFormBytes = 256 << 10

// IntakeHandler terminates contact-form submissions.
type IntakeHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

// Option configures an IntakeHandler.
type Option func(*IntakeHandler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *IntakeHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New creates the intake handler.
func New(svc *service.Service, opts ...Option) (*IntakeHandler, error) {
	if svc == nil {
		return nil, errors.New("intake: service is required")
	}
	h := &IntakeHandler{svc: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the endpoint on the router.
func (h *IntakeHandler) Register(r chi.Router) {
	r.Post("/intake", h.handleSubmit)
}

func (h *IntakeHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unreadable submission"))
		return
	}

	contact, err := h.svc.Submit(r.Context(), form.ParseSubmission(values))
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeInvalidInput) {
			h.logger.Error("intake submission failed", "error", err)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"id": contact.ID})
}

// formValues accepts URL-encoded, multipart, and JSON bodies. Third-party
// form relays still pointed at this endpoint use all three.
func formValues(r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxFormBytes)

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, err
		}
		values := url.Values{}
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				values.Set(k, val)
			case float64, bool:
				values.Set(k, fmt.Sprint(val))
			}
		}
		return values, nil
	}

	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			return nil, err
		}
		return r.PostForm, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.PostForm, nil
}
