// Package httputil centralizes JSON response envelopes and domain error
// translation so every handler speaks the same dialect.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "paydesk/pkg/domain-errors"
)

// WriteJSON writes v with the given status. Encoding failures are ignored;
// the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into a JSON error envelope. Internal
// detail never crosses the trust boundary; callers get the code only.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	WriteJSON(w, StatusOf(code), map[string]string{"error": string(code)})
}

// StatusOf maps a domain error code to an HTTP status.
func StatusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeSignatureInvalid, dErrors.CodeAuthenticationFailure:
		return http.StatusUnauthorized
	case dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeDuplicateEvent, dErrors.CodeUnmatchedResource:
		// Control-flow signals, acknowledged as success.
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
