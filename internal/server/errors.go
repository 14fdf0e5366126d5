package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tenauth/tenauth/internal/auth"
	"github.com/tenauth/tenauth/internal/store"
	"github.com/tenauth/tenauth/internal/tenant"
	"github.com/tenauth/tenauth/internal/token"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps a failure onto its HTTP status class. Credential and token
// failures collapse into a generic 401 so callers cannot probe which check
// failed; authorization failures keep their specific message.
func writeError(w http.ResponseWriter, err error) {
	status, message := statusFor(err)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}

	writeJSON(w, status, errorResponse{Error: message})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, token.ErrExpiredToken),
		errors.Is(err, token.ErrInvalidSignature),
		errors.Is(err, token.ErrMalformedToken),
		errors.Is(err, token.ErrWrongKind):
		return http.StatusUnauthorized, "invalid credentials"

	case errors.Is(err, auth.ErrAccountLocked):
		// Lockout is rate limiting; the message stays generic so probes
		// cannot confirm the account exists.
		return http.StatusTooManyRequests, "too many requests"

	case errors.Is(err, auth.ErrInactiveAccount),
		errors.Is(err, auth.ErrInsufficientPrivilege),
		errors.Is(err, auth.ErrWrongTenant),
		errors.Is(err, auth.ErrTenantSuspended),
		errors.Is(err, tenant.ErrTenantRequired),
		errors.Is(err, tenant.ErrTenantMismatch):
		return http.StatusForbidden, err.Error()

	case errors.Is(err, store.ErrPrincipalNotFound),
		errors.Is(err, store.ErrOrganizationNotFound),
		errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound, "not found"

	case errors.Is(err, store.ErrPrincipalAlreadyExists),
		errors.Is(err, store.ErrOrganizationAlreadyExists):
		return http.StatusConflict, "already exists"

	case errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, tenant.ErrInvalidName):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"

	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}
