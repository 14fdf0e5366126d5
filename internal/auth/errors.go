package auth

import "errors"

// Authentication failures are deliberately generic: the caller learns that
// credentials were rejected, never which check failed. Authorization failures
// are specific so legitimate callers can self-diagnose.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrInactiveAccount    = errors.New("account inactive")

	ErrInsufficientPrivilege = errors.New("insufficient privilege")
	ErrWrongTenant           = errors.New("wrong tenant")
	ErrTenantSuspended       = errors.New("tenant suspended")

	ErrInvalidEmail     = errors.New("invalid email address")
	ErrPasswordTooShort = errors.New("password too short")
)
