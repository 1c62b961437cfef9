// Package autherr defines the error taxonomy surfaced by the access layer
// and the mapping from taxonomy entries to HTTP responses.
package autherr

import (
	"errors"
	"net/http"
)

// Sentinel errors. Handlers match these with errors.Is; everything else is
// sanitized and reported as a server error so storage details never leak.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailUnverified    = errors.New("email not verified")
	ErrTwoFactorRequired  = errors.New("two-factor code required")
	ErrTwoFactorInvalid   = errors.New("invalid code")
	ErrTwoFactorExpired   = errors.New("code expired")
	ErrNotAMember         = errors.New("not a member of this organization")
	ErrInsufficientRole   = errors.New("insufficient role")
	ErrDuplicateResource  = errors.New("resource already exists")
	ErrNotFound           = errors.New("record not found")
	ErrNoSession          = errors.New("no session")
	ErrMissingOrg         = errors.New("organization id required")
)

// Code is the machine-readable identifier returned in {error, code} payloads.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrEmailUnverified):
		return "email_unverified"
	case errors.Is(err, ErrTwoFactorRequired):
		return "two_factor_required"
	case errors.Is(err, ErrTwoFactorInvalid):
		return "two_factor_invalid"
	case errors.Is(err, ErrTwoFactorExpired):
		return "two_factor_expired"
	case errors.Is(err, ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, ErrInsufficientRole):
		return "insufficient_role"
	case errors.Is(err, ErrDuplicateResource):
		return "duplicate_resource"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoSession):
		return "unauthorized"
	case errors.Is(err, ErrMissingOrg):
		return "missing_org"
	}
	return "server_error"
}

// Status maps a taxonomy entry to its HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrEmailUnverified),
		errors.Is(err, ErrTwoFactorRequired),
		errors.Is(err, ErrTwoFactorInvalid),
		errors.Is(err, ErrTwoFactorExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotAMember), errors.Is(err, ErrInsufficientRole):
		return http.StatusForbidden
	case errors.Is(err, ErrMissingOrg):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicateResource):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Message is the human-readable description for a taxonomy entry. Two-factor
// rejection and expiry deliberately carry distinct messages.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid credentials!"
	case errors.Is(err, ErrEmailUnverified):
		return "Confirmation email sent!"
	case errors.Is(err, ErrTwoFactorRequired):
		return "Two-factor code sent!"
	case errors.Is(err, ErrTwoFactorInvalid):
		return "Invalid code!"
	case errors.Is(err, ErrTwoFactorExpired):
		return "Code expired!"
	case errors.Is(err, ErrNotAMember):
		return "You are not a member of this organization."
	case errors.Is(err, ErrInsufficientRole):
		return "Your role does not allow this operation."
	case errors.Is(err, ErrDuplicateResource):
		return "Resource already exists."
	case errors.Is(err, ErrNotFound):
		return "Record not found."
	case errors.Is(err, ErrNoSession):
		return "Authentication required."
	case errors.Is(err, ErrMissingOrg):
		return "Organization id is required."
	}
	return "Internal server error."
}
