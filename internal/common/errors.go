// Package common defines shared constants and sentinel errors used across
// the server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal   = errors.New("internal error")
	ErrorValidation = errors.New("validation error")

	// Registration / credential errors.
	ErrorDuplicateEmail     = errors.New("email already registered")
	ErrorInvalidCredentials = errors.New("invalid email or password")
	ErrorLockedOut          = errors.New("account temporarily locked")

	// Access errors.
	ErrorUnauthenticated = errors.New("unauthenticated")
	ErrorForbidden       = errors.New("forbidden")

	// Token lifecycle errors.
	ErrorInvalidToken   = errors.New("invalid token")
	ErrorSessionExpired = errors.New("session expired")
)
